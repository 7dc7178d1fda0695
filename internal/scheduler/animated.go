package scheduler

import (
	"fmt"
	"math"

	"github.com/ivlev/deck2video/internal/frames"
	"github.com/ivlev/deck2video/internal/segment"
)

// Mode selects the walk/talk policy of the animated scheduler.
type Mode string

const (
	// ModeIntro walks left once, capped at 20% of the audio, then only talks.
	ModeIntro Mode = "intro"
	// ModeAlternate flips a coin before every cycle: walk (alternating
	// direction, starting right) or talk.
	ModeAlternate Mode = "alternate"
)

const (
	DefaultWalkSegment = 0.8
	DefaultTalkSegment = 0.5
	DefaultTalkRepeats = 2

	introShare = 0.2
	epsilon    = 1e-9
)

// ParseMode accepts "intro" and "alternate"; empty means alternate.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAlternate:
		return ModeAlternate, nil
	case ModeIntro:
		return ModeIntro, nil
	}
	return "", fmt.Errorf("unknown schedule mode %q (want intro or alternate)", s)
}

type Options struct {
	WalkSegment float64 // seconds per walk frame
	TalkSegment float64 // seconds per talk frame
	TalkRepeats int     // talk frame sequence plays this many times per cycle
	Mode        Mode
}

func (o Options) withDefaults() Options {
	if o.WalkSegment <= 0 {
		o.WalkSegment = DefaultWalkSegment
	}
	if o.TalkSegment <= 0 {
		o.TalkSegment = DefaultTalkSegment
	}
	if o.TalkRepeats < 1 {
		o.TalkRepeats = DefaultTalkRepeats
	}
	if o.Mode == "" {
		o.Mode = ModeAlternate
	}
	return o
}

// Animated schedules walk and talk cycles of a character.
type Animated struct {
	sets    frames.Sets
	builder *segment.Builder
	rng     Rand
	opts    Options
}

func NewAnimated(sets frames.Sets, builder *segment.Builder, rng Rand, opts Options) *Animated {
	return &Animated{sets: sets, builder: builder, rng: rng, opts: opts.withDefaults()}
}

func (a *Animated) Kind() Kind { return KindAnimated }

func (a *Animated) Schedule(audioDuration float64) (*Timeline, error) {
	if audioDuration <= 0 {
		return nil, ErrInvalidDuration
	}
	if len(a.sets.Talk) == 0 || len(a.sets.WalkLeft) == 0 || len(a.sets.WalkRight) == 0 {
		return nil, frames.ErrMissingAnimationAssets
	}

	talk, err := a.talkCycle()
	if err != nil {
		return nil, err
	}

	tl := &Timeline{Kind: KindAnimated, Mode: a.opts.Mode, AudioDuration: audioDuration}

	switch a.opts.Mode {
	case ModeIntro:
		err = a.scheduleIntro(tl, talk)
	case ModeAlternate:
		err = a.scheduleAlternate(tl, talk)
	default:
		err = fmt.Errorf("unknown schedule mode %q", a.opts.Mode)
	}
	if err != nil {
		return nil, err
	}
	return tl, nil
}

func (a *Animated) scheduleIntro(tl *Timeline, talk []segment.Segment) error {
	audio := tl.AudioDuration
	walkSeg := a.opts.WalkSegment
	left := a.sets.WalkLeft

	limit := math.Min(float64(len(left))*walkSeg, introShare*audio)
	whole := int(math.Floor(limit/walkSeg + epsilon))
	if whole > len(left) {
		whole = len(left)
	}

	for i := 0; i < whole; i++ {
		seg, err := a.builder.Build(left[i], walkSeg)
		if err != nil {
			return err
		}
		tl.append(seg)
	}

	// The cap falls inside a frame: show that frame for the rest of the cap.
	if rest := limit - float64(whole)*walkSeg; rest > epsilon && whole < len(left) {
		seg, err := a.builder.Build(left[whole], rest)
		if err != nil {
			return err
		}
		tl.append(seg)
	}

	elapsed := tl.Duration()
	talkDur := cycleDuration(talk)
	for audio-elapsed > epsilon {
		tl.append(talk...)
		elapsed += talkDur
	}
	return nil
}

func (a *Animated) scheduleAlternate(tl *Timeline, talk []segment.Segment) error {
	right, err := a.walkCycle(a.sets.WalkRight)
	if err != nil {
		return err
	}
	left, err := a.walkCycle(a.sets.WalkLeft)
	if err != nil {
		return err
	}

	talkDur := cycleDuration(talk)
	walkingRight := true
	elapsed := 0.0

	for tl.AudioDuration-elapsed > epsilon {
		if a.rng.Float64() < 0.5 {
			cycle := left
			if walkingRight {
				cycle = right
			}
			tl.append(cycle...)
			elapsed += cycleDuration(cycle)
			walkingRight = !walkingRight
			continue
		}
		tl.append(talk...)
		elapsed += talkDur
	}
	return nil
}

func (a *Animated) walkCycle(list []string) ([]segment.Segment, error) {
	cycle := make([]segment.Segment, 0, len(list))
	for _, f := range list {
		seg, err := a.builder.Build(f, a.opts.WalkSegment)
		if err != nil {
			return nil, err
		}
		cycle = append(cycle, seg)
	}
	return cycle, nil
}

func (a *Animated) talkCycle() ([]segment.Segment, error) {
	once := make([]segment.Segment, 0, len(a.sets.Talk))
	for _, f := range a.sets.Talk {
		seg, err := a.builder.Build(f, a.opts.TalkSegment)
		if err != nil {
			return nil, err
		}
		once = append(once, seg)
	}

	cycle := make([]segment.Segment, 0, len(once)*a.opts.TalkRepeats)
	for i := 0; i < a.opts.TalkRepeats; i++ {
		cycle = append(cycle, once...)
	}
	return cycle, nil
}

func cycleDuration(cycle []segment.Segment) float64 {
	d := 0.0
	for _, s := range cycle {
		d += s.Duration
	}
	return d
}
