package scheduler

import (
	"math"

	"github.com/ivlev/deck2video/internal/segment"
)

const (
	// WindowDuration is how long one background stays on screen.
	WindowDuration = 5.0
	// FadeDuration is the fade at each inner window edge.
	FadeDuration = 1.0
)

// Static places a fixed character image over randomly chosen backgrounds.
type Static struct {
	backgrounds []string
	character   string
	builder     *segment.Builder
	rng         Rand
}

func NewStatic(backgrounds []string, character string, builder *segment.Builder, rng Rand) *Static {
	return &Static{backgrounds: backgrounds, character: character, builder: builder, rng: rng}
}

func (s *Static) Kind() Kind { return KindStatic }

func (s *Static) Schedule(audioDuration float64) (*Timeline, error) {
	if len(s.backgrounds) == 0 {
		return nil, ErrMissingBackgroundAssets
	}
	if audioDuration <= 0 {
		return nil, ErrInvalidDuration
	}

	windows := Windows(audioDuration, WindowDuration)

	tl := &Timeline{Kind: KindStatic, AudioDuration: audioDuration}
	for i, d := range windows {
		bg := s.backgrounds[s.rng.Intn(len(s.backgrounds))]
		seg, err := s.builder.BuildOver(bg, s.character, d)
		if err != nil {
			return nil, err
		}
		in, out := Fades(i, len(windows))
		tl.append(seg.WithFades(math.Min(in, d), math.Min(out, d)))
	}
	return tl, nil
}

// Windows splits total into slices of size window; the last one holds the
// remainder and is dropped when it is not positive.
func Windows(total, window float64) []float64 {
	n := int(math.Ceil(total / window))
	windows := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		d := math.Min(window, total-float64(i)*window)
		if d <= 0 {
			break
		}
		windows = append(windows, d)
	}
	return windows
}

// Fades returns fade-in and fade-out durations of window i out of n.
// The first window only fades out, the last only fades in.
func Fades(i, n int) (in, out float64) {
	if i > 0 {
		in = FadeDuration
	}
	if i < n-1 {
		out = FadeDuration
	}
	return in, out
}
