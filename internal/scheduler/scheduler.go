// Package scheduler turns an audio duration into an ordered timeline of
// segments. Two variants exist: Animated (walk/talk cycles of a character)
// and Static (a fixed character image over rotating backgrounds).
package scheduler

import (
	"errors"

	"github.com/ivlev/deck2video/internal/segment"
)

var (
	// ErrInvalidDuration is returned for a non-positive audio duration.
	ErrInvalidDuration = errors.New("audio duration must be positive")
	// ErrMissingBackgroundAssets is returned when the background pool is empty.
	ErrMissingBackgroundAssets = errors.New("missing background assets")
)

// Kind names the scheduler variant that produced a timeline.
type Kind string

const (
	KindAnimated Kind = "animated"
	KindStatic   Kind = "static"
)

// Rand is the source of randomness. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Scheduler produces a timeline covering the given audio duration.
type Scheduler interface {
	Kind() Kind
	Schedule(audioDuration float64) (*Timeline, error)
}

// Timeline is the ordered sequence of segments of one video.
type Timeline struct {
	Kind          Kind              `yaml:"kind"`
	Mode          Mode              `yaml:"mode,omitempty"`
	AudioDuration float64           `yaml:"audio_duration"`
	Segments      []segment.Segment `yaml:"segments"`
}

// Duration is the sum of all segment durations.
func (t *Timeline) Duration() float64 {
	total := 0.0
	for _, s := range t.Segments {
		total += s.Duration
	}
	return total
}

// Bounds returns the largest segment width and height.
func (t *Timeline) Bounds() (width, height int) {
	for _, s := range t.Segments {
		if s.Width > width {
			width = s.Width
		}
		if s.Height > height {
			height = s.Height
		}
	}
	return width, height
}

func (t *Timeline) append(segs ...segment.Segment) {
	t.Segments = append(t.Segments, segs...)
}
