package segment

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sync"
)

const (
	// CharacterScale is applied to walk/talk frames.
	CharacterScale = 0.3
	// StaticScale is applied to the character image over backgrounds.
	StaticScale = 0.75
)

// Position of a layer inside the segment bounds.
type Position string

const Center Position = "center"

// Layer is one image drawn into a segment.
type Layer struct {
	Path   string `yaml:"path"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Segment is one timed visual unit built from a single frame.
// Width and Height are the segment bounds and are always even.
type Segment struct {
	Character  Layer    `yaml:"character"`
	Background *Layer   `yaml:"background,omitempty"`
	Duration   float64  `yaml:"duration"`
	Position   Position `yaml:"position"`
	Width      int      `yaml:"width"`
	Height     int      `yaml:"height"`
	FadeIn     float64  `yaml:"fade_in,omitempty"`
	FadeOut    float64  `yaml:"fade_out,omitempty"`
}

// WithFades returns a copy of s with the given fade durations.
func (s Segment) WithFades(in, out float64) Segment {
	s.FadeIn = in
	s.FadeOut = out
	return s
}

// DimensionReader returns the native pixel size of an image.
type DimensionReader interface {
	Dimensions(path string) (width, height int, err error)
}

// FileDimensions reads image headers from disk.
type FileDimensions struct{}

func (FileDimensions) Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Builder turns frames into segments. It memoizes image sizes, so one builder
// should serve one pipeline run.
type Builder struct {
	Scale      float64
	Dimensions DimensionReader

	mu    sync.Mutex
	sizes map[string][2]int
}

func NewBuilder(scale float64, dims DimensionReader) *Builder {
	if dims == nil {
		dims = FileDimensions{}
	}
	return &Builder{Scale: scale, Dimensions: dims}
}

// Build makes a centered segment of the scaled frame.
func (b *Builder) Build(frame string, duration float64) (Segment, error) {
	layer, err := b.scaled(frame)
	if err != nil {
		return Segment{}, err
	}
	return Segment{
		Character: layer,
		Duration:  duration,
		Position:  Center,
		Width:     layer.Width,
		Height:    layer.Height,
	}, nil
}

// BuildOver makes a segment of the scaled frame centered over a background
// kept at its native size.
func (b *Builder) BuildOver(background, frame string, duration float64) (Segment, error) {
	bw, bh, err := b.size(background)
	if err != nil {
		return Segment{}, err
	}
	layer, err := b.scaled(frame)
	if err != nil {
		return Segment{}, err
	}

	bg := Layer{Path: background, Width: bw, Height: bh}
	return Segment{
		Character:  layer,
		Background: &bg,
		Duration:   duration,
		Position:   Center,
		Width:      EvenCeil(float64(bw)),
		Height:     EvenCeil(float64(bh)),
	}, nil
}

func (b *Builder) scaled(path string) (Layer, error) {
	w, h, err := b.size(path)
	if err != nil {
		return Layer{}, err
	}
	sw, sh := ScaledSize(w, h, b.Scale)
	return Layer{Path: path, Width: sw, Height: sh}, nil
}

func (b *Builder) size(path string) (int, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sizes[path]; ok {
		return s[0], s[1], nil
	}
	w, h, err := b.Dimensions.Dimensions(path)
	if err != nil {
		return 0, 0, err
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("image %s has no pixels (%dx%d)", path, w, h)
	}
	if b.sizes == nil {
		b.sizes = make(map[string][2]int)
	}
	b.sizes[path] = [2]int{w, h}
	return w, h, nil
}

// ScaledSize scales the width by factor, derives the height from the aspect
// ratio and rounds both up to even values independently.
func ScaledSize(width, height int, factor float64) (int, int) {
	sw := float64(width) * factor
	sh := float64(height) * sw / float64(width)
	return EvenCeil(sw), EvenCeil(sh)
}

// EvenCeil rounds v up to the next even integer, at least 2.
func EvenCeil(v float64) int {
	// 1e-6 absorbs float noise such as 0.3*1000 = 300.00000000000006
	n := int(math.Ceil(v - 1e-6))
	if n < 2 {
		return 2
	}
	if n%2 != 0 {
		n++
	}
	return n
}
