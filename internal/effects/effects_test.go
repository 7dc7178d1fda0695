package effects

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFadeFactor(t *testing.T) {
	f := Fade{In: 1, Out: 1, Duration: 5}

	tests := []struct {
		t    float64
		want float64
	}{
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{2.5, 1},
		{4, 1},
		{4.5, 0.5},
		{5, 0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, f.Factor(tt.t), 1e-9, "t=%.2f", tt.t)
	}

	outOnly := Fade{Out: 1, Duration: 5}
	assert.Equal(t, 1.0, outOnly.Factor(0))
	assert.True(t, outOnly.Active())
	assert.False(t, Fade{Duration: 5}.Active())
}

func TestFadeApply(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	copy(src.Pix, []uint8{200, 100, 50, 255, 255, 255, 255, 255})
	dst := image.NewRGBA(src.Rect)

	f := Fade{In: 1, Duration: 3}
	assert.False(t, f.Apply(dst, src, 2), "no fade in the middle")

	assert.True(t, f.Apply(dst, src, 0.5))
	assert.Equal(t, []uint8{100, 50, 25, 255, 127, 127, 127, 255}, dst.Pix)

	Dim(dst, src, 0)
	assert.Equal(t, []uint8{0, 0, 0, 255, 0, 0, 0, 255}, dst.Pix)
}
