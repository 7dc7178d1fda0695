package segment

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDims struct {
	sizes map[string][2]int
	calls int
}

func (f *fakeDims) Dimensions(path string) (int, int, error) {
	f.calls++
	s, ok := f.sizes[path]
	if !ok {
		return 0, 0, errors.New("no such image")
	}
	return s[0], s[1], nil
}

func TestEvenCeil(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 2},
		{0.4, 2},
		{1, 2},
		{2, 2},
		{2.01, 4},
		{3, 4},
		{299.99999999999997, 300},
		{300.00000000000006, 300},
		{301, 302},
		{301.5, 302},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EvenCeil(tt.in), "EvenCeil(%v)", tt.in)
	}
}

func TestScaledSize_AlwaysEven(t *testing.T) {
	for _, factor := range []float64{0.3, 0.75, 0.5, 1, 0.123} {
		for w := 1; w <= 97; w += 3 {
			for h := 1; h <= 101; h += 5 {
				sw, sh := ScaledSize(w, h, factor)
				if sw%2 != 0 || sh%2 != 0 || sw < 2 || sh < 2 {
					t.Fatalf("ScaledSize(%d, %d, %v) = %dx%d", w, h, factor, sw, sh)
				}
			}
		}
	}
}

func TestScaledSize_KeepsAspect(t *testing.T) {
	// 1001x751 * 0.3 = 300.3 x 225.3
	w, h := ScaledSize(1001, 751, CharacterScale)
	assert.Equal(t, 302, w)
	assert.Equal(t, 226, h)

	// rounded independently: 0.75*333 = 249.75 -> 250, 0.75*111 = 83.25 -> 84
	w, h = ScaledSize(333, 111, StaticScale)
	assert.Equal(t, 250, w)
	assert.Equal(t, 84, h)
}

func TestBuilder_Build(t *testing.T) {
	dims := &fakeDims{sizes: map[string][2]int{"talk-1.png": {1000, 700}}}
	b := NewBuilder(CharacterScale, dims)

	seg, err := b.Build("talk-1.png", 0.5)
	require.NoError(t, err)
	assert.Equal(t, Center, seg.Position)
	assert.Equal(t, 0.5, seg.Duration)
	assert.Equal(t, 300, seg.Width)
	assert.Equal(t, 210, seg.Height)
	assert.Nil(t, seg.Background)

	_, err = b.Build("talk-1.png", 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, dims.calls, "sizes are memoized")

	_, err = b.Build("missing.png", 0.5)
	assert.Error(t, err)
}

func TestBuilder_BuildOver(t *testing.T) {
	dims := &fakeDims{sizes: map[string][2]int{
		"bg.jpg":   {1281, 719},
		"hero.png": {401, 601},
	}}
	b := NewBuilder(StaticScale, dims)

	seg, err := b.BuildOver("bg.jpg", "hero.png", 5)
	require.NoError(t, err)
	require.NotNil(t, seg.Background)
	assert.Equal(t, 1281, seg.Background.Width)
	assert.Equal(t, 1282, seg.Width)
	assert.Equal(t, 720, seg.Height)
	assert.Equal(t, 302, seg.Character.Width)
	assert.Equal(t, 452, seg.Character.Height)

	faded := seg.WithFades(1, 0)
	assert.Equal(t, 1.0, faded.FadeIn)
	assert.Zero(t, seg.FadeIn)
}

func TestFileDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame-1.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 33, 17))))
	require.NoError(t, f.Close())

	w, h, err := FileDimensions{}.Dimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 33, w)
	assert.Equal(t, 17, h)

	seg, err := NewBuilder(CharacterScale, nil).Build(path, 0.8)
	require.NoError(t, err)
	// 33*0.3 = 9.9 -> 10, 17*0.3 = 5.1 -> 6
	assert.Equal(t, 10, seg.Width)
	assert.Equal(t, 6, seg.Height)
}
