package scheduler

import (
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/deck2video/internal/frames"
	"github.com/ivlev/deck2video/internal/segment"
)

// anySize reports the same native size for every image.
type anySize struct{ w, h int }

func (a anySize) Dimensions(string) (int, int, error) { return a.w, a.h, nil }

// scripted replays fixed draws.
type scripted struct {
	floats []float64
	ints   []int
}

func (s *scripted) Float64() float64 {
	f := s.floats[0]
	s.floats = s.floats[1:]
	return f
}

func (s *scripted) Intn(n int) int {
	i := s.ints[0]
	s.ints = s.ints[1:]
	return i % n
}

func names(prefix string, n int) []string {
	list := make([]string, n)
	for i := range list {
		list[i] = prefix + "-" + string(rune('1'+i)) + ".png"
	}
	return list
}

func testSets(talk, left, right int) frames.Sets {
	return frames.Sets{
		Talk:      names("talk", talk),
		WalkLeft:  names("left", left),
		WalkRight: names("right", right),
	}
}

func paths(tl *Timeline) []string {
	out := make([]string, len(tl.Segments))
	for i, s := range tl.Segments {
		out[i] = s.Character.Path
	}
	return out
}

func newBuilder() *segment.Builder {
	return segment.NewBuilder(segment.CharacterScale, anySize{1001, 777})
}

func TestAnimatedIntro_Example(t *testing.T) {
	sets := testSets(4, 5, 5)
	s := NewAnimated(sets, newBuilder(), rand.New(rand.NewSource(1)), Options{Mode: ModeIntro})

	tl, err := s.Schedule(12.0)
	require.NoError(t, err)

	// min(5*0.8, 0.2*12) = 2.4s -> three left frames, then 4s talk cycles
	require.Len(t, tl.Segments, 3+3*8)
	for i := 0; i < 3; i++ {
		assert.Equal(t, sets.WalkLeft[i], tl.Segments[i].Character.Path)
		assert.InDelta(t, 0.8, tl.Segments[i].Duration, 1e-9)
	}
	talk := paths(tl)[3:11]
	assert.Equal(t, append(append([]string{}, sets.Talk...), sets.Talk...), talk)
	assert.InDelta(t, 14.4, tl.Duration(), 1e-9)
	assert.Equal(t, KindAnimated, tl.Kind)
	assert.Equal(t, ModeIntro, tl.Mode)
}

func TestAnimatedIntro_CapInsideFrame(t *testing.T) {
	sets := testSets(2, 5, 5)
	s := NewAnimated(sets, newBuilder(), nil, Options{Mode: ModeIntro})

	tl, err := s.Schedule(1.0)
	require.NoError(t, err)

	require.NotEmpty(t, tl.Segments)
	assert.Equal(t, sets.WalkLeft[0], tl.Segments[0].Character.Path)
	assert.InDelta(t, 0.2, tl.Segments[0].Duration, 1e-9)
	// one talk cycle: 2 frames * 0.5s * 2
	assert.Len(t, tl.Segments, 1+4)
	assert.InDelta(t, 2.2, tl.Duration(), 1e-9)
}

func TestAnimatedIntro_Properties(t *testing.T) {
	sets := testSets(4, 6, 3)
	walkCycle := float64(len(sets.WalkLeft)) * DefaultWalkSegment
	talkCycle := float64(len(sets.Talk)) * DefaultTalkSegment * DefaultTalkRepeats

	for audio := 0.3; audio < 90; audio += 1.7 {
		s := NewAnimated(sets, newBuilder(), nil, Options{Mode: ModeIntro})
		tl, err := s.Schedule(audio)
		require.NoError(t, err)

		total := tl.Duration()
		assert.GreaterOrEqual(t, total, audio-1e-9, "audio %.2f", audio)
		assert.Less(t, total, audio+math.Max(walkCycle, talkCycle), "audio %.2f", audio)

		assert.True(t, strings.HasPrefix(tl.Segments[0].Character.Path, "left-"))
		walk := 0.0
		for _, seg := range tl.Segments {
			if !strings.HasPrefix(seg.Character.Path, "left-") {
				break
			}
			walk += seg.Duration
		}
		assert.LessOrEqual(t, walk, math.Min(walkCycle, 0.2*audio)+1e-9, "audio %.2f", audio)
	}
}

func TestAnimatedAlternate_Scripted(t *testing.T) {
	sets := testSets(2, 2, 3)
	rng := &scripted{floats: []float64{0.1, 0.9, 0.2, 0.3}}
	s := NewAnimated(sets, newBuilder(), rng, Options{Mode: ModeAlternate})

	// walk right 2.4s, talk 2s, walk left 1.6s = 6s
	tl, err := s.Schedule(6.0)
	require.NoError(t, err)

	want := []string{
		"right-1.png", "right-2.png", "right-3.png",
		"talk-1.png", "talk-2.png", "talk-1.png", "talk-2.png",
		"left-1.png", "left-2.png",
	}
	assert.Equal(t, want, paths(tl))
	assert.InDelta(t, 6.0, tl.Duration(), 1e-9)
	assert.Len(t, rng.floats, 1, "no draw after the audio is covered")
}

func TestAnimatedAlternate_NeverSplitsCycle(t *testing.T) {
	sets := testSets(3, 4, 4)
	rng := &scripted{floats: []float64{0.4}}
	s := NewAnimated(sets, newBuilder(), rng, Options{})

	tl, err := s.Schedule(0.5)
	require.NoError(t, err)
	assert.Len(t, tl.Segments, 4)
	assert.InDelta(t, 3.2, tl.Duration(), 1e-9)
}

func TestAnimatedAlternate_Properties(t *testing.T) {
	sets := testSets(5, 7, 4)
	longest := math.Max(float64(7)*DefaultWalkSegment, float64(5)*DefaultTalkSegment*DefaultTalkRepeats)

	for seed := int64(1); seed <= 40; seed++ {
		audio := float64(seed) * 2.37
		s := NewAnimated(sets, newBuilder(), rand.New(rand.NewSource(seed)), Options{Mode: ModeAlternate})
		tl, err := s.Schedule(audio)
		require.NoError(t, err)

		total := tl.Duration()
		assert.GreaterOrEqual(t, total, audio-1e-9)
		assert.Less(t, total, audio+longest)
		for _, seg := range tl.Segments {
			assert.Zero(t, seg.Width%2)
			assert.Zero(t, seg.Height%2)
		}
	}
}

func TestAnimatedAlternate_Reproducible(t *testing.T) {
	sets := testSets(3, 4, 5)
	run := func() []string {
		s := NewAnimated(sets, newBuilder(), rand.New(rand.NewSource(42)), Options{})
		tl, err := s.Schedule(33.3)
		require.NoError(t, err)
		return paths(tl)
	}
	assert.Equal(t, run(), run())
}

func TestAnimated_Errors(t *testing.T) {
	s := NewAnimated(testSets(1, 1, 1), newBuilder(), nil, Options{Mode: ModeIntro})
	_, err := s.Schedule(0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	s = NewAnimated(frames.Sets{Talk: []string{"t-1.png"}}, newBuilder(), nil, Options{})
	_, err = s.Schedule(3)
	assert.ErrorIs(t, err, frames.ErrMissingAnimationAssets)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAlternate, m)

	m, err = ParseMode("intro")
	require.NoError(t, err)
	assert.Equal(t, ModeIntro, m)

	_, err = ParseMode("shuffle")
	assert.Error(t, err)
}

func TestWindows(t *testing.T) {
	tests := []struct {
		total float64
		want  []float64
	}{
		{12, []float64{5, 5, 2}},
		{10, []float64{5, 5}},
		{3, []float64{3}},
		{5.5, []float64{5, 0.5}},
	}

	for _, tt := range tests {
		got := Windows(tt.total, WindowDuration)
		require.Len(t, got, int(math.Ceil(tt.total/WindowDuration)))
		assert.InDeltaSlice(t, tt.want, got, 1e-9)
		last := tt.total - WindowDuration*float64(len(got)-1)
		assert.InDelta(t, last, got[len(got)-1], 1e-9)
	}
}

func TestFades(t *testing.T) {
	in, out := Fades(0, 1)
	assert.Zero(t, in)
	assert.Zero(t, out)

	n := 4
	for i := 0; i < n; i++ {
		in, out := Fades(i, n)
		switch i {
		case 0:
			assert.Equal(t, [2]float64{0, 1}, [2]float64{in, out})
		case n - 1:
			assert.Equal(t, [2]float64{1, 0}, [2]float64{in, out})
		default:
			assert.Equal(t, [2]float64{1, 1}, [2]float64{in, out})
		}
	}
}

func TestStatic_Schedule(t *testing.T) {
	builder := segment.NewBuilder(segment.StaticScale, anySize{1281, 720})
	rng := &scripted{ints: []int{2, 0, 2}}
	s := NewStatic([]string{"a.jpg", "b.jpg", "c.jpg"}, "hero.png", builder, rng)

	tl, err := s.Schedule(10.5)
	require.NoError(t, err)
	require.Len(t, tl.Segments, 3)
	assert.Equal(t, KindStatic, tl.Kind)

	bgs := []string{tl.Segments[0].Background.Path, tl.Segments[1].Background.Path, tl.Segments[2].Background.Path}
	assert.Equal(t, []string{"c.jpg", "a.jpg", "c.jpg"}, bgs)

	assert.Equal(t, 0.0, tl.Segments[0].FadeIn)
	assert.Equal(t, 1.0, tl.Segments[0].FadeOut)
	assert.Equal(t, 1.0, tl.Segments[1].FadeIn)
	assert.Equal(t, 1.0, tl.Segments[1].FadeOut)
	// the 0.5s tail cannot hold a full second of fade
	assert.InDelta(t, 0.5, tl.Segments[2].FadeIn, 1e-9)
	assert.Equal(t, 0.0, tl.Segments[2].FadeOut)

	for _, seg := range tl.Segments {
		assert.Equal(t, "hero.png", seg.Character.Path)
		assert.Equal(t, segment.Center, seg.Position)
		assert.Equal(t, 1282, seg.Width)
	}
	assert.InDelta(t, 10.5, tl.Duration(), 1e-9)
}

func TestStatic_SingleWindowHasNoFades(t *testing.T) {
	builder := segment.NewBuilder(segment.StaticScale, anySize{640, 480})
	s := NewStatic([]string{"bg.png"}, "hero.png", builder, rand.New(rand.NewSource(7)))

	tl, err := s.Schedule(4.2)
	require.NoError(t, err)
	require.Len(t, tl.Segments, 1)
	assert.Zero(t, tl.Segments[0].FadeIn)
	assert.Zero(t, tl.Segments[0].FadeOut)
}

func TestStatic_EmptyPool(t *testing.T) {
	s := NewStatic(nil, "hero.png", newBuilder(), rand.New(rand.NewSource(1)))
	_, err := s.Schedule(12)
	assert.ErrorIs(t, err, ErrMissingBackgroundAssets)
}

func TestTimelineBounds(t *testing.T) {
	tl := &Timeline{Segments: []segment.Segment{
		{Width: 300, Height: 200},
		{Width: 120, Height: 420},
	}}
	w, h := tl.Bounds()
	assert.Equal(t, 300, w)
	assert.Equal(t, 420, h)
}

func TestTimelineWriteRead(t *testing.T) {
	s := NewAnimated(testSets(2, 2, 2), newBuilder(), nil, Options{Mode: ModeIntro})
	tl, err := s.Schedule(5)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "timeline.yaml")
	require.NoError(t, WriteTimeline(tl, path))

	read, err := ReadTimeline(path)
	require.NoError(t, err)
	assert.Equal(t, tl.Kind, read.Kind)
	assert.Equal(t, paths(tl), paths(read))
	assert.InDelta(t, tl.Duration(), read.Duration(), 1e-9)
}
