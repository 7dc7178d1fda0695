package frames

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo map[string][]string

func (m memRepo) ListFrames(character string, role Role, variant string) ([]string, error) {
	key := character + "/" + string(role)
	if role == RoleTalk {
		key += "/" + variant
	}
	return m[key], nil
}

type fixedRand int

func (f fixedRand) Intn(n int) int { return int(f) % n }

func TestSort(t *testing.T) {
	in := []string{
		"a/talk-10.png",
		"a/talk-2.png",
		"a/talk-1.PNG",
		"a/cover.png",
		"a/talk-3.jpg",
		"a/talk-x.png",
		"a/talk-4.gif",
	}

	got := Sort(in)
	assert.Equal(t, []string{"a/talk-1.PNG", "a/talk-2.png", "a/talk-3.jpg", "a/talk-10.png"}, got)
}

func TestResolve(t *testing.T) {
	repo := memRepo{
		"doraemon/talk/set1":  {"t1-1", "t1-2"},
		"doraemon/talk/set2":  {"t2-1"},
		"doraemon/walk_left":  {"l1", "l2"},
		"doraemon/walk_right": {"r1"},
	}

	sets, err := Resolve(repo, "doraemon", []string{"set1", "set2"}, fixedRand(1))
	require.NoError(t, err)
	assert.Equal(t, "set2", sets.Variant)
	assert.Equal(t, []string{"t2-1"}, sets.Talk)
	assert.Equal(t, []string{"l1", "l2"}, sets.WalkLeft)
	assert.Equal(t, []string{"r1"}, sets.WalkRight)
}

func TestResolve_MissingSet(t *testing.T) {
	tests := []struct {
		name string
		repo memRepo
	}{
		{"no talk", memRepo{"c/walk_left": {"l"}, "c/walk_right": {"r"}}},
		{"no left", memRepo{"c/talk/set1": {"t"}, "c/walk_right": {"r"}}},
		{"no right", memRepo{"c/talk/set1": {"t"}, "c/walk_left": {"l"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.repo, "c", []string{"set1"}, fixedRand(0))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingAnimationAssets))
		})
	}
}

func TestResolve_NoVariants(t *testing.T) {
	_, err := Resolve(memRepo{}, "c", nil, fixedRand(0))
	assert.ErrorIs(t, err, ErrMissingAnimationAssets)
}

func TestFSRepository(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"bheem/talk/set1/talk-2.png",
		"bheem/talk/set1/talk-1.png",
		"bheem/talk/set1/notes.txt",
		"bheem/walk/left/walk-1.png",
		"bheem/walk/right/walk-3.png",
		"bheem/walk/right/walk-12.png",
	}
	for _, f := range files {
		p := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}

	repo := NewFSRepository(root)

	talk, err := repo.ListFrames("bheem", RoleTalk, "set1")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "bheem/talk/set1/talk-1.png"),
		filepath.Join(root, "bheem/talk/set1/talk-2.png"),
	}, talk)

	right, err := repo.ListFrames("bheem", RoleWalkRight, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "bheem/walk/right/walk-3.png"),
		filepath.Join(root, "bheem/walk/right/walk-12.png"),
	}, right)

	missing, err := repo.ListFrames("bheem", RoleTalk, "set2")
	require.NoError(t, err)
	assert.Empty(t, missing)

	_, err = Resolve(repo, "bheem", []string{"set2"}, fixedRand(0))
	assert.ErrorIs(t, err, ErrMissingAnimationAssets)
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.JPG", "a.png", "notes.txt", "c.jpeg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0755))

	images, err := ListImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.JPG"),
		filepath.Join(dir, "c.jpeg"),
	}, images)

	missing, err := ListImages(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}
