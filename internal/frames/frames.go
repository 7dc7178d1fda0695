package frames

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrMissingAnimationAssets is returned when one of the required frame sets is empty.
var ErrMissingAnimationAssets = errors.New("missing animation assets")

// Role identifies an animation set of a character.
type Role string

const (
	RoleTalk      Role = "talk"
	RoleWalkLeft  Role = "walk_left"
	RoleWalkRight Role = "walk_right"
)

// Rand is the source of randomness used to pick a talk variant.
type Rand interface {
	Intn(n int) int
}

// Repository lists the ordered frame paths of one animation set.
type Repository interface {
	ListFrames(character string, role Role, variant string) ([]string, error)
}

// Sets holds the three animation sets of a character.
type Sets struct {
	Talk      []string
	WalkLeft  []string
	WalkRight []string
	// Variant is the talk folder chosen for this run.
	Variant string
}

// Resolve picks one talk variant at random and loads all three sets.
// Any empty set aborts with ErrMissingAnimationAssets.
func Resolve(repo Repository, character string, variants []string, rng Rand) (Sets, error) {
	if len(variants) == 0 {
		return Sets{}, fmt.Errorf("%w: %s has no talk variants", ErrMissingAnimationAssets, character)
	}
	variant := variants[rng.Intn(len(variants))]

	sets := Sets{Variant: variant}
	targets := []struct {
		role Role
		dst  *[]string
	}{
		{RoleTalk, &sets.Talk},
		{RoleWalkLeft, &sets.WalkLeft},
		{RoleWalkRight, &sets.WalkRight},
	}

	for _, t := range targets {
		list, err := repo.ListFrames(character, t.role, variant)
		if err != nil {
			return Sets{}, fmt.Errorf("list %s frames of %s: %w", t.role, character, err)
		}
		if len(list) == 0 {
			return Sets{}, fmt.Errorf("%w: %s/%s", ErrMissingAnimationAssets, character, t.role)
		}
		*t.dst = list
	}

	return sets, nil
}

var frameNumberRe = regexp.MustCompile(`(\d+)\.(?i:png|jpe?g)$`)

// Sort orders frame paths by the number right before the extension.
// Paths without such a number are dropped.
func Sort(paths []string) []string {
	type numbered struct {
		n    int
		path string
	}

	var list []numbered
	for _, p := range paths {
		m := frameNumberRe.FindStringSubmatch(filepath.Base(p))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		list = append(list, numbered{n: n, path: p})
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].n < list[j].n
	})

	sorted := make([]string, 0, len(list))
	for _, f := range list {
		sorted = append(sorted, f.path)
	}
	return sorted
}

// FSRepository reads frames from a directory tree:
//
//	<root>/<character>/talk/<variant>/talk-N.png
//	<root>/<character>/walk/left/walk-N.png
//	<root>/<character>/walk/right/walk-N.png
type FSRepository struct {
	Root string
}

func NewFSRepository(root string) *FSRepository {
	return &FSRepository{Root: root}
}

func (r *FSRepository) ListFrames(character string, role Role, variant string) ([]string, error) {
	var dir, prefix string
	switch role {
	case RoleTalk:
		dir, prefix = filepath.Join(r.Root, character, "talk", variant), "talk-"
	case RoleWalkLeft:
		dir, prefix = filepath.Join(r.Root, character, "walk", "left"), "walk-"
	case RoleWalkRight:
		dir, prefix = filepath.Join(r.Root, character, "walk", "right"), "walk-"
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return Sort(paths), nil
}

// ListImages returns the png/jpg files of dir in lexical order. A missing
// directory yields an empty list.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
