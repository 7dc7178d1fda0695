// Package character holds the catalog of selectable narrators: how each one
// is animated, which voice reads the narration and how it greets the viewer.
package character

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/deck2video/internal/scheduler"
)

//go:embed characters.yaml
var defaultCatalog []byte

// ErrUnsupportedCharacter is returned for an id missing from the catalog.
var ErrUnsupportedCharacter = errors.New("unsupported character")

// Kind selects the scheduler variant used for a character.
type Kind = scheduler.Kind

const (
	Animated = scheduler.KindAnimated
	Static   = scheduler.KindStatic
)

type Character struct {
	ID        string `yaml:"-"`
	Name      string `yaml:"name"`
	Kind      Kind   `yaml:"kind"`
	Voice     string `yaml:"voice"`
	VoiceName string `yaml:"voice_name"`
	Greeting  string `yaml:"greeting"`

	// Animated characters.
	TalkVariants []string `yaml:"talk_variants"`

	// Static characters.
	Image       string `yaml:"image"`
	Backgrounds string `yaml:"backgrounds"`
}

// GreetingText is the sentence spoken before the first slide.
func (c Character) GreetingText() string {
	if c.Greeting != "" {
		return c.Greeting
	}
	return fmt.Sprintf("Hi, I'm %s. Let's start the presentation!", c.Name)
}

func (c Character) validate() error {
	if c.Voice == "" {
		return errors.New("voice is required")
	}
	switch c.Kind {
	case Animated:
		if len(c.TalkVariants) == 0 {
			return errors.New("animated character needs talk_variants")
		}
	case Static:
		if c.Image == "" || c.Backgrounds == "" {
			return errors.New("static character needs image and backgrounds")
		}
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	return nil
}

type Catalog struct {
	Characters map[string]Character `yaml:"characters"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file; an empty path means the embedded one.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse character catalog: %w", err)
	}
	for id, ch := range c.Characters {
		ch.ID = id
		if ch.Name == "" {
			ch.Name = id
		}
		if err := ch.validate(); err != nil {
			return nil, fmt.Errorf("character %q: %w", id, err)
		}
		c.Characters[id] = ch
	}
	return &c, nil
}

func (c *Catalog) Lookup(id string) (Character, error) {
	ch, ok := c.Characters[id]
	if !ok {
		return Character{}, fmt.Errorf("%w: %q", ErrUnsupportedCharacter, id)
	}
	return ch, nil
}

// IDs lists the catalog in alphabetical order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Characters))
	for id := range c.Characters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
