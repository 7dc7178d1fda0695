package audio

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Track is an opened narration file with its duration. The file handle is
// held until Close so the track cannot be swapped under a running render.
type Track struct {
	Path     string
	Duration float64

	f    *os.File
	once sync.Once
}

// Prober reports the duration of a media file in seconds.
type Prober func(path string) (float64, error)

// Open opens path and reads its duration with ffprobe.
func Open(path string) (*Track, error) {
	return OpenWith(path, ProbeDuration)
}

func OpenWith(path string, probe Prober) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	d, err := probe(path)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	if d <= 0 {
		f.Close()
		return nil, fmt.Errorf("audio %s has no duration", path)
	}

	return &Track{Path: path, Duration: d, f: f}, nil
}

// Close releases the track. It is safe to call more than once.
func (t *Track) Close() error {
	var err error
	t.once.Do(func() {
		if t.f != nil {
			err = t.f.Close()
		}
	})
	return err
}

func ProbeDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(out)))
	}

	var duration float64
	_, err = fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &duration)
	if err != nil {
		return 0, err
	}

	return duration, nil
}
