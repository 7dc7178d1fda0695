package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FFmpegConcat joins MP3 parts with the concat demuxer without re-encoding.
func FFmpegConcat(ffmpegPath string) Joiner {
	return func(ctx context.Context, parts []string, out string) error {
		list, err := writeConcatList(parts)
		if err != nil {
			return fmt.Errorf("failed to create concat file: %w", err)
		}
		defer os.Remove(list)

		cmd := exec.CommandContext(ctx, ffmpegPath,
			"-y", "-hide_banner", "-loglevel", "error",
			"-f", "concat", "-safe", "0",
			"-i", list,
			"-c", "copy",
			out,
		)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("ffmpeg concat: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil
	}
}

func writeConcatList(parts []string) (string, error) {
	f, err := os.CreateTemp("", "deck2video-concat-*.txt")
	if err != nil {
		return "", err
	}
	defer f.Close()

	for _, p := range parts {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		if _, err := fmt.Fprintf(f, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`)); err != nil {
			return "", err
		}
	}
	return f.Name(), nil
}
