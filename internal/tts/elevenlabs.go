package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL  = "https://api.elevenlabs.io"
	DefaultModel    = "eleven_monolingual_v1"
	DefaultMaxChunk = 2500
)

var ErrNoAPIKey = errors.New("elevenlabs api key is not set")

// APIError is a non-2xx answer from the synthesis endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("elevenlabs: status %d: %s", e.Status, e.Body)
}

// Temporary reports whether the request is worth repeating.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Joiner merges chunk files, in order, into out.
type Joiner func(ctx context.Context, parts []string, out string) error

// ElevenLabs synthesizes speech through the ElevenLabs REST API.
type ElevenLabs struct {
	APIKey   string
	BaseURL  string
	Model    string
	MaxChunk int
	Retries  int
	Backoff  time.Duration
	Client   *http.Client
	Join     Joiner
	Logger   zerolog.Logger
}

func NewElevenLabs(apiKey string, logger zerolog.Logger) *ElevenLabs {
	return &ElevenLabs{
		APIKey:   apiKey,
		BaseURL:  DefaultBaseURL,
		Model:    DefaultModel,
		MaxChunk: DefaultMaxChunk,
		Retries:  3,
		Backoff:  time.Second,
		Client:   &http.Client{Timeout: 2 * time.Minute},
		Join:     FFmpegConcat("ffmpeg"),
		Logger:   logger,
	}
}

type speechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize writes the narration for text to outPath as MP3. On failure
// outPath does not exist.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voice, outPath string) error {
	if e.APIKey == "" {
		return ErrNoAPIKey
	}
	chunks := Chunk(text, e.MaxChunk)
	if len(chunks) == 0 {
		return errors.New("nothing to synthesize")
	}

	if len(chunks) == 1 {
		return e.synthesizeChunk(ctx, chunks[0], voice, outPath)
	}

	dir, err := os.MkdirTemp(filepath.Dir(outPath), "tts_")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = filepath.Join(dir, fmt.Sprintf("part-%03d.mp3", i))
		if err := e.synthesizeChunk(ctx, c, voice, parts[i]); err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}

	e.Logger.Debug().Int("chunks", len(parts)).Str("output", outPath).Msg("joining speech chunks")
	if err := e.Join(ctx, parts, outPath); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("join chunks: %w", err)
	}
	return nil
}

func (e *ElevenLabs) synthesizeChunk(ctx context.Context, text, voice, out string) error {
	backoff := e.Backoff
	var err error
	for attempt := 0; attempt <= e.Retries; attempt++ {
		if attempt > 0 {
			e.Logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying speech request")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err = e.request(ctx, text, voice, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

func (e *ElevenLabs) request(ctx context.Context, text, voice, out string) error {
	body, err := json.Marshal(speechRequest{Text: text, ModelID: e.Model})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.BaseURL, voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(out)
		return fmt.Errorf("read audio: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(out)
		return err
	}
	return nil
}
