// Package config собирает настройки из значений по умолчанию, YAML-файла,
// .env и переменных окружения. Флаги командной строки накладываются в cmd.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/deck2video/internal/scheduler"
)

const (
	EnvAPIKey       = "ELEVENLABS_API_KEY"
	EnvAPIKeyLegacy = "ELEVENLABS_API"
	EnvPrefix       = "DECK2VIDEO_"
)

type Config struct {
	Character string `yaml:"character"`
	Mode      string `yaml:"mode"`

	AssetsDir   string `yaml:"assets_dir"`
	CatalogPath string `yaml:"catalog"`
	DecksDir    string `yaml:"decks_dir"`
	WorkDir     string `yaml:"work_dir"`
	OutputDir   string `yaml:"output_dir"`
	DBPath      string `yaml:"db_path"`

	PublicURL    string `yaml:"public_url"`
	WriteQR      bool   `yaml:"qr"`
	DumpTimeline bool   `yaml:"dump_timeline"`

	WalkSegment float64 `yaml:"walk_segment"`
	TalkSegment float64 `yaml:"talk_segment"`
	TalkRepeats int     `yaml:"talk_repeats"`
	Seed        int64   `yaml:"seed"`

	FPS        int    `yaml:"fps"`
	Threads    int    `yaml:"threads"`
	Parallel   int    `yaml:"parallel"`
	FFmpegPath string `yaml:"ffmpeg"`

	ElevenLabsKey string `yaml:"-"`
	ElevenLabsURL string `yaml:"elevenlabs_url"`
	TTSRetries    int    `yaml:"tts_retries"`

	Verbose      bool   `yaml:"verbose"`
	ShowStats    bool   `yaml:"show_stats"`
	BuildVersion string `yaml:"-"`
}

func Default() *Config {
	return &Config{
		Character:     "doraemon",
		Mode:          string(scheduler.ModeAlternate),
		AssetsDir:     "assets",
		DecksDir:      "input/decks",
		WorkDir:       "uploads",
		OutputDir:     "output",
		DBPath:        "output/jobs.db",
		WalkSegment:   scheduler.DefaultWalkSegment,
		TalkSegment:   scheduler.DefaultTalkSegment,
		TalkRepeats:   scheduler.DefaultTalkRepeats,
		FPS:           24,
		Parallel:      2,
		FFmpegPath:    "ffmpeg",
		ElevenLabsURL: "https://api.elevenlabs.io",
		TTSRetries:    3,
	}
}

// Load читает YAML (если path задан), затем .env из текущей папки и окружение.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile переносит переменные из .env в окружение процесса. Уже
// заданные переменные не перезаписываются, отсутствие файла не ошибка.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv накладывает переменные окружения поверх текущих значений.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIKeyLegacy); ok && v != "" {
		c.ElevenLabsKey = v
	}
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.ElevenLabsKey = v
	}

	strs := map[string]*string{
		"CHARACTER":      &c.Character,
		"MODE":           &c.Mode,
		"ASSETS_DIR":     &c.AssetsDir,
		"CATALOG":        &c.CatalogPath,
		"DECKS_DIR":      &c.DecksDir,
		"WORK_DIR":       &c.WorkDir,
		"OUTPUT_DIR":     &c.OutputDir,
		"DB_PATH":        &c.DBPath,
		"PUBLIC_URL":     &c.PublicURL,
		"FFMPEG":         &c.FFmpegPath,
		"ELEVENLABS_URL": &c.ElevenLabsURL,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"FPS":         &c.FPS,
		"THREADS":     &c.Threads,
		"PARALLEL":    &c.Parallel,
		"TTS_RETRIES": &c.TTSRetries,
	}
	for name, dst := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSEED: %w", EnvPrefix, err)
		}
		c.Seed = n
	}
	if v, ok := lookup(EnvPrefix + "QR"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sQR: %w", EnvPrefix, err)
		}
		c.WriteQR = b
	}
	return nil
}

// Validate проверяет значения, которые иначе упали бы глубоко в пайплайне.
func (c *Config) Validate() error {
	if _, err := scheduler.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.WalkSegment <= 0 || c.TalkSegment <= 0 {
		return errors.New("walk and talk segment durations must be positive")
	}
	if c.TalkRepeats < 1 {
		return fmt.Errorf("talk repeats must be at least 1, got %d", c.TalkRepeats)
	}
	if c.Parallel < 1 {
		c.Parallel = 1
	}
	return nil
}

// ScheduleOptions переводит настройки в параметры аниматора.
func (c *Config) ScheduleOptions() scheduler.Options {
	mode, _ := scheduler.ParseMode(c.Mode)
	return scheduler.Options{
		WalkSegment: c.WalkSegment,
		TalkSegment: c.TalkSegment,
		TalkRepeats: c.TalkRepeats,
		Mode:        mode,
	}
}
