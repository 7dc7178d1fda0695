package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ivlev/deck2video/internal/audio"
	"github.com/ivlev/deck2video/internal/character"
	"github.com/ivlev/deck2video/internal/config"
	"github.com/ivlev/deck2video/internal/frames"
	"github.com/ivlev/deck2video/internal/jobs"
	"github.com/ivlev/deck2video/internal/logging"
	"github.com/ivlev/deck2video/internal/scheduler"
	"github.com/ivlev/deck2video/internal/segment"
	"github.com/ivlev/deck2video/internal/share"
	"github.com/ivlev/deck2video/internal/slides"
	"github.com/ivlev/deck2video/internal/system"
	"github.com/ivlev/deck2video/internal/tts"
	"github.com/ivlev/deck2video/internal/video"
)

var (
	// ErrEmptyNarration: в презентации нет текста для озвучки.
	ErrEmptyNarration = errors.New("no narration text in deck")
	// ErrSynthesis: внешний синтезатор речи не вернул аудио.
	ErrSynthesis = errors.New("speech synthesis failed")
)

// IsInputError отличает «нечего или не из чего собирать» от сбоя
// инфраструктуры (TTS, ffmpeg, диск).
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyNarration) ||
		errors.Is(err, character.ErrUnsupportedCharacter) ||
		errors.Is(err, frames.ErrMissingAnimationAssets) ||
		errors.Is(err, scheduler.ErrMissingBackgroundAssets)
}

// Request описывает одну презентацию и выбранного персонажа.
type Request struct {
	Input     string
	Character string
}

type Result struct {
	ID            string
	VideoPath     string
	URL           string
	QRPath        string
	TimelinePath  string
	AudioDuration float64
	VideoDuration float64
	Elapsed       time.Duration
}

// VideoProject связывает извлечение текста, синтез речи, планировщик и
// рендер в один синхронный пайплайн на запрос.
type VideoProject struct {
	Config     *config.Config
	Catalog    *character.Catalog
	Frames     frames.Repository
	Slides     slides.Extractor
	Speech     tts.Synthesizer
	Renderer   video.Renderer
	Ledger     jobs.Ledger
	Probe      audio.Prober
	Dimensions segment.DimensionReader
	NewID      func() string
	NewRand    func() *rand.Rand
	Logger     zerolog.Logger
}

func NewVideoProject(cfg *config.Config, catalog *character.Catalog, ext slides.Extractor, speech tts.Synthesizer, r video.Renderer, ledger jobs.Ledger, logger zerolog.Logger) *VideoProject {
	return &VideoProject{
		Config:   cfg,
		Catalog:  catalog,
		Frames:   frames.NewFSRepository(filepath.Join(cfg.AssetsDir, "characters")),
		Slides:   ext,
		Speech:   speech,
		Renderer: r,
		Ledger:   ledger,
		Probe:    audio.ProbeDuration,
		NewID:    uuid.NewString,
		NewRand: func() *rand.Rand {
			seed := cfg.Seed
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			return rand.New(rand.NewSource(seed))
		},
		Logger: logger,
	}
}

// Run собирает видео {id}.mp4 в OutputDir. Ассеты персонажа проверяются до
// синтеза и кодирования.
func (p *VideoProject) Run(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	id := p.NewID()
	log := logging.WithRequest(p.Logger, id)

	if p.Ledger != nil {
		if lerr := p.Ledger.Start(ctx, &jobs.Job{ID: id, Character: req.Character, Input: req.Input}); lerr != nil {
			log.Warn().Err(lerr).Msg("не удалось записать задачу в журнал")
		}
		defer func() {
			if err == nil {
				return
			}
			if lerr := p.Ledger.Fail(context.WithoutCancel(ctx), id, err); lerr != nil {
				log.Warn().Err(lerr).Msg("не удалось отметить ошибку в журнале")
			}
		}()
	}

	ch, err := p.Catalog.Lookup(req.Character)
	if err != nil {
		return nil, err
	}

	rng := p.NewRand()
	sched, err := p.newScheduler(ch, rng)
	if err != nil {
		return nil, err
	}

	texts := p.Slides.Extract(req.Input)
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyNarration, req.Input)
	}
	narration := ch.GreetingText() + " " + strings.Join(texts, " ")
	log.Info().Str("input", req.Input).Str("character", ch.ID).Int("slides", len(texts)).Msg("текст извлечен")

	for _, d := range []string{p.Config.WorkDir, p.Config.OutputDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, err
		}
	}

	audioPath := filepath.Join(p.Config.WorkDir, id+"_audio.mp3")
	defer os.Remove(audioPath)

	ttsStart := time.Now()
	if err := p.Speech.Synthesize(ctx, narration, ch.Voice, audioPath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	ttsTime := time.Since(ttsStart)

	probe := p.Probe
	if probe == nil {
		probe = audio.ProbeDuration
	}
	track, err := audio.OpenWith(audioPath, probe)
	if err != nil {
		return nil, err
	}

	tl, err := sched.Schedule(track.Duration)
	if err != nil {
		track.Close()
		return nil, err
	}

	res = &Result{
		ID:            id,
		VideoPath:     filepath.Join(p.Config.OutputDir, id+".mp4"),
		AudioDuration: track.Duration,
		VideoDuration: tl.Duration(),
	}
	log.Info().
		Str("kind", string(tl.Kind)).
		Int("segments", len(tl.Segments)).
		Float64("audio", res.AudioDuration).
		Float64("video", res.VideoDuration).
		Msg("таймлайн построен")

	if p.Config.DumpTimeline {
		res.TimelinePath = filepath.Join(p.Config.OutputDir, id+".timeline.yaml")
		if err := scheduler.WriteTimeline(tl, res.TimelinePath); err != nil {
			track.Close()
			return nil, fmt.Errorf("timeline dump: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		track.Close()
		return nil, err
	}

	renderStart := time.Now()
	err = p.Renderer.Render(video.Job{
		Timeline: tl,
		Audio:    track,
		Output:   res.VideoPath,
		Preset:   video.PresetFor(tl.Kind),
	})
	if err != nil {
		return nil, err
	}
	renderTime := time.Since(renderStart)

	if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("не удалось удалить промежуточное аудио")
	}

	res.URL = share.VideoURL(p.Config.PublicURL, id)
	if p.Config.WriteQR && res.URL != "" {
		qr := filepath.Join(p.Config.OutputDir, id+".png")
		if err := share.WriteQR(res.URL, qr); err != nil {
			log.Warn().Err(err).Msg("QR-код не создан")
		} else {
			res.QRPath = qr
		}
	}

	if p.Ledger != nil {
		if lerr := p.Ledger.Finish(ctx, id, res.VideoPath, res.AudioDuration, res.VideoDuration); lerr != nil {
			log.Warn().Err(lerr).Msg("не удалось отметить завершение в журнале")
		}
	}

	res.Elapsed = time.Since(start)
	if p.Config.ShowStats {
		log.Info().
			Str("build", p.Config.BuildVersion).
			Dur("total", res.Elapsed).
			Dur("tts", ttsTime).
			Dur("render", renderTime).
			Str("memory", system.MemoryReport()).
			Msg("производительность")
	}
	log.Info().Str("output", res.VideoPath).Str("url", res.URL).Msg("видео готово")
	return res, nil
}

// newScheduler проверяет ассеты персонажа и выбирает вариант планировщика
// по типу персонажа.
func (p *VideoProject) newScheduler(ch character.Character, rng *rand.Rand) (scheduler.Scheduler, error) {
	switch ch.Kind {
	case character.Animated:
		sets, err := frames.Resolve(p.Frames, ch.ID, ch.TalkVariants, rng)
		if err != nil {
			return nil, err
		}
		builder := segment.NewBuilder(segment.CharacterScale, p.Dimensions)
		return scheduler.NewAnimated(sets, builder, rng, p.Config.ScheduleOptions()), nil

	case character.Static:
		image := filepath.Join(p.Config.AssetsDir, ch.Image)
		if _, err := os.Stat(image); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", frames.ErrMissingAnimationAssets, image, err)
		}
		backgrounds, err := frames.ListImages(filepath.Join(p.Config.AssetsDir, ch.Backgrounds))
		if err != nil {
			return nil, err
		}
		if len(backgrounds) == 0 {
			return nil, fmt.Errorf("%w: %s", scheduler.ErrMissingBackgroundAssets, ch.Backgrounds)
		}
		builder := segment.NewBuilder(segment.StaticScale, p.Dimensions)
		return scheduler.NewStatic(backgrounds, image, builder, rng), nil
	}
	return nil, fmt.Errorf("%w: %q has unknown kind %q", character.ErrUnsupportedCharacter, ch.ID, ch.Kind)
}
