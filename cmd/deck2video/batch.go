package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/deck2video/internal/character"
	"github.com/ivlev/deck2video/internal/config"
	"github.com/ivlev/deck2video/internal/engine"
	"github.com/ivlev/deck2video/internal/jobs"
	"github.com/ivlev/deck2video/internal/logging"
	"github.com/ivlev/deck2video/internal/slides"
	"github.com/ivlev/deck2video/internal/system"
	"github.com/ivlev/deck2video/internal/tts"
	"github.com/ivlev/deck2video/internal/video"
)

const (
	exitOK    = 0
	exitInfra = 1
	exitInput = 2
)

// batch собирает несколько презентаций параллельно. Запросы независимы и
// не делят изменяемого состояния, кроме журнала задач.
type batch struct {
	cfg      *config.Config
	catalog  *character.Catalog
	ledger   jobs.Ledger
	progress bool
}

func (b *batch) run(ctx context.Context, inputs []string) []error {
	extractor := slides.New(logging.WithComponent("slides"))

	speech := tts.NewElevenLabs(b.cfg.ElevenLabsKey, logging.WithComponent("tts"))
	speech.BaseURL = b.cfg.ElevenLabsURL
	speech.Retries = b.cfg.TTSRetries
	speech.Join = tts.FFmpegConcat(b.cfg.FFmpegPath)

	workers := b.cfg.Parallel
	if workers > len(inputs) {
		workers = len(inputs)
	}
	threads := encoderThreads(b.cfg.Threads, workers)
	log.Debug().Int("parallel", workers).Int("threads", threads).Str("memory", system.MemoryReport()).Msg("старт")

	errs := make([]error, len(inputs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, input := range inputs {
		g.Go(func() error {
			renderer := video.NewFFmpegEngine(threads, logging.WithComponent("video"))
			renderer.FFmpegPath = b.cfg.FFmpegPath
			renderer.FPS = b.cfg.FPS
			var bar *progressbar.ProgressBar
			if b.progress {
				renderer.Progress = func(done, total int) {
					if bar == nil {
						bar = progressbar.Default(int64(total), "Кодирование")
					}
					bar.Set(done)
				}
			}

			project := engine.NewVideoProject(b.cfg, b.catalog, extractor, speech, renderer, b.ledger, logging.WithComponent("engine"))
			res, err := project.Run(ctx, engine.Request{Input: input, Character: b.cfg.Character})
			if bar != nil {
				bar.Finish()
			}
			if err != nil {
				errs[i] = err
				log.Error().Err(err).Str("input", input).Bool("input_error", engine.IsInputError(err)).Msg("сборка не удалась")
				return nil
			}

			ev := log.Info().Str("input", input).Str("id", res.ID).Str("video", res.VideoPath)
			if res.URL != "" {
				ev = ev.Str("url", res.URL)
			}
			ev.Msg("[+++] Успех!")
			return nil
		})
	}
	g.Wait()
	return errs
}

// encoderThreads делит ядра между одновременными сборками.
func encoderThreads(limit, workers int) int {
	n := system.EncoderThreads(limit)
	if limit <= 0 && workers > 1 {
		n /= workers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// exitCode: 2, если все ошибки во входных данных; 1 при любом сбое
// инфраструктуры.
func exitCode(errs []error) int {
	code := exitOK
	for _, err := range errs {
		switch {
		case err == nil:
		case engine.IsInputError(err) && code == exitOK:
			code = exitInput
		case !engine.IsInputError(err):
			return exitInfra
		}
	}
	return code
}
