package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ivlev/deck2video/internal/character"
	"github.com/ivlev/deck2video/internal/config"
	"github.com/ivlev/deck2video/internal/jobs"
	"github.com/ivlev/deck2video/internal/logging"
	"github.com/ivlev/deck2video/internal/system"
)

var buildVersion = "dev"

type flagValues struct {
	configPath   string
	inputs       multiFlag
	latest       bool
	character    string
	mode         string
	outputDir    string
	publicURL    string
	qr           bool
	dumpTimeline bool
	seed         int64
	threads      int
	parallel     int
	verbose      bool
	stats        bool
	listChars    bool
	listJobs     int
}

type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	def := config.Default()
	fs := flag.NewFlagSet("deck2video", flag.ContinueOnError)
	var fv flagValues
	fs.StringVar(&fv.configPath, "config", "", "YAML-файл настроек")
	fs.Var(&fv.inputs, "input", "Презентация .pdf или .pptx (можно повторять; также позиционные аргументы)")
	fs.BoolVar(&fv.latest, "latest", false, "Взять самую свежую презентацию из decks_dir")
	fs.StringVar(&fv.character, "character", def.Character, "Персонаж из каталога (см. -list-characters)")
	fs.StringVar(&fv.mode, "mode", def.Mode, "Сценарий анимации: intro или alternate")
	fs.StringVar(&fv.outputDir, "output", def.OutputDir, "Папка для {id}.mp4")
	fs.StringVar(&fv.publicURL, "public-url", "", "Базовый URL страницы видео ({url}/video/{id})")
	fs.BoolVar(&fv.qr, "qr", false, "Сохранить QR-код ссылки рядом с видео (нужен -public-url)")
	fs.BoolVar(&fv.dumpTimeline, "dump-timeline", false, "Сохранить таймлайн в YAML")
	fs.Int64Var(&fv.seed, "seed", 0, "Зерно генератора (0 - случайное)")
	fs.IntVar(&fv.threads, "threads", 0, "Потоки x264 (0 - по числу физических ядер)")
	fs.IntVar(&fv.parallel, "parallel", def.Parallel, "Сколько презентаций собирать одновременно")
	fs.BoolVar(&fv.verbose, "v", false, "Подробный лог")
	fs.BoolVar(&fv.stats, "stats", false, "Показать статистику производительности")
	fs.BoolVar(&fv.listChars, "list-characters", false, "Показать доступных персонажей и выйти")
	fs.IntVar(&fv.listJobs, "jobs", 0, "Показать последние N задач из журнала и выйти")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	logging.Init(fv.verbose)
	system.InitResourceLimits()

	cfg, err := config.Load(fv.configPath)
	if err != nil {
		log.Error().Err(err).Msg("ошибка конфигурации")
		return 2
	}
	applyFlags(fs, &fv, cfg)
	cfg.BuildVersion = buildVersion
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("ошибка конфигурации")
		return 2
	}

	catalog, err := character.Load(cfg.CatalogPath)
	if err != nil {
		log.Error().Err(err).Msg("ошибка каталога персонажей")
		return 1
	}
	if fv.listChars {
		for _, id := range catalog.IDs() {
			ch, _ := catalog.Lookup(id)
			fmt.Printf("%-14s %-9s %s (%s)\n", id, ch.Kind, ch.Name, ch.VoiceName)
		}
		return 0
	}

	store, err := jobs.Open(cfg.DBPath, logging.WithComponent("jobs"))
	if err != nil {
		log.Error().Err(err).Msg("не удалось открыть журнал задач")
		return 1
	}
	defer store.Close()

	if fv.listJobs > 0 {
		return printJobs(store, fv.listJobs)
	}

	inputs, err := resolveInputs(fv, fs.Args(), cfg.DecksDir)
	if err != nil {
		log.Error().Err(err).Msg("нет входных файлов")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &batch{cfg: cfg, catalog: catalog, ledger: store, progress: len(inputs) == 1}
	return exitCode(b.run(ctx, inputs))
}

// applyFlags накладывает только явно заданные флаги поверх файла и окружения.
func applyFlags(fs *flag.FlagSet, fv *flagValues, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "character":
			cfg.Character = fv.character
		case "mode":
			cfg.Mode = fv.mode
		case "output":
			cfg.OutputDir = fv.outputDir
		case "public-url":
			cfg.PublicURL = fv.publicURL
		case "qr":
			cfg.WriteQR = fv.qr
		case "dump-timeline":
			cfg.DumpTimeline = fv.dumpTimeline
		case "seed":
			cfg.Seed = fv.seed
		case "threads":
			cfg.Threads = fv.threads
		case "parallel":
			cfg.Parallel = fv.parallel
		case "v":
			cfg.Verbose = fv.verbose
		case "stats":
			cfg.ShowStats = fv.stats
		}
	})
}

func resolveInputs(fv flagValues, positional []string, decksDir string) ([]string, error) {
	inputs := append(append([]string{}, fv.inputs...), positional...)
	if fv.latest || len(inputs) == 0 {
		latest, err := system.FindLatestDeck(decksDir)
		if err != nil {
			return nil, fmt.Errorf("%w. Положите .pdf или .pptx в %s/", err, decksDir)
		}
		log.Info().Str("input", latest).Msg("выбран файл")
		inputs = append(inputs, latest)
	}
	for _, in := range inputs {
		if !system.IsDeck(in) {
			return nil, fmt.Errorf("%s: поддерживаются только %s", in, strings.Join(system.DeckExtensions, ", "))
		}
	}
	return inputs, nil
}

func printJobs(store *jobs.Store, limit int) int {
	list, err := store.List(context.Background(), limit)
	if err != nil {
		log.Error().Err(err).Msg("не удалось прочитать журнал")
		return 1
	}
	for _, j := range list {
		fmt.Printf("%s  %-7s %-13s %6.1fs  %s", j.CreatedAt.Local().Format("2006-01-02 15:04:05"), j.Status, j.Character, j.AudioDuration, j.Input)
		if j.Error != "" {
			fmt.Printf("  [%s]", j.Error)
		}
		fmt.Println()
	}
	return 0
}
