package video

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ivlev/deck2video/internal/audio"
	"github.com/ivlev/deck2video/internal/effects"
	"github.com/ivlev/deck2video/internal/scheduler"
	"github.com/ivlev/deck2video/internal/segment"
)

const DefaultFPS = 24

var errEmptyTimeline = errors.New("timeline has no segments")

// Preset хранит параметры x264 для одного режима.
type Preset struct {
	Name         string
	Encoder      string
	Speed        string // -preset x264
	CRF          int
	Tune         string
	AudioBitrate string
}

var (
	// PresetFast: самый быстрый и легкий вариант для анимации персонажа.
	PresetFast = Preset{Name: "fast", Encoder: "libx264", Speed: "ultrafast", CRF: 30, Tune: "fastdecode", AudioBitrate: "96k"}
	// PresetQuality: медленнее, но чище картинка для статичных фонов.
	PresetQuality = Preset{Name: "quality", Encoder: "libx264", Speed: "medium", CRF: 23, AudioBitrate: "128k"}
)

// PresetFor выбирает пресет по типу таймлайна.
func PresetFor(kind scheduler.Kind) Preset {
	if kind == scheduler.KindStatic {
		return PresetQuality
	}
	return PresetFast
}

// Job описывает одну сборку видео. Render забирает владение Audio и закрывает его.
type Job struct {
	Timeline *scheduler.Timeline
	Audio    *audio.Track
	Output   string
	Preset   Preset
}

// RenderError оборачивает любую ошибку сборки. Частичный файл к этому
// моменту уже удален.
type RenderError struct {
	Output string
	Err    error
	Log    string
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("render %s: %v", e.Output, e.Err)
	if e.Log != "" {
		msg += "\n" + e.Log
	}
	return msg
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer собирает таймлайн и аудио в один mp4.
type Renderer interface {
	Render(job Job) error
}

type FFmpegEngine struct {
	FFmpegPath string
	FPS        int
	Threads    int
	Load       ImageLoader
	// Progress вызывается после каждого записанного кадра.
	Progress func(done, total int)
	Logger   zerolog.Logger
}

func NewFFmpegEngine(threads int, logger zerolog.Logger) *FFmpegEngine {
	return &FFmpegEngine{
		FFmpegPath: "ffmpeg",
		FPS:        DefaultFPS,
		Threads:    threads,
		Load:       LoadImageFile,
		Logger:     logger,
	}
}

// Render пишет сырые RGBA-кадры всех сегментов в stdin одного ffmpeg,
// который накладывает аудио и кодирует H.264/AAC.
func (e *FFmpegEngine) Render(job Job) (err error) {
	if job.Audio != nil {
		defer job.Audio.Close()
	}

	if job.Timeline == nil || len(job.Timeline.Segments) == 0 {
		return &RenderError{Output: job.Output, Err: errEmptyTimeline}
	}
	if job.Audio == nil {
		return &RenderError{Output: job.Output, Err: errors.New("no audio track")}
	}

	fps := e.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}

	segs := job.Timeline.Segments
	width, height := CanvasSize(job.Timeline)
	counts := FrameCounts(segs, fps)

	comp := newCompositor(width, height, e.Load)
	defer comp.release()

	var stderr bytes.Buffer
	defer func() {
		if err == nil {
			return
		}
		if rmErr := os.Remove(job.Output); rmErr != nil && !os.IsNotExist(rmErr) {
			e.Logger.Warn().Err(rmErr).Str("output", job.Output).Msg("не удалось удалить частичный файл")
		}
		var re *RenderError
		if !errors.As(err, &re) {
			err = &RenderError{Output: job.Output, Err: err, Log: strings.TrimSpace(stderr.String())}
		}
	}()

	if err := comp.prepare(segs); err != nil {
		return err
	}

	args := e.buildFFmpegArgs(width, height, fps, job)
	e.Logger.Debug().Strs("args", args).Msg("ffmpeg")

	ffmpeg := e.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	cmd := exec.Command(ffmpeg, args...)
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	writeErr := e.writeFrames(stdin, comp, segs, counts, fps)
	stdin.Close()
	if writeErr != nil && !errors.Is(writeErr, errBrokenPipe) {
		cmd.Process.Kill()
	}

	waitErr := cmd.Wait()
	switch {
	case writeErr != nil && !errors.Is(writeErr, errBrokenPipe):
		return writeErr
	case waitErr != nil:
		return fmt.Errorf("ffmpeg wait error: %w", waitErr)
	case writeErr != nil:
		return writeErr
	}

	e.Logger.Info().
		Str("output", job.Output).
		Str("preset", job.Preset.Name).
		Int("segments", len(segs)).
		Str("size", fmt.Sprintf("%dx%d", width, height)).
		Msg("видео собрано")
	return nil
}

var errBrokenPipe = errors.New("ffmpeg closed its input")

func (e *FFmpegEngine) writeFrames(w io.Writer, comp *compositor, segs []segment.Segment, counts []int, fps int) error {
	total := 0
	for _, n := range counts {
		total += n
	}

	var scratch *image.RGBA
	done := 0
	for i, s := range segs {
		if counts[i] == 0 {
			continue
		}
		frame, err := comp.frame(s)
		if err != nil {
			return err
		}

		var effect effects.Effect
		if fade := (effects.Fade{In: s.FadeIn, Out: s.FadeOut, Duration: s.Duration}); fade.Active() {
			effect = fade
			if scratch == nil {
				scratch = comp.get()
			}
		}

		for k := 0; k < counts[i]; k++ {
			out := frame
			if effect != nil && effect.Apply(scratch, frame, float64(k)/float64(fps)) {
				out = scratch
			}
			if _, err := w.Write(out.Pix); err != nil {
				return fmt.Errorf("%w: %v", errBrokenPipe, err)
			}
			done++
			if e.Progress != nil {
				e.Progress(done, total)
			}
		}
	}
	return nil
}

func (e *FFmpegEngine) buildFFmpegArgs(width, height, fps int, job Job) []string {
	p := job.Preset
	if p.Encoder == "" {
		p = PresetFor(job.Timeline.Kind)
	}

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", "-",
		"-i", job.Audio.Path,
		"-map", "0:v:0",
		"-map", "1:a:0",
		// Холст уже четный, но yuv420p не прощает ошибок.
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", p.Encoder,
	}
	if p.Speed != "" {
		args = append(args, "-preset", p.Speed)
	}
	if p.CRF > 0 {
		args = append(args, "-crf", fmt.Sprintf("%d", p.CRF))
	}
	if p.Tune != "" {
		args = append(args, "-tune", p.Tune)
	}
	args = append(args,
		"-profile:v", "baseline",
		"-pix_fmt", "yuv420p",
		"-g", fmt.Sprintf("%d", fps*2),
		"-keyint_min", fmt.Sprintf("%d", fps*2),
		"-sc_threshold", "0",
		"-r", fmt.Sprintf("%d", fps),
	)
	if e.Threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", e.Threads))
	}
	args = append(args, "-c:a", "aac")
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	args = append(args, "-movflags", "+faststart", job.Output)
	return args
}

// CanvasSize возвращает наибольший сегмент таймлайна, округленный до четных сторон.
func CanvasSize(tl *scheduler.Timeline) (int, int) {
	w, h := tl.Bounds()
	return segment.EvenCeil(float64(w)), segment.EvenCeil(float64(h))
}

// FrameCounts переводит длительности в число кадров с накоплением,
// чтобы округление не копило рассинхрон с аудио.
func FrameCounts(segs []segment.Segment, fps int) []int {
	counts := make([]int, len(segs))
	start := 0.0
	for i, s := range segs {
		end := start + s.Duration
		counts[i] = int(math.Round(end*float64(fps)) - math.Round(start*float64(fps)))
		start = end
	}
	return counts
}
