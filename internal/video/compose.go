package video

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/deck2video/internal/segment"
	"github.com/ivlev/deck2video/internal/system"
)

// ImageLoader декодирует исходный кадр.
type ImageLoader func(path string) (image.Image, error)

func LoadImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

type layerKey struct {
	path string
	w, h int
}

type frameKey struct {
	bg, fg layerKey
	w, h   int
}

// compositor собирает кадры сегментов на общем холсте и держит все буферы
// до release.
type compositor struct {
	width, height int
	load          ImageLoader

	layers map[layerKey]*image.RGBA
	frames map[frameKey]*image.RGBA
	pooled []*image.RGBA
}

func newCompositor(width, height int, load ImageLoader) *compositor {
	if load == nil {
		load = LoadImageFile
	}
	return &compositor{
		width:  width,
		height: height,
		load:   load,
		layers: make(map[layerKey]*image.RGBA),
		frames: make(map[frameKey]*image.RGBA),
	}
}

// prepare декодирует и масштабирует все слои заранее, чтобы битый кадр
// обнаружился до запуска ffmpeg.
func (c *compositor) prepare(segs []segment.Segment) error {
	for _, s := range segs {
		if s.Background != nil {
			if _, err := c.layer(*s.Background); err != nil {
				return err
			}
		}
		if _, err := c.layer(s.Character); err != nil {
			return err
		}
	}
	return nil
}

func (c *compositor) layer(l segment.Layer) (*image.RGBA, error) {
	key := layerKey{l.Path, l.Width, l.Height}
	if img, ok := c.layers[key]; ok {
		return img, nil
	}

	src, err := c.load(l.Path)
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, l.Width, l.Height))
	if src.Bounds().Dx() == l.Width && src.Bounds().Dy() == l.Height {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}
	c.layers[key] = dst
	return dst, nil
}

// frame возвращает готовый кадр сегмента: черный холст, фон и персонаж по центру.
func (c *compositor) frame(s segment.Segment) (*image.RGBA, error) {
	key := frameKey{
		fg: layerKey{s.Character.Path, s.Character.Width, s.Character.Height},
		w:  s.Width,
		h:  s.Height,
	}
	if s.Background != nil {
		key.bg = layerKey{s.Background.Path, s.Background.Width, s.Background.Height}
	}
	if img, ok := c.frames[key]; ok {
		return img, nil
	}

	canvas := c.get()
	draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)

	// Сегмент центрируется на холсте, слои центрируются внутри сегмента.
	origin := image.Pt((c.width-s.Width)/2, (c.height-s.Height)/2)

	if s.Background != nil {
		bg, err := c.layer(*s.Background)
		if err != nil {
			return nil, err
		}
		drawCentered(canvas, bg, origin, s.Width, s.Height)
	}

	fg, err := c.layer(s.Character)
	if err != nil {
		return nil, err
	}
	drawCentered(canvas, fg, origin, s.Width, s.Height)

	c.frames[key] = canvas
	return canvas, nil
}

func drawCentered(dst, src *image.RGBA, origin image.Point, boxW, boxH int) {
	at := origin.Add(image.Pt((boxW-src.Rect.Dx())/2, (boxH-src.Rect.Dy())/2))
	r := image.Rectangle{Min: at, Max: at.Add(src.Rect.Size())}
	draw.Draw(dst, r, src, image.Point{}, draw.Over)
}

// get берет буфер размера холста из пула и запоминает его для release.
func (c *compositor) get() *image.RGBA {
	img := system.GetImage(c.width, c.height)
	c.pooled = append(c.pooled, img)
	return img
}

func (c *compositor) release() {
	system.PutImage(c.pooled...)
	c.pooled = nil
	c.layers = nil
	c.frames = nil
}
