package effects

import (
	"image"
	"math"
)

// Effect изменяет готовый кадр сегмента в момент t (секунды от начала сегмента).
type Effect interface {
	Apply(dst, src *image.RGBA, t float64) bool
}

// Fade затемняет сегмент: из черного в начале и в черное в конце.
type Fade struct {
	In       float64
	Out      float64
	Duration float64
}

// Factor возвращает яркость кадра в момент t: 0 означает черный кадр, 1 оставляет кадр как есть.
func (f Fade) Factor(t float64) float64 {
	k := 1.0
	if f.In > 0 && t < f.In {
		k = math.Min(k, t/f.In)
	}
	if f.Out > 0 && t > f.Duration-f.Out {
		k = math.Min(k, (f.Duration-t)/f.Out)
	}
	return math.Max(0, math.Min(1, k))
}

// Active сообщает, есть ли у сегмента хоть какое-то затемнение.
func (f Fade) Active() bool {
	return f.In > 0 || f.Out > 0
}

// Apply пишет в dst затемненную копию src. Возвращает false, если кадр
// не меняется и можно отдавать src как есть.
func (f Fade) Apply(dst, src *image.RGBA, t float64) bool {
	k := f.Factor(t)
	if k >= 1 {
		return false
	}
	Dim(dst, src, k)
	return true
}

// Dim умножает цвет на k поверх черного фона. Альфа остается непрозрачной.
func Dim(dst, src *image.RGBA, k float64) {
	scale := uint32(math.Round(k * 256))
	for i := 0; i+3 < len(src.Pix) && i+3 < len(dst.Pix); i += 4 {
		dst.Pix[i] = uint8(uint32(src.Pix[i]) * scale >> 8)
		dst.Pix[i+1] = uint8(uint32(src.Pix[i+1]) * scale >> 8)
		dst.Pix[i+2] = uint8(uint32(src.Pix[i+2]) * scale >> 8)
		dst.Pix[i+3] = 0xff
	}
}
