package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	"stillcut/internal/services"
)

// prepareFrame decodes src, scales it to fit width x height without cropping
// and centres it on a pad-coloured canvas written to dst as PNG.
func prepareFrame(src, dst string, width, height int, pad color.Color) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return services.Wrap(services.ErrCorruptInput, "render", "decode image", fmt.Sprintf("cannot decode %s", src), err)
	}
	frame := letterbox(img, width, height, pad)
	if err := imaging.Save(frame, dst, imaging.PNGCompressionLevel(png.BestSpeed)); err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "write frame", dst, err)
	}
	return nil
}

func letterbox(img image.Image, width, height int, pad color.Color) *image.NRGBA {
	canvas := imaging.New(width, height, pad)
	w, h := fitSize(img.Bounds().Dx(), img.Bounds().Dy(), width, height)
	if w == 0 || h == 0 {
		return canvas
	}
	resized := imaging.Resize(img, w, h, imaging.Lanczos)
	return imaging.PasteCenter(canvas, resized)
}

// fitSize scales srcW x srcH, up or down, to the largest size that fits in
// maxW x maxH while keeping the aspect ratio.
func fitSize(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	scale := math.Min(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))
	return min(max(w, 1), maxW), min(max(h, 1), maxH)
}
