package render

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"tagdeck/internal/logging"
)

// SlotUpdate is the result a renderer posts back for one grid slot.
type SlotUpdate struct {
	Slot        int
	Image       image.Image
	Placeholder bool
	Failed      bool
}

// Thumbnailer renders item thumbnails on queue workers and commits results
// through a posted callback, gated on the queue's cutoff watermark.
type Thumbnailer struct {
	logger *logging.Logger
	queue  *Queue
	commit func(SlotUpdate)
}

func NewThumbnailer(logger *logging.Logger, queue *Queue, commit func(SlotUpdate)) *Thumbnailer {
	if logger == nil {
		panic("render.NewThumbnailer: logger must not be nil")
	}
	if queue == nil {
		panic("render.NewThumbnailer: queue must not be nil")
	}
	if commit == nil {
		panic("render.NewThumbnailer: commit callback must not be nil")
	}
	return &Thumbnailer{logger: logger, queue: queue, commit: commit}
}

// SlotRender returns the render function for one grid slot. It runs on a
// queue worker: decode and scale first, then check the cutoff immediately
// before committing so stale results are discarded instead of flickering in.
func (t *Thumbnailer) SlotRender(slot int) RenderFunc {
	return func(args Args) {
		update := SlotUpdate{Slot: slot, Placeholder: args.Placeholder}
		size := targetSize(args)

		if args.Placeholder {
			update.Image = placeholderImage(size)
		} else {
			img, err := RenderThumbnail(args.Path, size)
			if err != nil {
				t.logger.Warn("thumbnail render failed",
					logging.Field("path", args.Path),
					logging.Field("error", err),
				)
				update.Image = failureImage(size)
				update.Failed = true
			} else {
				update.Image = img
			}
		}

		if !t.queue.ShouldCommit(args.Timestamp) {
			t.logger.Debug("discarding stale render result",
				logging.Field("slot", slot),
				logging.Field("path", args.Path),
			)
			return
		}
		t.commit(update)
	}
}

func targetSize(args Args) int {
	size := args.BaseSize
	if args.PixelRatio > 0 {
		size = int(float64(args.BaseSize) * args.PixelRatio)
	}
	if size <= 0 {
		size = 1
	}
	return size
}

// RenderThumbnail decodes the file at path and scales it to fit a size-pixel
// square, preserving aspect ratio.
func RenderThumbnail(path string, size int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return scaleToFit(src, size), nil
}

func scaleToFit(src image.Image, size int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return placeholderImage(size)
	}
	scale := float64(size) / float64(max(w, h))
	if scale > 1 {
		scale = 1
	}
	dw, dh := int(float64(w)*scale), int(float64(h)*scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

func placeholderImage(size int) image.Image {
	return uniformImage(size, color.RGBA{R: 0x3a, G: 0x3a, B: 0x4a, A: 0xff})
}

func failureImage(size int) image.Image {
	return uniformImage(size, color.RGBA{R: 0x6e, G: 0x2e, B: 0x2e, A: 0xff})
}

func uniformImage(size int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}
