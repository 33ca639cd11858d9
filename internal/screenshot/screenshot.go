// Package screenshot saves a picture of the page whenever a routine reports
// a failure. It plugs into a run as a routine.Presenter.
package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mj1618/user-routine/internal/platform"
	"github.com/mj1618/user-routine/internal/routine"
)

const captionHeight = 20

// Recorder captures failure screenshots into Dir.
type Recorder struct {
	routine.NopPresenter

	shooter platform.Screenshotter
	dir     string
	scale   float64
	prefix  string
	logger  *zap.Logger

	mu    sync.Mutex
	paths []string
}

// New returns a recorder writing png files named <prefix>-step<N>.png into
// dir. Scale shrinks the capture; values outside (0, 1] keep the original size.
func New(shooter platform.Screenshotter, dir, prefix string, scale float64, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	return &Recorder{
		shooter: shooter,
		dir:     dir,
		scale:   scale,
		prefix:  prefix,
		logger:  logger.Named("screenshot"),
	}
}

// Paths lists the files written so far.
func (r *Recorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

// Announce captures the page for error announcements and ignores the rest.
// Capture problems are logged, never surfaced to the run.
func (r *Recorder) Announce(ctx context.Context, a routine.Announcement) {
	if a.Status != routine.StatusError {
		return
	}
	path, err := r.Capture(ctx, a.Step, a.Text)
	if err != nil {
		r.logger.Warn("failure screenshot", zap.Int("step", a.Step), zap.Error(err))
		return
	}
	r.logger.Info("saved failure screenshot", zap.Int("step", a.Step), zap.String("path", path))
}

// Capture grabs the page, scales it, stamps caption under it and writes it.
func (r *Recorder) Capture(ctx context.Context, step int, caption string) (string, error) {
	raw, err := r.shooter.CaptureScreenshot(ctx)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode screenshot: %w", err)
	}
	out := Caption(Scale(img, r.scale), caption)

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(r.dir, fmt.Sprintf("%s-step%d.png", r.prefix, step))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, out); err != nil {
		f.Close()
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	return path, nil
}

// Scale resizes img by factor. A factor of 1 returns img unchanged.
func Scale(img image.Image, factor float64) image.Image {
	if factor == 1 {
		return img
	}
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*factor))
	h := max(1, int(float64(b.Dy())*factor))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Caption returns a copy of img with a dark strip below it holding text.
func Caption(img image.Image, text string) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+captionHeight))
	draw.Draw(dst, image.Rect(0, 0, b.Dx(), b.Dy()), img, b.Min, draw.Src)
	strip := image.Rect(0, b.Dy(), b.Dx(), b.Dy()+captionHeight)
	draw.Draw(dst, strip, image.NewUniform(color.RGBA{R: 40, G: 0, B: 0, A: 255}), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, b.Dy()+captionHeight-5),
	}
	d.DrawString(text)
	return dst
}
