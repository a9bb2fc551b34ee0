// Package render draws host frames into images with gogpu/gg and saves them
// as numbered PNG files, for headless runs and visual regression checks.
package render

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/gogpu/gg"

	"github.com/thruflo/tracksync/internal/host"
	"github.com/thruflo/tracksync/internal/logging"
)

// Colors used for every frame.
var (
	Background = gg.Hex("#0d0d14")
	PausedBar  = gg.Hex("#ffb000")
	PlayingBar = gg.Hex("#3fa9f5")
)

// barGap is the horizontal space between bars, in pixels.
const barGap = 4.0

// ImageRenderer draws one vertical bar per track. Bar height and opacity
// follow the track value. Every Nth frame is written to dir as
// frame-NNNNNN.png; with an empty dir nothing is written.
type ImageRenderer struct {
	dc     *gg.Context
	dir    string
	every  uint64
	ranges *host.Ranges
	log    *logging.Logger
	saved  int
}

// NewImageRenderer creates a width×height renderer saving every Nth frame
// into dir, creating dir if needed.
func NewImageRenderer(dir string, width, height, every int) (*ImageRenderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if every <= 0 {
		every = 1
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create frames directory: %w", err)
		}
	}
	return &ImageRenderer{
		dc:     gg.NewContext(width, height),
		dir:    dir,
		every:  uint64(every),
		ranges: host.NewRanges(),
		log:    logging.Default().Component("render"),
	}, nil
}

// SetLogger sets the logger.
func (r *ImageRenderer) SetLogger(l *logging.Logger) {
	r.log = l.Component("render")
}

// Draw implements host.Renderer.
func (r *ImageRenderer) Draw(frame host.Frame) error {
	if err := r.paint(frame); err != nil {
		return err
	}
	if r.dir == "" || frame.Number%r.every != 0 {
		return nil
	}

	path := FramePath(r.dir, frame.Number)
	if err := r.dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save frame %d: %w", frame.Number, err)
	}
	r.saved++
	r.log.Debug("frame saved", "path", path, "row", frame.Row)
	return nil
}

func (r *ImageRenderer) paint(frame host.Frame) error {
	r.dc.ClearWithColor(Background)

	n := len(frame.Tracks)
	if n == 0 {
		return nil
	}

	w := float64(r.dc.Width())
	h := float64(r.dc.Height())
	barWidth := (w - barGap*float64(n+1)) / float64(n)
	if barWidth < 1 {
		barWidth = 1
	}

	base := PlayingBar
	if frame.Paused {
		base = PausedBar
	}

	for i, s := range frame.Tracks {
		v := r.ranges.Normalize(s.Name, s.Value)
		barHeight := v * h
		if barHeight <= 0 {
			continue
		}
		x := barGap + float64(i)*(barWidth+barGap)
		r.dc.SetRGBA(base.R, base.G, base.B, 0.35+0.65*v)
		r.dc.DrawRectangle(x, h-barHeight, barWidth, barHeight)
		if err := r.dc.Fill(); err != nil {
			return fmt.Errorf("failed to draw track %q: %w", s.Name, err)
		}
	}
	return nil
}

// Resize changes the frame size.
func (r *ImageRenderer) Resize(width, height int) error {
	return r.dc.Resize(width, height)
}

// Image returns the last drawn frame.
func (r *ImageRenderer) Image() image.Image {
	return r.dc.Image()
}

// Saved returns how many PNG files have been written.
func (r *ImageRenderer) Saved() int {
	return r.saved
}

// Close releases the drawing context.
func (r *ImageRenderer) Close() error {
	return r.dc.Close()
}

// FramePath returns the file name used for frame number n.
func FramePath(dir string, n uint64) string {
	return filepath.Join(dir, fmt.Sprintf("frame-%06d.png", n))
}
