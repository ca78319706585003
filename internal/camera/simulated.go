// simulated.go camera stand-in writing synthetic artifacts
package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tphakala/birdfeeder-go/internal/errors"
)

// SimulatedCamera writes synthetic artifacts instead of driving hardware,
// for development on hosts without a camera.
type SimulatedCamera struct {
	Width  int
	Height int
}

// NewSimulatedCamera returns a camera producing synthetic images.
func NewSimulatedCamera(width, height int) *SimulatedCamera {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}
	return &SimulatedCamera{Width: width, Height: height}
}

// CaptureStill writes a noise image to path.
func (c *SimulatedCamera) CaptureStill(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	for y := 0; y < c.Height; y += 8 {
		for x := 0; x < c.Width; x += 8 {
			shade := uint8(rand.IntN(256))
			for dy := 0; dy < 8 && y+dy < c.Height; dy++ {
				for dx := 0; dx < 8 && x+dx < c.Width; dx++ {
					img.Set(x+dx, y+dy, color.RGBA{shade, shade, shade, 255})
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return errors.New(err).
			Component("camera").
			Category(errors.CategoryCapture).
			Build()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// StartRecording writes a placeholder video file and returns a recording
// that finishes after maxDuration.
func (c *SimulatedCamera) StartRecording(ctx context.Context, path string, maxDuration time.Duration) (Recording, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte("simulated video"), 0o644); err != nil {
		return nil, err
	}

	rec := &simulatedRecording{path: path, done: make(chan struct{}), stop: make(chan struct{})}
	go func() {
		timer := time.NewTimer(maxDuration)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		case <-rec.stop:
		}
		close(rec.done)
	}()
	return rec, nil
}

// Close is a no-op for the simulated camera.
func (c *SimulatedCamera) Close() error {
	return nil
}

type simulatedRecording struct {
	path     string
	done     chan struct{}
	stopOnce sync.Once
	stop     chan struct{}
}

func (r *simulatedRecording) Stop() error {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
	return nil
}

func (r *simulatedRecording) Wait() error {
	<-r.done
	return nil
}

func (r *simulatedRecording) Path() string {
	return r.path
}
