// rpicam.go camera implementation driving the libcamera command line apps
package camera

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/tphakala/birdfeeder-go/internal/conf"
	"github.com/tphakala/birdfeeder-go/internal/errors"
	"github.com/tphakala/birdfeeder-go/internal/logging"
)

// RpicamCamera captures stills and video by running the libcamera apps as
// child processes. Only one operation of each kind runs at a time.
type RpicamCamera struct {
	settings conf.CameraSettings
	log      *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewRpicamCamera creates a camera driver using the configured still and
// video commands. It verifies the still command is available on PATH so a
// missing libcamera install fails at startup, not on the first motion event.
func NewRpicamCamera(settings conf.CameraSettings) (*RpicamCamera, error) {
	if _, err := exec.LookPath(settings.StillCommand); err != nil {
		return nil, errors.New(fmt.Errorf("still capture command not found: %w", err)).
			Component("camera").
			Category(errors.CategoryCapture).
			Context("command", settings.StillCommand).
			Build()
	}

	return &RpicamCamera{
		settings: settings,
		log:      logging.ForService("camera"),
	}, nil
}

// CaptureStill runs the still command once, blocking until the image is
// written. The capture is bounded by the configured capture limit.
func (c *RpicamCamera) CaptureStill(ctx context.Context, path string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.Newf("camera is closed").
			Component("camera").
			Category(errors.CategoryState).
			Build()
	}
	c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(err).
			Component("camera").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, c.settings.CaptureLimit)
	defer cancel()

	start := time.Now()
	// -n: no preview window, --immediate: skip the preview-phase delay
	cmd := exec.CommandContext(ctx, c.settings.StillCommand,
		"-o", path,
		"--width", strconv.Itoa(c.settings.Width),
		"--height", strconv.Itoa(c.settings.Height),
		"-n", "--immediate")

	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.New(fmt.Errorf("still capture failed: %w", err)).
			Component("camera").
			Category(errors.CategoryCapture).
			Context("command", c.settings.StillCommand).
			Context("output", string(out)).
			Timing("capture-still", time.Since(start)).
			Build()
	}

	c.log.Debug("still captured", "path", path, "duration", time.Since(start))
	return nil
}

// StartRecording launches the video command with a hard duration cap and
// returns once the process is running.
func (c *RpicamCamera) StartRecording(ctx context.Context, path string, maxDuration time.Duration) (Recording, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.Newf("camera is closed").
			Component("camera").
			Category(errors.CategoryState).
			Build()
	}
	c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New(err).
			Component("camera").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	cmd := exec.Command(c.settings.VideoCommand,
		"-o", path,
		"--width", strconv.Itoa(c.settings.Width),
		"--height", strconv.Itoa(c.settings.Height),
		"-t", strconv.FormatInt(maxDuration.Milliseconds(), 10),
		"-n")

	if err := cmd.Start(); err != nil {
		return nil, errors.New(fmt.Errorf("video recording failed to start: %w", err)).
			Component("camera").
			Category(errors.CategoryRecord).
			Context("command", c.settings.VideoCommand).
			Build()
	}

	rec := &rpicamRecording{
		cmd:  cmd,
		path: path,
		log:  c.log,
		done: make(chan struct{}),
	}
	go rec.reap(ctx)

	c.log.Debug("video recording started", "path", path, "max_duration", maxDuration)
	return rec, nil
}

// Close marks the camera closed. Captures in flight finish on their own.
func (c *RpicamCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// stopKillTimeout is how long a recorder gets to flush after SIGINT before
// it is killed outright.
const stopKillTimeout = 3 * time.Second

// rpicamRecording tracks one rpicam-vid child process.
type rpicamRecording struct {
	cmd  *exec.Cmd
	path string
	log  *slog.Logger

	once     sync.Once
	stopOnce sync.Once
	done     chan struct{}
	waitErr  error
}

// reap waits for the child to exit, either on its duration cap, an early
// Stop, or context cancellation.
func (r *rpicamRecording) reap(ctx context.Context) {
	waited := make(chan error, 1)
	go func() { waited <- r.cmd.Wait() }()

	select {
	case err := <-waited:
		r.finish(err)
	case <-ctx.Done():
		// Ask the recorder to flush and exit, then collect it
		r.signalStop()
		r.finish(<-waited)
	}
}

func (r *rpicamRecording) finish(err error) {
	r.once.Do(func() {
		// A SIGINT-terminated recorder still wrote a playable file, treat
		// signal exits as success
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && exitErr.ExitCode() == -1 {
				err = nil
			}
		}
		if err != nil {
			r.waitErr = errors.New(fmt.Errorf("video recording failed: %w", err)).
				Component("camera").
				Category(errors.CategoryRecord).
				Context("path", r.path).
				Build()
		}
		close(r.done)
	})
}

// signalStop sends SIGINT so rpicam-vid finalizes the container before exit.
// A recorder that ignores the signal is killed after stopKillTimeout so a
// wedged child cannot hang the session.
func (r *rpicamRecording) signalStop() {
	r.stopOnce.Do(func() {
		if r.cmd.Process == nil {
			return
		}
		_ = r.cmd.Process.Signal(syscall.SIGINT)
		go func() {
			timer := time.NewTimer(stopKillTimeout)
			defer timer.Stop()
			select {
			case <-r.done:
			case <-timer.C:
				r.log.Warn("recorder ignored stop signal, killing it", "path", r.path)
				_ = r.cmd.Process.Kill()
			}
		}()
	})
}

// Stop ends the recording early.
func (r *rpicamRecording) Stop() error {
	select {
	case <-r.done:
		return r.waitErr
	default:
	}
	r.signalStop()
	return r.Wait()
}

// Wait blocks until the recording has finished.
func (r *rpicamRecording) Wait() error {
	<-r.done
	return r.waitErr
}

// Path returns the output file path.
func (r *rpicamRecording) Path() string {
	return r.path
}
