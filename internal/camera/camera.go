// Package camera provides still-capture and bounded video recording for the
// capture pipeline. The hardware implementation drives the libcamera apps
// (rpicam-still / rpicam-vid) as child processes; a simulated camera covers
// development hosts.
package camera

import (
	"context"
	"time"
)

// Recording is an in-progress video capture. The recording ends on its own
// once the maximum duration elapses; Stop ends it early.
type Recording interface {
	// Stop ends the recording early and flushes what was captured.
	// Safe to call more than once and after the recording finished.
	Stop() error

	// Wait blocks until the recording has finished and the file is flushed,
	// returning the recording error if any.
	Wait() error

	// Path returns the output file path of this recording.
	Path() string
}

// Camera captures stills and records bounded-duration video. A single Camera
// serves one capture session at a time; the pipeline controller guarantees
// that by policy.
type Camera interface {
	// CaptureStill captures one still image to path. It blocks until the
	// image is written or the capture failed.
	CaptureStill(ctx context.Context, path string) error

	// StartRecording begins a video recording to path that runs for at most
	// maxDuration. It returns as soon as the recording has started.
	StartRecording(ctx context.Context, path string, maxDuration time.Duration) (Recording, error)

	// Close releases the camera. No captures may be started afterwards.
	Close() error
}
