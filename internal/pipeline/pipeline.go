// Package pipeline drives the motion-to-artifact capture flow: wait for a
// debounced motion event, capture a still, record video while the still is
// classified, then finalize the session's artifacts. At most one session is
// active at any time; motion observed while a session runs is simply not
// consumed.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/tphakala/birdfeeder-go/internal/artifacts"
	"github.com/tphakala/birdfeeder-go/internal/camera"
	"github.com/tphakala/birdfeeder-go/internal/classifier"
	"github.com/tphakala/birdfeeder-go/internal/conf"
	"github.com/tphakala/birdfeeder-go/internal/errors"
	"github.com/tphakala/birdfeeder-go/internal/logging"
	"github.com/tphakala/birdfeeder-go/internal/observability"
	"github.com/tphakala/birdfeeder-go/internal/sensor"
)

// shutdownGrace bounds how long an in-flight classification may run after
// shutdown is requested before the session is abandoned as undetermined.
const shutdownGrace = 5 * time.Second

// MotionWaiter blocks until a debounced motion event occurs.
type MotionWaiter interface {
	WaitForMotion(ctx context.Context) (sensor.MotionEvent, error)
}

// ImageClassifier classifies one still image by path.
type ImageClassifier interface {
	Classify(imagePath string) (classifier.Result, error)
}

// ArtifactStore names session artifact paths and persists the final artifact
// set. Satisfied by *artifacts.Manager.
type ArtifactStore interface {
	StillPath(t time.Time) string
	VideoPath(t time.Time) string
	Finalize(sessionID string, start time.Time, stillPath, videoPath string, decision classifier.Decision) ([]artifacts.Artifact, error)
}

// Controller owns the capture loop. All collaborators are injected at
// construction; the controller itself holds no hardware state.
type Controller struct {
	monitor    MotionWaiter
	camera     camera.Camera
	classifier ImageClassifier
	gate       *classifier.Gate
	store      ArtifactStore
	metrics    *observability.Metrics
	settings   conf.CameraSettings
	log        *slog.Logger
	eventLog   *slog.Logger // optional rotated session event log
}

// New creates a Controller over the given collaborators. metrics may be nil
// when telemetry is disabled.
func New(monitor MotionWaiter, cam camera.Camera, cls ImageClassifier, gate *classifier.Gate,
	store ArtifactStore, metrics *observability.Metrics, settings conf.CameraSettings) *Controller {
	return &Controller{
		monitor:    monitor,
		camera:     cam,
		classifier: cls,
		gate:       gate,
		store:      store,
		metrics:    metrics,
		settings:   settings,
		log:        logging.ForService("pipeline"),
	}
}

// SetEventLogger attaches a logger that receives one entry per finalized
// session, typically a rotated file for long-term detection history.
func (c *Controller) SetEventLogger(log *slog.Logger) {
	c.eventLog = log
}

// Run executes the capture loop until the context is cancelled or the sensor
// is declared dead. Session failures are contained: a failed session logs,
// finalizes what it can and returns the controller to idle.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info("pipeline started")
	for {
		event, err := c.monitor.WaitForMotion(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			// Only a dead sensor reaches here; there is nothing left to do
			// without motion input.
			return err
		}
		if c.metrics != nil {
			c.metrics.MotionEvents.Inc()
		}

		c.runSession(ctx, event)
	}
}

// runSession executes one capture session end to end. It never returns an
// error; all failure modes degrade the session rather than the pipeline.
func (c *Controller) runSession(ctx context.Context, event sensor.MotionEvent) {
	session := newSession(event.Time)
	log := c.log.With("session_id", session.ID)
	log.Info("session started", "pin", event.Pin)

	if c.metrics != nil {
		c.metrics.ActiveSessionGauge.Set(1)
		defer c.metrics.ActiveSessionGauge.Set(0)
	}

	// Still first: it is the classification input and must exist before the
	// video occupies the camera.
	session.StillPath = c.store.StillPath(session.Start)
	if err := c.camera.CaptureStill(ctx, session.StillPath); err != nil {
		log.Warn("still capture failed, session continues without classification", "error", err)
		if c.metrics != nil {
			c.metrics.CaptureErrors.WithLabelValues("still").Inc()
		}
		session.StillPath = ""
	}

	c.mustAdvance(session, StateRecordingVideo)
	session.VideoPath = c.store.VideoPath(session.Start)
	recording, err := c.camera.StartRecording(ctx, session.VideoPath, c.settings.VideoDuration)
	if err != nil {
		log.Warn("video recording failed to start", "error", err)
		if c.metrics != nil {
			c.metrics.CaptureErrors.WithLabelValues("video").Inc()
		}
		recording = nil
		session.VideoPath = ""
	}

	// Classification runs concurrently with the recording. A session without
	// a still skips classification and comes out undetermined.
	c.mustAdvance(session, StateClassifying)
	outcomeCh := make(chan classifyOutcome, 1)
	if session.StillPath != "" {
		go func() {
			started := time.Now()
			result, err := c.classifier.Classify(session.StillPath)
			if c.metrics != nil {
				c.metrics.ClassifyDuration.Observe(time.Since(started).Seconds())
			}
			outcomeCh <- classifyOutcome{result: result, err: err}
		}()
	} else {
		outcomeCh <- classifyOutcome{err: errors.NewStd("no still image to classify")}
	}

	outcome, err := c.waitClassification(ctx, outcomeCh)
	if err != nil {
		log.Warn("classification abandoned at shutdown", "error", err)
		outcome = classifyOutcome{err: err}
	}
	result, classifyErr := outcome.result, outcome.err
	if recording != nil {
		if err := recording.Wait(); err != nil {
			log.Warn("video recording failed", "error", err)
			if c.metrics != nil {
				c.metrics.CaptureErrors.WithLabelValues("video").Inc()
			}
			session.VideoPath = ""
		}
	}
	if classifyErr != nil && session.StillPath != "" {
		log.Warn("classification failed", "error", classifyErr)
	}

	decision := c.gate.JudgeResult(result, classifyErr)
	log.Info("session classified",
		"decision", decision.String(),
		"label", result.Label,
		"confidence", result.Confidence)
	if c.metrics != nil {
		c.metrics.SessionsTotal.WithLabelValues(decision.String()).Inc()
		if decision == classifier.DecisionBird {
			c.metrics.Detections.WithLabelValues(result.Label).Inc()
		}
	}

	persisted, err := c.store.Finalize(session.ID, session.Start, session.StillPath, session.VideoPath, decision)
	if err != nil {
		// The session is finalized regardless; retrying would loop forever
		// against the same broken storage.
		log.Warn("artifact finalize reported problems", "error", err)
	}
	c.mustAdvance(session, StateFinalized)
	log.Info("session finalized", "artifacts", len(persisted))

	if c.eventLog != nil {
		c.eventLog.Info("session",
			"session_id", session.ID,
			"start", session.Start,
			"decision", decision.String(),
			"label", result.Label,
			"confidence", result.Confidence,
			"artifacts", len(persisted))
	}
}

// classifyOutcome carries the classifier result out of its goroutine.
type classifyOutcome struct {
	result classifier.Result
	err    error
}

// waitClassification waits for the classifier goroutine. After shutdown is
// requested it waits at most the grace period before abandoning the result.
func (c *Controller) waitClassification(ctx context.Context, outcomeCh <-chan classifyOutcome) (classifyOutcome, error) {
	select {
	case o := <-outcomeCh:
		return o, nil
	case <-ctx.Done():
	}

	timer := time.NewTimer(shutdownGrace)
	defer timer.Stop()
	select {
	case o := <-outcomeCh:
		return o, nil
	case <-timer.C:
		return classifyOutcome{}, errors.New(ctx.Err()).
			Component("pipeline").
			Category(errors.CategoryTimeout).
			Context("grace", shutdownGrace.String()).
			Build()
	}
}

// mustAdvance moves the session state forward; a regression is a programming
// error worth a loud log, not a crash on an unattended device.
func (c *Controller) mustAdvance(s *Session, to State) {
	if err := s.advance(to); err != nil {
		c.log.Error("session state error", "session_id", s.ID, "error", err)
	}
}
