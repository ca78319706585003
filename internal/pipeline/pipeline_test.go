package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdfeeder-go/internal/artifacts"
	"github.com/tphakala/birdfeeder-go/internal/camera"
	"github.com/tphakala/birdfeeder-go/internal/classifier"
	"github.com/tphakala/birdfeeder-go/internal/conf"
	"github.com/tphakala/birdfeeder-go/internal/errors"
	"github.com/tphakala/birdfeeder-go/internal/sensor"
)

// fakeWaiter hands out queued motion events and blocks once the queue is
// drained.
type fakeWaiter struct {
	events chan sensor.MotionEvent
	err    error
}

func newFakeWaiter(n int) *fakeWaiter {
	w := &fakeWaiter{events: make(chan sensor.MotionEvent, n)}
	for i := 0; i < n; i++ {
		w.events <- sensor.MotionEvent{Time: time.Now().Add(time.Duration(i) * time.Second), Pin: 17}
	}
	return w
}

func (w *fakeWaiter) WaitForMotion(ctx context.Context) (sensor.MotionEvent, error) {
	if w.err != nil {
		return sensor.MotionEvent{}, w.err
	}
	select {
	case e := <-w.events:
		return e, nil
	case <-ctx.Done():
		return sensor.MotionEvent{}, ctx.Err()
	}
}

type fakeRecording struct {
	path    string
	done    chan struct{}
	waitErr error
	stopped bool
	mu      sync.Mutex
}

func (r *fakeRecording) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped {
		r.stopped = true
		close(r.done)
	}
	return nil
}

func (r *fakeRecording) Wait() error {
	<-r.done
	return r.waitErr
}

func (r *fakeRecording) Path() string { return r.path }

// fakeCamera records the order of capture operations.
type fakeCamera struct {
	mu        sync.Mutex
	sequence  []string
	stillErr  error
	recordErr error
	waitErr   error
	// holdRecording keeps Wait blocked until the recording is released by
	// the test; otherwise recordings finish instantly.
	holdRecording bool
	recordings    []*fakeRecording
}

func (c *fakeCamera) note(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequence = append(c.sequence, op)
}

func (c *fakeCamera) CaptureStill(ctx context.Context, path string) error {
	c.note("still")
	return c.stillErr
}

func (c *fakeCamera) StartRecording(ctx context.Context, path string, maxDuration time.Duration) (camera.Recording, error) {
	c.note("record-start")
	if c.recordErr != nil {
		return nil, c.recordErr
	}
	r := &fakeRecording{path: path, done: make(chan struct{}), waitErr: c.waitErr}
	if !c.holdRecording {
		close(r.done)
		r.stopped = true
	}
	c.mu.Lock()
	c.recordings = append(c.recordings, r)
	c.mu.Unlock()
	return r, nil
}

func (c *fakeCamera) Close() error { return nil }

func (c *fakeCamera) ops() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sequence...)
}

// fakeClassifier returns a canned result and can signal when invoked.
type fakeClassifier struct {
	mu       sync.Mutex
	result   classifier.Result
	err      error
	calls    int
	onInvoke func()
}

func (f *fakeClassifier) Classify(imagePath string) (classifier.Result, error) {
	f.mu.Lock()
	f.calls++
	fn := f.onInvoke
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
	return f.result, f.err
}

func (f *fakeClassifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type finalizeCall struct {
	sessionID string
	stillPath string
	videoPath string
	decision  classifier.Decision
}

// fakeStore records Finalize calls and hands out synthetic paths.
type fakeStore struct {
	mu    sync.Mutex
	calls []finalizeCall
}

func (s *fakeStore) StillPath(t time.Time) string {
	return filepath.Join("/data/images", t.Format("20060102_150405.000")+".jpg")
}

func (s *fakeStore) VideoPath(t time.Time) string {
	return filepath.Join("/data/videos", t.Format("20060102_150405.000")+".mp4")
}

func (s *fakeStore) Finalize(sessionID string, start time.Time, stillPath, videoPath string, decision classifier.Decision) ([]artifacts.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, finalizeCall{sessionID, stillPath, videoPath, decision})
	return nil, nil
}

func (s *fakeStore) finalized() []finalizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]finalizeCall(nil), s.calls...)
}

func birdGate() *classifier.Gate {
	return classifier.NewGate([]string{"robin"}, 0.8)
}

func runSessions(t *testing.T, ctrl *Controller, store *fakeStore, want int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, ctrl.Run(ctx))
	}()

	require.Eventually(t, func() bool {
		return len(store.finalized()) >= want
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
}

func TestSessionStillBeforeVideo(t *testing.T) {
	cam := &fakeCamera{}
	store := &fakeStore{}
	cls := &fakeClassifier{result: classifier.Result{Label: "robin", Confidence: 0.95}}
	ctrl := New(newFakeWaiter(1), cam, cls, birdGate(), store, nil, conf.CameraSettings{VideoDuration: time.Second})

	runSessions(t, ctrl, store, 1)

	require.Equal(t, []string{"still", "record-start"}, cam.ops())
	calls := store.finalized()
	require.Len(t, calls, 1)
	assert.Equal(t, classifier.DecisionBird, calls[0].decision)
	assert.NotEmpty(t, calls[0].stillPath)
	assert.NotEmpty(t, calls[0].videoPath)
	assert.NotEmpty(t, calls[0].sessionID)
}

func TestClassificationRunsWhileVideoRecords(t *testing.T) {
	// The recording only ends when the classifier runs. If the controller
	// waited for the video before classifying, this session would never
	// finish.
	cam := &fakeCamera{holdRecording: true}
	store := &fakeStore{}
	cls := &fakeClassifier{result: classifier.Result{Label: "robin", Confidence: 0.9}}
	cls.onInvoke = func() {
		cam.mu.Lock()
		recs := append([]*fakeRecording(nil), cam.recordings...)
		cam.mu.Unlock()
		for _, r := range recs {
			_ = r.Stop()
		}
	}
	ctrl := New(newFakeWaiter(1), cam, cls, birdGate(), store, nil, conf.CameraSettings{VideoDuration: time.Second})

	runSessions(t, ctrl, store, 1)

	calls := store.finalized()
	require.Len(t, calls, 1)
	assert.Equal(t, classifier.DecisionBird, calls[0].decision)
}

func TestLowConfidenceIsNoBird(t *testing.T) {
	cam := &fakeCamera{}
	store := &fakeStore{}
	cls := &fakeClassifier{result: classifier.Result{Label: "robin", Confidence: 0.5}}
	ctrl := New(newFakeWaiter(1), cam, cls, birdGate(), store, nil, conf.CameraSettings{VideoDuration: time.Second})

	runSessions(t, ctrl, store, 1)

	calls := store.finalized()
	require.Len(t, calls, 1)
	assert.Equal(t, classifier.DecisionNoBird, calls[0].decision)
}

func TestClassifierErrorIsUndetermined(t *testing.T) {
	cam := &fakeCamera{}
	store := &fakeStore{}
	cls := &fakeClassifier{err: errors.NewStd("inference blew up")}
	ctrl := New(newFakeWaiter(1), cam, cls, birdGate(), store, nil, conf.CameraSettings{VideoDuration: time.Second})

	runSessions(t, ctrl, store, 1)

	calls := store.finalized()
	require.Len(t, calls, 1)
	assert.Equal(t, classifier.DecisionUndetermined, calls[0].decision)
	// Artifacts are still persisted on classification failure
	assert.NotEmpty(t, calls[0].stillPath)
	assert.NotEmpty(t, calls[0].videoPath)
}

func TestStillFailureSkipsClassification(t *testing.T) {
	cam := &fakeCamera{stillErr: errors.NewStd("camera busy")}
	store := &fakeStore{}
	cls := &fakeClassifier{result: classifier.Result{Label: "robin", Confidence: 0.99}}
	ctrl := New(newFakeWaiter(1), cam, cls, birdGate(), store, nil, conf.CameraSettings{VideoDuration: time.Second})

	runSessions(t, ctrl, store, 1)

	assert.Equal(t, 0, cls.callCount())
	calls := store.finalized()
	require.Len(t, calls, 1)
	assert.Equal(t, classifier.DecisionUndetermined, calls[0].decision)
	assert.Empty(t, calls[0].stillPath)
	// Video still recorded and persisted
	assert.NotEmpty(t, calls[0].videoPath)
}

func TestVideoStartFailureStillFinalizes(t *testing.T) {
	cam := &fakeCamera{recordErr: errors.NewStd("encoder unavailable")}
	store := &fakeStore{}
	cls := &fakeClassifier{result: classifier.Result{Label: "robin", Confidence: 0.9}}
	ctrl := New(newFakeWaiter(1), cam, cls, birdGate(), store, nil, conf.CameraSettings{VideoDuration: time.Second})

	runSessions(t, ctrl, store, 1)

	calls := store.finalized()
	require.Len(t, calls, 1)
	assert.Equal(t, classifier.DecisionBird, calls[0].decision)
	assert.Empty(t, calls[0].videoPath)
	assert.NotEmpty(t, calls[0].stillPath)
}

func TestVideoWaitFailureDropsVideoArtifact(t *testing.T) {
	cam := &fakeCamera{waitErr: errors.NewStd("encoder died mid-recording")}
	store := &fakeStore{}
	cls := &fakeClassifier{result: classifier.Result{Label: "robin", Confidence: 0.9}}
	ctrl := New(newFakeWaiter(1), cam, cls, birdGate(), store, nil, conf.CameraSettings{VideoDuration: time.Second})

	runSessions(t, ctrl, store, 1)

	calls := store.finalized()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].videoPath)
	assert.Equal(t, classifier.DecisionBird, calls[0].decision)
}

func TestSessionsNeverOverlap(t *testing.T) {
	cam := &fakeCamera{}
	store := &fakeStore{}
	cls := &fakeClassifier{result: classifier.Result{Label: "robin", Confidence: 0.9}}
	ctrl := New(newFakeWaiter(5), cam, cls, birdGate(), store, nil, conf.CameraSettings{VideoDuration: time.Second})

	runSessions(t, ctrl, store, 5)

	// Strict alternation proves sessions ran one at a time
	ops := cam.ops()
	require.Len(t, ops, 10)
	for i, op := range ops {
		if i%2 == 0 {
			assert.Equal(t, "still", op)
		} else {
			assert.Equal(t, "record-start", op)
		}
	}

	calls := store.finalized()
	require.Len(t, calls, 5)
	seen := make(map[string]bool)
	for _, call := range calls {
		assert.False(t, seen[call.sessionID], "session id reused")
		seen[call.sessionID] = true
	}
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	ctrl := New(newFakeWaiter(0), &fakeCamera{}, &fakeClassifier{}, birdGate(), &fakeStore{}, nil,
		conf.CameraSettings{VideoDuration: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
}

func TestShutdownWaitsForClassificationWithinGrace(t *testing.T) {
	cam := &fakeCamera{}
	store := &fakeStore{}
	started := make(chan struct{})
	release := make(chan struct{})
	cls := &fakeClassifier{result: classifier.Result{Label: "robin", Confidence: 0.9}}
	cls.onInvoke = func() {
		close(started)
		<-release
	}
	ctrl := New(newFakeWaiter(1), cam, cls, birdGate(), store, nil, conf.CameraSettings{VideoDuration: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	// Cancel mid-classify, then let the classifier finish inside the grace
	// period
	<-started
	cancel()
	close(release)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after classification finished")
	}

	calls := store.finalized()
	require.Len(t, calls, 1)
	assert.Equal(t, classifier.DecisionBird, calls[0].decision)
}

func TestShutdownAbandonsStuckClassificationAfterGrace(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the full shutdown grace period")
	}
	cam := &fakeCamera{}
	store := &fakeStore{}
	started := make(chan struct{})
	block := make(chan struct{})
	cls := &fakeClassifier{result: classifier.Result{Label: "robin", Confidence: 0.9}}
	cls.onInvoke = func() {
		close(started)
		<-block
	}
	ctrl := New(newFakeWaiter(1), cam, cls, birdGate(), store, nil, conf.CameraSettings{VideoDuration: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	<-started
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownGrace + 3*time.Second):
		t.Fatal("pipeline did not abandon the stuck classification")
	}

	// The session is finalized as undetermined, artifacts are kept
	calls := store.finalized()
	require.Len(t, calls, 1)
	assert.Equal(t, classifier.DecisionUndetermined, calls[0].decision)
	assert.NotEmpty(t, calls[0].stillPath)

	close(block)
}

func TestRunReturnsSensorDeath(t *testing.T) {
	waiter := &fakeWaiter{err: sensor.ErrSensorDead}
	ctrl := New(waiter, &fakeCamera{}, &fakeClassifier{}, birdGate(), &fakeStore{}, nil,
		conf.CameraSettings{VideoDuration: time.Second})

	err := ctrl.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sensor.ErrSensorDead)
}

func TestSessionStateNeverRegresses(t *testing.T) {
	s := newSession(time.Now())
	assert.Equal(t, StateCapturingStill, s.State())

	require.NoError(t, s.advance(StateRecordingVideo))
	require.NoError(t, s.advance(StateClassifying))
	assert.Error(t, s.advance(StateRecordingVideo))
	assert.Error(t, s.advance(StateClassifying))
	require.NoError(t, s.advance(StateFinalized))
	assert.Equal(t, StateFinalized, s.State())
}
