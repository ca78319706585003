// Package uploader ships finalized artifacts to S3 compatible object
// storage. Upload is fire-and-forget from the pipeline's point of view:
// enqueueing never blocks a session and failures never reach the capture
// loop.
package uploader

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/birdfeeder-go/internal/conf"
	"github.com/tphakala/birdfeeder-go/internal/logging"
	"github.com/tphakala/birdfeeder-go/internal/observability"
)

// item is one pending artifact upload.
type item struct {
	kind string
	path string
}

// Uploader consumes a bounded queue of artifact paths and uploads them in
// the background.
type Uploader struct {
	store    ObjectStore
	settings conf.UploadSettings
	metrics  *observability.Metrics
	queue    chan item
	log      *slog.Logger

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// ObjectStore is the narrow storage interface the uploader needs. The S3
// client implements it; tests substitute a fake.
type ObjectStore interface {
	Put(ctx context.Context, key, path string) error
}

// New creates an uploader over the given object store.
func New(store ObjectStore, settings conf.UploadSettings, metrics *observability.Metrics) *Uploader {
	queueSize := settings.QueueSize
	if queueSize < 1 {
		queueSize = 64
	}
	return &Uploader{
		store:    store,
		settings: settings,
		metrics:  metrics,
		queue:    make(chan item, queueSize),
		log:      logging.ForService("uploader"),
		done:     make(chan struct{}),
	}
}

// putTimeout bounds a single object upload.
const putTimeout = time.Minute

// Start launches the background upload worker. The worker is detached from
// ctx cancellation so queued artifacts still upload during the Drain window
// at shutdown; each Put carries its own deadline instead.
func (u *Uploader) Start(ctx context.Context) {
	u.startOnce.Do(func() {
		go u.worker(context.WithoutCancel(ctx))
	})
}

// Enqueue queues an artifact for upload without blocking. When the queue is
// full the artifact is skipped with a warning; it remains on local disk.
func (u *Uploader) Enqueue(kind, path string) {
	select {
	case u.queue <- item{kind: kind, path: path}:
	default:
		u.log.Warn("upload queue full, skipping artifact", "kind", kind, "path", path)
		u.countUpload("dropped")
	}
}

// Drain stops accepting work and waits for pending uploads until the
// deadline expires.
func (u *Uploader) Drain(timeout time.Duration) {
	u.closeOnce.Do(func() { close(u.queue) })
	select {
	case <-u.done:
	case <-time.After(timeout):
		u.log.Warn("upload drain deadline expired with uploads pending")
	}
}

func (u *Uploader) worker(ctx context.Context) {
	defer close(u.done)
	for it := range u.queue {
		key := u.objectKey(it)
		putCtx, cancel := context.WithTimeout(ctx, putTimeout)
		err := u.store.Put(putCtx, key, it.path)
		cancel()
		if err != nil {
			u.log.Warn("artifact upload failed",
				"key", key,
				"path", it.path,
				"error", err)
			u.countUpload("error")
			continue
		}
		u.log.Debug("artifact uploaded", "key", key)
		u.countUpload("success")
	}
}

// objectKey builds the object key <prefix>/<kind>/<date>/<filename>, taking
// the date partition from the artifact's parent directory.
func (u *Uploader) objectKey(it item) string {
	date := filepath.Base(filepath.Dir(it.path))
	parts := []string{}
	if u.settings.Prefix != "" {
		parts = append(parts, strings.Trim(u.settings.Prefix, "/"))
	}
	parts = append(parts, it.kind, date, filepath.Base(it.path))
	return strings.Join(parts, "/")
}

func (u *Uploader) countUpload(outcome string) {
	if u.metrics != nil {
		u.metrics.UploadsTotal.WithLabelValues(outcome).Inc()
	}
}
