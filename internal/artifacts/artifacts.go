// Package artifacts owns the on-disk layout of capture artifacts: stills,
// videos and the thumbnails derived for accepted detections. Images and
// videos live in separate trees so retention and upload can treat them
// independently.
package artifacts

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/tphakala/birdfeeder-go/internal/classifier"
	"github.com/tphakala/birdfeeder-go/internal/errors"
	"github.com/tphakala/birdfeeder-go/internal/logging"
)

// Kind identifies the artifact type.
type Kind string

const (
	KindStill     Kind = "still"
	KindVideo     Kind = "video"
	KindThumbnail Kind = "thumbnail"
)

// Artifact is one persisted file belonging to a capture session.
type Artifact struct {
	Kind      Kind
	Path      string
	SessionID string
	CreatedAt time.Time
}

// thumbnailSize is the bounding box thumbnails are fitted into.
const thumbnailSize = 224

// timestampFormat keys filenames by capture time. Chronologically sortable
// and free of characters that are invalid on some filesystems.
const timestampFormat = "20060102_150405.000"

// Uploader receives finalized artifact paths for background upload. Enqueue
// must never block; the manager treats upload as fire-and-forget.
type Uploader interface {
	Enqueue(kind, path string)
}

// Manager persists session artifacts under the data root.
type Manager struct {
	baseDir  string
	uploader Uploader // nil when upload is disabled
	log      *slog.Logger
}

// NewManager creates the artifact directory layout under baseDir and returns
// a manager over it.
func NewManager(baseDir string, uploader Uploader) (*Manager, error) {
	for _, dir := range []string{
		filepath.Join(baseDir, "images"),
		filepath.Join(baseDir, "videos"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(fmt.Errorf("failed to create artifact directory: %w", err)).
				Component("artifacts").
				Category(errors.CategoryFileIO).
				Context("dir", dir).
				Build()
		}
	}

	return &Manager{
		baseDir:  baseDir,
		uploader: uploader,
		log:      logging.ForService("artifacts"),
	}, nil
}

// BaseDir returns the artifact root directory.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// StillPath returns the deterministic still image path for a session that
// started at t.
func (m *Manager) StillPath(t time.Time) string {
	return filepath.Join(m.baseDir, "images", t.Format("2006-01-02"),
		fmt.Sprintf("still_%s.jpg", t.Format(timestampFormat)))
}

// ThumbnailPath returns the deterministic thumbnail path for a session that
// started at t.
func (m *Manager) ThumbnailPath(t time.Time) string {
	return filepath.Join(m.baseDir, "images", t.Format("2006-01-02"),
		fmt.Sprintf("thumb_%s.jpg", t.Format(timestampFormat)))
}

// VideoPath returns the deterministic video path for a session that started
// at t.
func (m *Manager) VideoPath(t time.Time) string {
	return filepath.Join(m.baseDir, "videos", t.Format("2006-01-02"),
		fmt.Sprintf("video_%s.mp4", t.Format(timestampFormat)))
}

// Finalize persists the artifact set of a finished session: it records the
// still and video when they were captured, and derives a thumbnail from the
// still iff the gate decision was bird. Finalize is idempotent; running it
// again for the same session overwrites the thumbnail by the same name and
// records the same artifact set. Storage problems are returned for operator
// visibility but the session must still be treated as finalized by the
// caller to avoid retry loops.
func (m *Manager) Finalize(sessionID string, start time.Time, stillPath, videoPath string, decision classifier.Decision) ([]Artifact, error) {
	var artifacts []Artifact
	var finalizeErr error
	now := time.Now()

	if stillPath != "" {
		if fileExists(stillPath) {
			artifacts = append(artifacts, Artifact{KindStill, stillPath, sessionID, now})
		} else {
			finalizeErr = errors.Join(finalizeErr, errors.Newf("still image missing at finalize: %s", stillPath).
				Component("artifacts").
				Category(errors.CategoryFileIO).
				SessionContext(sessionID).
				Build())
			stillPath = ""
		}
	}

	if videoPath != "" {
		if fileExists(videoPath) {
			artifacts = append(artifacts, Artifact{KindVideo, videoPath, sessionID, now})
		} else {
			finalizeErr = errors.Join(finalizeErr, errors.Newf("video missing at finalize: %s", videoPath).
				Component("artifacts").
				Category(errors.CategoryFileIO).
				SessionContext(sessionID).
				Build())
			videoPath = ""
		}
	}

	// Thumbnail exists iff the decision is bird and a still to derive it
	// from exists
	if decision == classifier.DecisionBird && stillPath != "" {
		thumbPath := m.ThumbnailPath(start)
		if err := m.writeThumbnail(stillPath, thumbPath); err != nil {
			finalizeErr = errors.Join(finalizeErr, err)
		} else {
			artifacts = append(artifacts, Artifact{KindThumbnail, thumbPath, sessionID, now})
		}
	}

	for _, a := range artifacts {
		m.log.Info("artifact finalized",
			"session_id", sessionID,
			"kind", string(a.Kind),
			"path", a.Path)
		if m.uploader != nil {
			m.uploader.Enqueue(string(a.Kind), a.Path)
		}
	}

	return artifacts, finalizeErr
}

// writeThumbnail derives a thumbnail fitted into the thumbnail bounding box
// from the still image. The original still is never modified.
func (m *Manager) writeThumbnail(stillPath, thumbPath string) error {
	img, err := imaging.Open(stillPath)
	if err != nil {
		return errors.New(fmt.Errorf("failed to open still for thumbnail: %w", err)).
			Component("artifacts").
			Category(errors.CategoryImageDecode).
			Context("path", stillPath).
			Build()
	}

	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)

	if err := imaging.Save(thumb, thumbPath); err != nil {
		return errors.New(fmt.Errorf("failed to save thumbnail: %w", err)).
			Component("artifacts").
			Category(errors.CategoryFileIO).
			Context("path", thumbPath).
			Build()
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
