// Package diskmanager applies retention policies to the artifact tree so an
// unattended device never fills its storage. Two policies are supported:
// age-based deletion and usage-based deletion of the oldest artifacts.
package diskmanager

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tphakala/birdfeeder-go/internal/conf"
	"github.com/tphakala/birdfeeder-go/internal/logging"
	"github.com/tphakala/birdfeeder-go/internal/observability"
)

// allowedExtensions limits cleanup to artifact files, anything else in the
// tree is left alone.
var allowedExtensions = map[string]bool{
	".jpg": true,
	".mp4": true,
}

// maxDeletions caps the number of files removed in one cleanup run.
const maxDeletions = 1000

// ArtifactFile is one artifact found on disk, keyed by its session
// timestamp taken from the filename.
type ArtifactFile struct {
	Path       string
	Size       int64
	Timestamp  time.Time
	SessionKey string // filename timestamp token shared by artifacts of one session
}

// Manager runs retention cleanup over the artifact tree.
type Manager struct {
	baseDir  string
	settings conf.RetentionSettings
	metrics  *observability.Metrics
	log      *slog.Logger
}

// NewManager creates a retention manager for the artifact tree at baseDir.
func NewManager(baseDir string, settings conf.RetentionSettings, metrics *observability.Metrics) *Manager {
	return &Manager{
		baseDir:  baseDir,
		settings: settings,
		metrics:  metrics,
		log:      logging.ForService("diskmanager"),
	}
}

// RunOnce applies the configured retention policy a single time.
func (m *Manager) RunOnce() error {
	switch m.settings.Policy {
	case "age":
		return m.ageBasedCleanup()
	case "usage":
		return m.usageBasedCleanup()
	default:
		return nil
	}
}

// Run applies the retention policy on the configured period until the quit
// channel closes.
func (m *Manager) Run(quit <-chan struct{}) {
	period := m.settings.CheckPeriod
	if period <= 0 {
		period = time.Hour
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			if err := m.RunOnce(); err != nil {
				m.log.Error("retention cleanup failed", "error", err)
			}
		}
	}
}

// collectArtifacts walks the artifact tree and returns artifact files
// sorted oldest first.
func (m *Manager) collectArtifacts() ([]ArtifactFile, error) {
	var files []ArtifactFile

	err := filepath.WalkDir(m.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A vanished file mid-walk is not an error worth aborting for
			return nil
		}
		if d.IsDir() || !allowedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, ArtifactFile{
			Path:       path,
			Size:       info.Size(),
			Timestamp:  info.ModTime(),
			SessionKey: sessionKey(path),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Timestamp.Before(files[j].Timestamp)
	})
	return files, nil
}

// protectedSessions returns the session keys of the newest MinSessions
// sessions; their artifacts are never deleted.
func (m *Manager) protectedSessions(files []ArtifactFile) map[string]bool {
	if m.settings.MinSessions <= 0 {
		return nil
	}

	// files are sorted oldest first, walk from the end
	protected := make(map[string]bool)
	for i := len(files) - 1; i >= 0 && len(protected) < m.settings.MinSessions; i-- {
		key := files[i].SessionKey
		if key != "" {
			protected[key] = true
		}
	}
	return protected
}

// deleteFile removes one artifact and counts the deletion.
func (m *Manager) deleteFile(file *ArtifactFile) error {
	if err := os.Remove(file.Path); err != nil {
		m.log.Error("failed to remove artifact", "path", file.Path, "error", err)
		return err
	}
	m.log.Debug("artifact deleted by retention", "path", file.Path)
	if m.metrics != nil {
		m.metrics.CleanupDeletions.Inc()
	}
	return nil
}

// sessionKey extracts the timestamp token from an artifact filename, e.g.
// "still_20260501_080000.000.jpg" -> "20260501_080000.000".
func sessionKey(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if i := strings.IndexByte(name, '_'); i >= 0 {
		return name[i+1:]
	}
	return ""
}
