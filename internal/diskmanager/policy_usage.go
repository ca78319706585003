// policy_usage.go disk usage retention policy
package diskmanager

import (
	"runtime"

	"github.com/tphakala/birdfeeder-go/internal/conf"
)

// usageBasedCleanup deletes the oldest artifacts while disk usage stays
// above the configured threshold, keeping the most recent sessions.
func (m *Manager) usageBasedCleanup() error {
	maxUsage, err := conf.ParsePercentage(m.settings.MaxUsage)
	if err != nil {
		m.log.Error("invalid max usage", "maxusage", m.settings.MaxUsage, "error", err)
		return err
	}

	usage, err := getDiskUsage(m.baseDir)
	if err != nil {
		return err
	}
	if usage <= maxUsage {
		return nil
	}

	files, err := m.collectArtifacts()
	if err != nil {
		return err
	}
	protected := m.protectedSessions(files)

	deletedFiles := 0
	for i := range files {
		file := &files[i]
		if protected[file.SessionKey] {
			continue
		}
		if err := m.deleteFile(file); err != nil {
			continue
		}
		deletedFiles++

		// Yield to other goroutines
		runtime.Gosched()

		if deletedFiles >= maxDeletions {
			m.log.Info("reached maximum number of deletions", "max", maxDeletions)
			break
		}

		usage, err = getDiskUsage(m.baseDir)
		if err != nil {
			return err
		}
		if usage <= maxUsage {
			break
		}
	}

	if deletedFiles > 0 {
		m.log.Info("usage retention policy applied",
			"files_deleted", deletedFiles,
			"max_usage", m.settings.MaxUsage)
	}
	return nil
}

// getDiskUsage is swappable in tests.
var getDiskUsage = func(path string) (float64, error) {
	return GetDiskUsage(path)
}
