// policy_age.go age retention policy
package diskmanager

import (
	"runtime"
	"time"

	"github.com/tphakala/birdfeeder-go/internal/conf"
)

// ageBasedCleanup removes artifacts older than the configured retention
// period, keeping the most recent sessions regardless of age.
func (m *Manager) ageBasedCleanup() error {
	retentionHours, err := conf.ParseRetentionPeriod(m.settings.MaxAge)
	if err != nil {
		m.log.Error("invalid retention period", "maxage", m.settings.MaxAge, "error", err)
		return err
	}

	files, err := m.collectArtifacts()
	if err != nil {
		return err
	}
	protected := m.protectedSessions(files)

	expirationTime := time.Now().Add(-time.Duration(retentionHours) * time.Hour)
	deletedFiles := 0

	for i := range files {
		file := &files[i]
		if !file.Timestamp.Before(expirationTime) {
			// Sorted oldest first, nothing newer can be expired
			break
		}
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
	}

	if deletedFiles > 0 {
		m.log.Info("age retention policy applied", "files_deleted", deletedFiles)
	}
	return nil
}
