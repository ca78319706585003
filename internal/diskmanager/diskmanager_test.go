package diskmanager

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdfeeder-go/internal/conf"
)

// writeArtifact creates an artifact file with the given age.
func writeArtifact(t *testing.T, baseDir, rel string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(baseDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("artifact"), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func retention(policy string) conf.RetentionSettings {
	return conf.RetentionSettings{
		Policy:   policy,
		MaxAge:   "24h",
		MaxUsage: "80%",
	}
}

func TestAgeCleanupDeletesOnlyExpiredArtifacts(t *testing.T) {
	base := t.TempDir()
	old := writeArtifact(t, base, "images/2026-05-01/still_20260501_080000.000.jpg", 48*time.Hour)
	oldVideo := writeArtifact(t, base, "videos/2026-05-01/video_20260501_080000.000.mp4", 48*time.Hour)
	fresh := writeArtifact(t, base, "images/2026-05-03/still_20260503_080000.000.jpg", time.Hour)

	m := NewManager(base, retention("age"), nil)
	require.NoError(t, m.RunOnce())

	assert.NoFileExists(t, old)
	assert.NoFileExists(t, oldVideo)
	assert.FileExists(t, fresh)
}

func TestAgeCleanupKeepsMinimumSessions(t *testing.T) {
	base := t.TempDir()
	var paths []string
	for i := 0; i < 5; i++ {
		rel := fmt.Sprintf("images/2026-04-0%d/still_2026040%d_080000.000.jpg", i+1, i+1)
		paths = append(paths, writeArtifact(t, base, rel, time.Duration(100+i)*time.Hour))
	}

	settings := retention("age")
	settings.MinSessions = 2
	m := NewManager(base, settings, nil)
	require.NoError(t, m.RunOnce())

	// Everything is expired but the two newest sessions survive
	assert.NoFileExists(t, paths[0])
	assert.NoFileExists(t, paths[1])
	assert.NoFileExists(t, paths[2])
	assert.FileExists(t, paths[3])
	assert.FileExists(t, paths[4])
}

func TestAgeCleanupProtectsWholeSession(t *testing.T) {
	base := t.TempDir()
	still := writeArtifact(t, base, "images/2026-05-01/still_20260501_080000.000.jpg", 48*time.Hour)
	thumb := writeArtifact(t, base, "images/2026-05-01/thumb_20260501_080000.000.jpg", 48*time.Hour)
	video := writeArtifact(t, base, "videos/2026-05-01/video_20260501_080000.000.mp4", 48*time.Hour)

	settings := retention("age")
	settings.MinSessions = 1
	m := NewManager(base, settings, nil)
	require.NoError(t, m.RunOnce())

	// All three artifacts share the session key and are protected together
	assert.FileExists(t, still)
	assert.FileExists(t, thumb)
	assert.FileExists(t, video)
}

func TestCleanupIgnoresForeignFiles(t *testing.T) {
	base := t.TempDir()
	note := writeArtifact(t, base, "images/2026-05-01/README.txt", 1000*time.Hour)

	m := NewManager(base, retention("age"), nil)
	require.NoError(t, m.RunOnce())

	assert.FileExists(t, note)
}

func TestUsageCleanupDeletesOldestFirst(t *testing.T) {
	base := t.TempDir()
	oldest := writeArtifact(t, base, "images/2026-05-01/still_20260501_080000.000.jpg", 72*time.Hour)
	newer := writeArtifact(t, base, "images/2026-05-02/still_20260502_080000.000.jpg", 24*time.Hour)

	calls := 0
	orig := getDiskUsage
	getDiskUsage = func(path string) (float64, error) {
		calls++
		// Above threshold on the first check, below afterwards
		if calls == 1 {
			return 95.0, nil
		}
		return 50.0, nil
	}
	defer func() { getDiskUsage = orig }()

	m := NewManager(base, retention("usage"), nil)
	require.NoError(t, m.RunOnce())

	assert.NoFileExists(t, oldest)
	assert.FileExists(t, newer)
}

func TestUsageCleanupNoopBelowThreshold(t *testing.T) {
	base := t.TempDir()
	file := writeArtifact(t, base, "images/2026-05-01/still_20260501_080000.000.jpg", 72*time.Hour)

	orig := getDiskUsage
	getDiskUsage = func(path string) (float64, error) { return 10.0, nil }
	defer func() { getDiskUsage = orig }()

	m := NewManager(base, retention("usage"), nil)
	require.NoError(t, m.RunOnce())

	assert.FileExists(t, file)
}

func TestNonePolicyDeletesNothing(t *testing.T) {
	base := t.TempDir()
	file := writeArtifact(t, base, "images/2026-05-01/still_20260501_080000.000.jpg", 10000*time.Hour)

	m := NewManager(base, retention("none"), nil)
	require.NoError(t, m.RunOnce())

	assert.FileExists(t, file)
}

func TestSessionKeyExtraction(t *testing.T) {
	assert.Equal(t, "20260501_080000.000", sessionKey("/data/images/2026-05-01/still_20260501_080000.000.jpg"))
	assert.Equal(t, "20260501_080000.000", sessionKey("/data/videos/2026-05-01/video_20260501_080000.000.mp4"))
	assert.Equal(t, "", sessionKey("/data/images/2026-05-01/readme.jpg"))
}
