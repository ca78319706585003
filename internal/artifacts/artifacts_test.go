package artifacts

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdfeeder-go/internal/classifier"
)

// writeTestStill writes a small real JPEG so thumbnail derivation has
// something to decode.
func writeTestStill(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewNRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.NRGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	require.NoError(t, imaging.Save(img, path))
}

// recordingUploader records enqueued artifacts.
type recordingUploader struct {
	enqueued []string
}

func (u *recordingUploader) Enqueue(kind, path string) {
	u.enqueued = append(u.enqueued, kind+":"+path)
}

func newTestManager(t *testing.T) (*Manager, *recordingUploader) {
	t.Helper()
	uploader := &recordingUploader{}
	m, err := NewManager(t.TempDir(), uploader)
	require.NoError(t, err)
	return m, uploader
}

func TestNewManagerCreatesLayout(t *testing.T) {
	base := t.TempDir()
	_, err := NewManager(base, nil)
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(base, "images"))
	assert.DirExists(t, filepath.Join(base, "videos"))
}

func TestPathsAreDateParitionedAndSortable(t *testing.T) {
	m, _ := newTestManager(t)
	earlier := time.Date(2026, 5, 1, 8, 0, 1, 0, time.UTC)
	later := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

	assert.Less(t, m.StillPath(earlier), m.StillPath(later),
		"paths must sort chronologically")
	assert.Contains(t, m.StillPath(earlier), filepath.Join("images", "2026-05-01"))
	assert.Contains(t, m.VideoPath(earlier), filepath.Join("videos", "2026-05-01"))
	assert.NotEqual(t, m.StillPath(earlier), m.ThumbnailPath(earlier))
}

func TestFinalizeBirdCreatesThumbnail(t *testing.T) {
	m, uploader := newTestManager(t)
	start := time.Now()
	stillPath := m.StillPath(start)
	writeTestStill(t, stillPath)
	videoPath := m.VideoPath(start)
	require.NoError(t, os.MkdirAll(filepath.Dir(videoPath), 0o755))
	require.NoError(t, os.WriteFile(videoPath, []byte("video"), 0o644))

	artifacts, err := m.Finalize("s1", start, stillPath, videoPath, classifier.DecisionBird)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	thumbPath := m.ThumbnailPath(start)
	require.FileExists(t, thumbPath)

	// Thumbnail fits in the bounding box, aspect ratio preserved
	thumb, err := imaging.Open(thumbPath)
	require.NoError(t, err)
	assert.Equal(t, 224, thumb.Bounds().Dx())
	assert.LessOrEqual(t, thumb.Bounds().Dy(), 224)

	// The original still is untouched
	still, err := imaging.Open(stillPath)
	require.NoError(t, err)
	assert.Equal(t, 640, still.Bounds().Dx())

	assert.Len(t, uploader.enqueued, 3)
}

func TestFinalizeNoBirdSkipsThumbnail(t *testing.T) {
	m, _ := newTestManager(t)
	start := time.Now()
	stillPath := m.StillPath(start)
	writeTestStill(t, stillPath)

	artifacts, err := m.Finalize("s2", start, stillPath, "", classifier.DecisionNoBird)
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)
	assert.NoFileExists(t, m.ThumbnailPath(start))
}

func TestFinalizeUndeterminedSkipsThumbnail(t *testing.T) {
	m, _ := newTestManager(t)
	start := time.Now()
	stillPath := m.StillPath(start)
	writeTestStill(t, stillPath)

	artifacts, err := m.Finalize("s3", start, stillPath, "", classifier.DecisionUndetermined)
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)
	assert.NoFileExists(t, m.ThumbnailPath(start))
}

func TestFinalizeIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	start := time.Now()
	stillPath := m.StillPath(start)
	writeTestStill(t, stillPath)

	first, err := m.Finalize("s4", start, stillPath, "", classifier.DecisionBird)
	require.NoError(t, err)
	second, err := m.Finalize("s4", start, stillPath, "", classifier.DecisionBird)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Kind, second[i].Kind)
		assert.Equal(t, first[i].Path, second[i].Path)
	}

	// Exactly one thumbnail on disk
	entries, err := os.ReadDir(filepath.Dir(m.ThumbnailPath(start)))
	require.NoError(t, err)
	thumbs := 0
	for _, e := range entries {
		if len(e.Name()) >= 5 && e.Name()[:5] == "thumb" {
			thumbs++
		}
	}
	assert.Equal(t, 1, thumbs)
}

func TestFinalizeMissingStillIsWarningNotFatal(t *testing.T) {
	m, _ := newTestManager(t)
	start := time.Now()

	artifacts, err := m.Finalize("s5", start, m.StillPath(start), "", classifier.DecisionBird)
	assert.Error(t, err, "missing still is surfaced for operator visibility")
	assert.Empty(t, artifacts)
	assert.NoFileExists(t, m.ThumbnailPath(start))
}

func TestFinalizeVideoOnlySession(t *testing.T) {
	// Still capture failed, video succeeded: evidence is kept, no thumbnail
	m, _ := newTestManager(t)
	start := time.Now()
	videoPath := m.VideoPath(start)
	require.NoError(t, os.MkdirAll(filepath.Dir(videoPath), 0o755))
	require.NoError(t, os.WriteFile(videoPath, []byte("video"), 0o644))

	artifacts, err := m.Finalize("s6", start, "", videoPath, classifier.DecisionUndetermined)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, KindVideo, artifacts[0].Kind)
}
