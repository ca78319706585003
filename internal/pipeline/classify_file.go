// classify_file.go one-shot classification of an image file
package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/tphakala/birdfeeder-go/internal/classifier"
	"github.com/tphakala/birdfeeder-go/internal/conf"
	"github.com/tphakala/birdfeeder-go/internal/logging"
)

// ClassifyFile classifies a single image from disk and prints the result.
// When the gate accepts the image as a bird a thumbnail is written next to
// it. Used for model and threshold tuning without camera hardware.
func ClassifyFile(settings *conf.Settings, imagePath string) error {
	if settings.Debug {
		logging.Init(slog.LevelDebug)
	} else {
		logging.Init(slog.LevelWarn)
	}

	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("cannot access image file: %w", err)
	}

	cls, err := classifier.New(settings.Classifier)
	if err != nil {
		return fmt.Errorf("error initializing classifier: %w", err)
	}
	defer cls.Close()

	result, err := cls.Classify(imagePath)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	gate := classifier.NewGate(acceptedLabels(settings), settings.Classifier.Threshold)
	decision := gate.Judge(result)

	fmt.Printf("Label: %s\n", result.Label)
	fmt.Printf("Confidence: %.4f\n", result.Confidence)
	fmt.Printf("Decision: %s\n", decision)

	if decision != classifier.DecisionBird {
		return nil
	}

	thumbPath := thumbnailSibling(imagePath)
	img, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("error opening image for thumbnail: %w", err)
	}
	thumb := imaging.Fit(img, 224, 224, imaging.Lanczos)
	if err := imaging.Save(thumb, thumbPath); err != nil {
		return fmt.Errorf("error saving thumbnail: %w", err)
	}
	fmt.Printf("Thumbnail: %s\n", thumbPath)

	return nil
}

// thumbnailSibling returns the thumbnail path for an image, next to the
// original with a thumb_ prefix.
func thumbnailSibling(imagePath string) string {
	dir := filepath.Dir(imagePath)
	base := filepath.Base(imagePath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, "thumb_"+name+".jpg")
}
