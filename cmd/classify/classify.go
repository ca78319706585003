package classify

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/birdfeeder-go/internal/conf"
	"github.com/tphakala/birdfeeder-go/internal/pipeline"
)

// Command creates the classify command for one-shot classification of an
// image file, used for model and threshold tuning.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [image.jpg]",
		Short: "Classify a single image file",
		Long:  "Run the bird classifier on one image and print the label, confidence and gate decision. Writes a thumbnail next to the image when a bird is detected.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return pipeline.ClassifyFile(settings, args[0])
		},
	}

	return cmd
}
