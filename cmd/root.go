package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdfeeder-go/cmd/classify"
	"github.com/tphakala/birdfeeder-go/cmd/watch"
	"github.com/tphakala/birdfeeder-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "birdfeeder",
		Short: "BirdFeeder-Go CLI",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	// Add sub-commands to the root command.
	subcommands := []*cobra.Command{
		watch.Command(settings),
		classify.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Classifier.ModelPath, "model", viper.GetString("classifier.modelpath"), "Path to the TFLite classification model")
	rootCmd.PersistentFlags().StringVar(&settings.Classifier.LabelPath, "labels", viper.GetString("classifier.labelpath"), "Path to the model label file")
	rootCmd.PersistentFlags().Float64VarP(&settings.Classifier.Threshold, "threshold", "t", viper.GetFloat64("classifier.threshold"), "Confidence threshold for bird detections, value between 0.1 to 1.0")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
