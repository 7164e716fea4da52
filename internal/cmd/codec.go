package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/planforge/planforge/internal/buildplan"
	"github.com/planforge/planforge/internal/codec"
	"github.com/planforge/planforge/internal/errors"
)

var (
	codecOut    string
	codecLegend string
)

var compressCmd = &cobra.Command{
	Use:   "compress <plan.json>",
	Short: "Compress a finalized BuildPlan into an artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompress,
}

var decompressCmd = &cobra.Command{
	Use:   "decompress <artifact.json>",
	Short: "Expand an artifact back into a BuildPlan",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecompress,
}

func init() {
	compressCmd.Flags().StringVar(&codecOut, "out", "", "output path (default: stdout)")
	compressCmd.Flags().StringVar(&codecLegend, "legend", codec.LegendVersion1, "legend version to compress with")
	decompressCmd.Flags().StringVar(&codecOut, "out", "", "output path (default: stdout)")
	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(decompressCmd)
}

func runCompress(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileReadFailed, "read plan file", err)
	}

	var plan buildplan.BuildPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return errors.Wrap(errors.ErrCodeFileUnmarshal, "parse plan file", err)
	}

	artifact, err := codec.New(codec.NewRegistry()).Compress(&plan, codecLegend)
	if err != nil {
		return err
	}
	out, err := artifact.Marshal()
	if err != nil {
		return err
	}

	if err := writeOutput(out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "compressed with legend %s, ratio %.2f\n",
		codecLegend, codec.EstimateRatio(&plan, artifact))
	return nil
}

func runDecompress(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileReadFailed, "read artifact file", err)
	}

	artifact, err := codec.UnmarshalArtifact(data)
	if err != nil {
		return err
	}
	result, err := codec.New(codec.NewRegistry()).Decompress(artifact)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result.Plan, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "marshal plan", err)
	}
	if err := writeOutput(out); err != nil {
		return err
	}

	if len(result.Unrecognized) > 0 {
		fmt.Fprintf(os.Stderr, "%d unrecognized code(s) preserved verbatim\n", len(result.Unrecognized))
	}
	return nil
}

func writeOutput(data []byte) error {
	if codecOut == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(codecOut, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write output file", err)
	}
	return nil
}
