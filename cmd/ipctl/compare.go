package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	ipregistry "github.com/kailas-cloud/ipregistry/pkg/sdk"
)

func newCompareCmd() *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Score two descriptions locally",
		Long: `Print the TF-IDF cosine similarity of two descriptions.

Runs offline with the same scoring the registry uses. A score strictly above
the threshold would be rejected as a duplicate.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !(threshold > 0 && threshold <= 1) {
				return fmt.Errorf("threshold must be in (0, 1], got %v", threshold)
			}
			score := ipregistry.Similarity(args[0], args[1])

			verdict := color.GreenString("distinct")
			if score > threshold {
				verdict = color.RedString("duplicate")
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%.4f %s\n", score, verdict)
			return err
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", ipregistry.DefaultThreshold, "similarity threshold in (0, 1]")
	return cmd
}
