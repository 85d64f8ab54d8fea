package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashureev/challenge-lab/internal/catalog"
)

var validateStrict bool

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate every challenge in a content pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := catalog.LoadPack(os.DirFS(args[0]))
		if err != nil {
			return fmt.Errorf("load pack: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, c := range result.Challenges {
			fmt.Fprintf(out, "ok    %s (%d requirements, %d points)\n", c.ID, len(c.Requirements), c.TotalPoints)
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(out, "warn  %s\n", w)
		}
		for _, e := range result.Errors {
			fmt.Fprintf(out, "error %v\n", e)
		}

		if len(result.Errors) > 0 {
			return fmt.Errorf("%d invalid challenge(s)", len(result.Errors))
		}
		if validateStrict && len(result.Warnings) > 0 {
			return fmt.Errorf("%d warning(s) in strict mode", len(result.Warnings))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Treat warnings as errors")
}
