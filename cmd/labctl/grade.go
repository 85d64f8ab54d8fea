package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ashureev/challenge-lab/internal/catalog"
	"github.com/ashureev/challenge-lab/internal/domain"
	"github.com/ashureev/challenge-lab/internal/fileset"
	"github.com/ashureev/challenge-lab/internal/grading"
)

var gradeJSON bool

var gradeCmd = &cobra.Command{
	Use:   "grade [challenge.yaml] [file...]",
	Short: "Grade local files against a challenge",
	Long: `Grade matches each file to the challenge file of the same name.
Challenge files not given keep their starter code.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := catalog.LoadFile(os.DirFS(filepath.Dir(args[0])), filepath.Base(args[0]))
		if err != nil {
			return err
		}

		files, err := workingFiles(c, args[1:])
		if err != nil {
			return err
		}
		summary := grading.Grade(c, fileset.Concatenate(files))

		out := cmd.OutOrStdout()
		if gradeJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		for _, check := range summary.Checks {
			fmt.Fprintln(out, check.Message)
		}
		status := "not passed"
		if summary.Passed {
			status = "passed"
		}
		fmt.Fprintf(out, "\nScore: %d%% (%s, needs %d%%)\n", summary.Score, status, c.PassingScore)
		return nil
	},
}

// workingFiles starts from the starter code and overlays the given files.
func workingFiles(c *domain.Challenge, paths []string) ([]domain.WorkingFile, error) {
	store := fileset.New(c.Files)
	for _, p := range paths {
		name := filepath.Base(p)
		index := -1
		for i, f := range c.Files {
			if f.Name == name {
				index = i
				break
			}
		}
		if index < 0 {
			return nil, fmt.Errorf("%s is not a file of challenge %s", name, c.ID)
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		store.SetActive(index)
		store.UpdateActive(string(data))
	}
	return store.Files(), nil
}

func init() {
	rootCmd.AddCommand(gradeCmd)

	gradeCmd.Flags().BoolVar(&gradeJSON, "json", false, "Print the grade summary as JSON")
}
