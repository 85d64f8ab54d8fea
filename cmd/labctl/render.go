package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ashureev/challenge-lab/internal/domain"
	"github.com/ashureev/challenge-lab/internal/preview"
)

var renderCmd = &cobra.Command{
	Use:   "render [dir]",
	Short: "Print the preview document for the files in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := os.ReadDir(args[0])
		if err != nil {
			return fmt.Errorf("read dir: %w", err)
		}

		var files []domain.WorkingFile
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(args[0], e.Name()))
			if err != nil {
				return fmt.Errorf("read %s: %w", e.Name(), err)
			}
			files = append(files, domain.WorkingFile{Name: e.Name(), Content: string(data)})
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

		_, err = fmt.Fprintln(cmd.OutOrStdout(), preview.Compose(preview.SourcesFromFiles(files)))
		return err
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
}
