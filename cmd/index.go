package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/twinpilot/internal/knowledge"
	"github.com/ziadkadry99/twinpilot/internal/progress"
)

var (
	indexInclude []string
	indexExclude []string
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Index grounding material for the twin",
	Long: `Reads text and markdown files from a directory, splits them into
passages, embeds them, and persists the result as the twin's grounding
material. Defaults to the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		files, err := knowledge.CollectFiles(root, indexInclude, indexExclude)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no files matched under %s", root)
		}

		store, err := openKnowledgeStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		reporter := progress.NewReporter()
		reporter.Start(len(files))

		indexed := 0
		for _, file := range files {
			content, err := os.ReadFile(filepath.Join(root, file))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", file, err)
				reporter.FileDone(file, 0)
				continue
			}

			sourceID := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			passages := knowledge.SplitDocument(cfg.PersonaID, sourceID, string(content))
			if len(passages) > 0 {
				if err := store.AddPassages(cmd.Context(), passages); err != nil {
					return fmt.Errorf("indexing %s: %w", file, err)
				}
				indexed += len(passages)
			}
			reporter.FileDone(file, len(passages))
		}
		reporter.Finish(indexed)

		if err := store.Persist(cmd.Context(), groundingDir(cfg)); err != nil {
			return fmt.Errorf("persisting grounding store: %w", err)
		}

		fmt.Printf("Indexed %d passages from %d files (%d total in store)\n", indexed, len(files), store.Count())
		return nil
	},
}

func init() {
	indexCmd.Flags().StringSliceVar(&indexInclude, "include", nil, "include globs (default **/*.md, **/*.txt)")
	indexCmd.Flags().StringSliceVar(&indexExclude, "exclude", nil, "exclude globs")
	rootCmd.AddCommand(indexCmd)
}
