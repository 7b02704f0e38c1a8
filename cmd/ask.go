package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/twinpilot/internal/turn"
)

var askAsOwner bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the twin a question from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		store, err := openKnowledgeStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		pipe, err := buildPipeline(cmd.Context(), cfg, database, store)
		if err != nil {
			return err
		}

		tag := turn.ContextPublic
		if askAsOwner {
			tag = turn.ContextOwner
		}

		result, err := pipe.Run(cmd.Context(), turn.Turn{
			ID:        uuid.New().String(),
			Utterance: strings.Join(args, " "),
			PersonaID: cfg.PersonaID,
			Context:   tag,
		})
		if err != nil {
			return err
		}

		fmt.Println(result.FinalText)
		if len(result.Citations) > 0 {
			fmt.Printf("\nSources: %s\n", strings.Join(result.Citations, ", "))
		}
		if verbose {
			fmt.Printf("\nConfidence: %.2f\n", result.Confidence)
			fmt.Printf("Intent: %s\n", result.Routing.Intent)
			if result.Answerability != nil {
				fmt.Printf("Answerability: %s\n", result.Answerability.State)
			}
			if result.Compliance != nil {
				fmt.Printf("Compliance: rewrite=%v fail_safe=%v score=%.2f\n",
					result.Compliance.RewriteApplied, result.Compliance.FailSafeUsed, result.Compliance.BlendedFinalScore)
			}
			fmt.Printf("Elapsed: %s\n", result.Elapsed)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askAsOwner, "owner", false, "ask as the twin's owner rather than a public visitor")
	rootCmd.AddCommand(askCmd)
}
