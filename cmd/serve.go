package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/twinpilot/internal/compliance"
	"github.com/ziadkadry99/twinpilot/internal/pipeline"
	"github.com/ziadkadry99/twinpilot/internal/server"
)

var (
	servePort     int
	serveAllowAll bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for the twin",
	Long:  `Starts the HTTP and WebSocket server: POST /api/ask for single questions, /ws/chat for interactive sessions, and read-only audit and history endpoints.`,
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

		srv := server.New(
			server.Config{Port: servePort, PersonaID: cfg.PersonaID, AllowAll: serveAllowAll},
			pipe,
			compliance.NewStore(database),
			pipeline.NewConversationStore(database),
		)
		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8374, "port to listen on")
	serveCmd.Flags().BoolVar(&serveAllowAll, "allow-all-origins", false, "allow all CORS origins (dev mode)")
	rootCmd.AddCommand(serveCmd)
}
