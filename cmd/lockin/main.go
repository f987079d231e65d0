// Package main provides the lockin CLI entry point.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Karthik-Ragunath/lock-in/cli"
	"github.com/Karthik-Ragunath/lock-in/config"
)

var (
	// Global flags
	provider string
	model    string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "lockin",
		Short: "Narrate an AI coding agent's reasoning as live speech",
		Long: `Narrates an AI coding agent's reasoning steps as conversational speech
and routes spoken listener questions back into the session.

Commands:
- serve: HTTP tool surface the agent calls between reasoning steps
- listen: tail a trace file and narrate each step as it appears
- speak: host the speech-side endpoint (prints delivered lines)
- transcripts: list archived session transcripts`,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "LLM model override")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(listenCmd())
	rootCmd.AddCommand(speakCmd())
	rootCmd.AddCommand(transcriptsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{Provider: provider, Model: model, Verbose: verbose}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP tool surface for agent narration",
		Long: `Run the HTTP server the agent calls between reasoning steps.

Endpoints: /stream_step, /answer_question, /pause, /resume, /rewind,
/end_session, /status, /summary, /history, /health.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.New()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cli.Serve(ctx, settings, options())
		},
	}
}

func listenCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "listen [trace-file]",
		Short: "Tail an agent trace file and narrate each step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.New()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cli.Listen(ctx, settings, options(), args[0], sessionID)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID (generated when omitted)")
	return cmd
}

func speakCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "speak",
		Short: "Host the speech-side endpoint and print delivered narration",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.New()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cli.Speak(ctx, settings, options(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8766, "Port for the speech-side websocket endpoint")
	return cmd
}

func transcriptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcripts",
		Short: "List archived session transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.New()
			if err != nil {
				return err
			}
			return cli.Transcripts(cmd.Context(), settings)
		},
	}
}
