// Command execution for CLI commands.
//
// Information Hiding:
// - Component wiring hidden from the command definitions
// - Output formatting hidden
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Karthik-Ragunath/lock-in/bridge"
	"github.com/Karthik-Ragunath/lock-in/config"
	"github.com/Karthik-Ragunath/lock-in/llm"
	"github.com/Karthik-Ragunath/lock-in/narrate"
	"github.com/Karthik-Ragunath/lock-in/server"
	"github.com/Karthik-Ragunath/lock-in/session"
	"github.com/Karthik-Ragunath/lock-in/storage"
	"github.com/Karthik-Ragunath/lock-in/trace"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	Model    string
	Verbose  bool
}

// NewLogger builds the process logger. Verbose enables debug level.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildNarrator assembles the narration pipeline from settings. The
// returned cleanup closes the archive when one is configured.
func buildNarrator(settings config.Settings, opts Options, logger *slog.Logger) (*server.Narrator, func(), error) {
	providerName := settings.LLM.Provider
	if opts.Provider != "" {
		providerName = opts.Provider
	}
	modelName := settings.LLM.Model
	if opts.Model != "" {
		modelName = opts.Model
	}

	var completer narrate.Completer
	if providerName != "" {
		provider, err := llm.NewProvider(providerName, modelName, settings.LLM.MaxTokens, float32(settings.LLM.Temperature))
		if err != nil {
			logger.Warn("LLM provider unavailable, narration is template-only", "provider", providerName, "error", err)
		} else {
			completer = llm.NewClient(provider)
			logger.Info("LLM narration enabled", "provider", provider.Name(), "model", provider.Model())
		}
	}

	conn := bridge.NewConn(settings.Bridge.VoiceWSURL, logger,
		bridge.WithTimeouts(settings.Bridge.DialTimeout, settings.Bridge.SendTimeout))

	cleanup := func() {}
	var archive *storage.Archive
	if settings.Archive.Path != "" {
		var err error
		archive, err = storage.OpenSqlite(settings.Archive.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening transcript archive: %w", err)
		}
		cleanup = func() { archive.Close() }
		logger.Info("transcript archive enabled", "path", settings.Archive.Path)
	}

	store := session.NewStore(logger)
	gen := narrate.NewGenerator(completer, logger, narrate.WithMaxLength(settings.Narration.MaxLength))
	return server.NewNarrator(store, gen, conn, archive, logger), cleanup, nil
}

// Serve runs the HTTP tool surface until the context is cancelled.
func Serve(ctx context.Context, settings config.Settings, opts Options) error {
	logger := NewLogger(opts.Verbose)
	narrator, cleanup, err := buildNarrator(settings, opts, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", settings.Server.Port),
		Handler: server.New(narrator).Routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("narration server listening", "port", settings.Server.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("narration server: %w", err)
	}
	return nil
}

// Listen tails an agent trace file, narrating each reasoning step as it
// appears. Listener questions surfaced by the bridge are answered inline.
func Listen(ctx context.Context, settings config.Settings, opts Options, tracePath, sessionID string) error {
	logger := NewLogger(opts.Verbose)
	narrator, cleanup, err := buildNarrator(settings, opts, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	listener := trace.NewFileListener(tracePath, logger)
	steps := listener.Listen(ctx)

	fmt.Printf("Listening to %s...\n\n", tracePath)
	for step := range steps {
		result := narrator.StreamStep(ctx, server.StepRequest{
			SessionID:         sessionID,
			StepNumber:        step.StepNumber,
			Description:       step.Description,
			ThinkingType:      string(step.ThinkingType),
			EstimatedDuration: step.EstimatedDuration,
			FilesInvolved:     step.FilesInvolved,
		})
		sessionID = result.SessionID
		fmt.Printf("[%d] %s\n", result.StepNumber, result.Narration)

		if result.UserQuestion != "" {
			answer := narrator.AnswerQuestion(ctx, sessionID, result.UserQuestion, nil)
			fmt.Printf("    Q: %s\n    A: %s\n", result.UserQuestion, answer.Answer)
		}
	}

	if sessionID != "" {
		narrator.EndSession(context.Background(), sessionID)
	}
	fmt.Printf("\nTrace exhausted after %d steps.\n", listener.StepCount())
	return nil
}

// Speak hosts the speech-side endpoint: it accepts the bridge connection,
// queues narration, and prints each delivered line. A real deployment
// replaces the print callback with a text-to-speech engine.
func Speak(ctx context.Context, settings config.Settings, opts Options, port int) error {
	logger := NewLogger(opts.Verbose)
	speaker := bridge.NewSpeaker(settings.Bridge.QuestionResumeDelay, settings.Bridge.DeliveryPoll, logger)

	go speaker.Queue.Run(ctx, func(text string) bool {
		fmt.Printf("speaking: %s\n", text)
		return true
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", speaker.Endpoint)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("speech endpoint listening", "port", port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("speech endpoint: %w", err)
	}
	return nil
}

// Transcripts lists archived session transcripts with their row counts.
func Transcripts(ctx context.Context, settings config.Settings) error {
	if settings.Archive.Path == "" {
		return fmt.Errorf("no transcript archive configured (set ARCHIVE_DB_PATH)")
	}
	archive, err := storage.OpenSqlite(settings.Archive.Path)
	if err != nil {
		return fmt.Errorf("opening transcript archive: %w", err)
	}
	defer archive.Close()

	ids, err := archive.ArchivedSessionIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No archived transcripts.")
		return nil
	}

	for _, id := range ids {
		steps, narrations, exchanges, err := archive.TranscriptCounts(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("%s  steps=%d narrations=%d exchanges=%d\n", id, steps, narrations, exchanges)
	}
	return nil
}
