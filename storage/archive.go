// Package storage provides the SQLite transcript archive.
//
// The archive is write-only from the orchestrator's point of view: ended
// sessions are persisted for later review, but live session state is never
// reconstructed from disk. A process restart always starts empty.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Karthik-Ragunath/lock-in/model"
)

// Archive persists completed session transcripts in a SQLite database.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type Archive struct {
	db *sql.DB
}

// OpenSqlite opens or creates the archive database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*Archive, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	archive := &Archive{db: db}
	if err := archive.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return archive, nil
}

// NewSqliteInMemory creates an in-memory archive (useful for testing).
func NewSqliteInMemory() (*Archive, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	archive := &Archive{db: db}
	if err := archive.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return archive, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			total_steps INTEGER NOT NULL,
			total_narrations INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS steps (
			session_id TEXT NOT NULL,
			step_number INTEGER NOT NULL,
			description TEXT NOT NULL,
			thinking_type TEXT NOT NULL,
			estimated_duration REAL NOT NULL,
			files_involved TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			PRIMARY KEY (session_id, step_number),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS narrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			step_number INTEGER NOT NULL,
			narration_text TEXT NOT NULL,
			thinking_type TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_narrations_session
		ON narrations(session_id, step_number);

		CREATE TABLE IF NOT EXISTS conversation (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			asked_at_step INTEGER,
			timestamp TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_conversation_session
		ON conversation(session_id);
	`

	_, err := a.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// ArchiveSession writes a full session transcript in one transaction.
// Re-archiving the same session ID replaces the previous transcript.
func (a *Archive) ArchiveSession(ctx context.Context, session *model.Session) error {
	if session == nil {
		return fmt.Errorf("cannot archive nil session")
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op after Commit.
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM sessions WHERE session_id = ?", session.SessionID)
	if err != nil {
		return fmt.Errorf("failed to clear previous transcript: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, started_at, ended_at, total_steps, total_narrations)
		VALUES (?, ?, ?, ?, ?)`,
		session.SessionID,
		session.StartedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		len(session.Steps),
		len(session.Narrations),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session row: %w", err)
	}

	stepStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO steps (session_id, step_number, description, thinking_type, estimated_duration, files_involved, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare step insert: %w", err)
	}
	defer stepStmt.Close()

	for _, step := range session.Steps {
		_, err = stepStmt.ExecContext(ctx,
			session.SessionID,
			step.StepNumber,
			step.Description,
			string(step.ThinkingType),
			step.EstimatedDuration,
			joinFiles(step.FilesInvolved),
			step.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %d: %w", step.StepNumber, err)
		}
	}

	narrStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO narrations (session_id, step_number, narration_text, thinking_type, timestamp)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare narration insert: %w", err)
	}
	defer narrStmt.Close()

	for _, entry := range session.Narrations {
		_, err = narrStmt.ExecContext(ctx,
			session.SessionID,
			entry.StepNumber,
			entry.Text,
			string(entry.ThinkingType),
			entry.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert narration: %w", err)
		}
	}

	convStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversation (session_id, question, answer, asked_at_step, timestamp)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare conversation insert: %w", err)
	}
	defer convStmt.Close()

	for _, entry := range session.Conversation {
		var atStep interface{}
		if entry.AskedAtStep != nil {
			atStep = *entry.AskedAtStep
		}
		_, err = convStmt.ExecContext(ctx,
			session.SessionID,
			entry.Question,
			entry.Answer,
			atStep,
			entry.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert conversation entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transcript: %w", err)
	}

	return nil
}

// ArchivedSessionIDs lists archived sessions, most recently ended first.
func (a *Archive) ArchivedSessionIDs(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT session_id FROM sessions ORDER BY ended_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return ids, nil
}

// TranscriptCounts reports the stored row counts for a session. Used by the
// transcripts CLI command and in tests; live state never reads from here.
func (a *Archive) TranscriptCounts(ctx context.Context, sessionID string) (steps, narrations, exchanges int, err error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM steps WHERE session_id = ?),
			(SELECT COUNT(*) FROM narrations WHERE session_id = ?),
			(SELECT COUNT(*) FROM conversation WHERE session_id = ?)`,
		sessionID, sessionID, sessionID)
	if err := row.Scan(&steps, &narrations, &exchanges); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count transcript rows: %w", err)
	}
	return steps, narrations, exchanges, nil
}

// joinFiles packs a file list into a single newline-separated column.
// File paths cannot contain newlines.
func joinFiles(files []string) string {
	return strings.Join(files, "\n")
}
