package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

// DefaultSessionName is the baseline scratch session created on first
// open. It cannot be deleted or renamed.
const DefaultSessionName = "scratch"

var (
	// ErrDefaultSessionImmutable is returned for delete/rename attempts
	// on the default session.
	ErrDefaultSessionImmutable = errors.New("the default session cannot be deleted or renamed")

	// ErrSessionNotFound indicates the session doesn't exist
	ErrSessionNotFound = errors.New("session not found")
)

const sessionColumns = `id, name, is_default, context_threshold, input_tokens, output_tokens, created_at, updated_at`

// GetSessionByID retrieves a session by its ID
func GetSessionByID(ctx context.Context, db sqlscan.Querier, sessionID string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	var s Session
	err := sqlscan.Get(ctx, db, &s, query, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &s, nil
}

// GetSessionByName retrieves a session by its unique name
func GetSessionByName(ctx context.Context, db sqlscan.Querier, name string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE name = ?`
	var s Session
	err := sqlscan.Get(ctx, db, &s, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &s, nil
}

// ListSessions returns all sessions, most recently updated first
func ListSessions(ctx context.Context, db sqlscan.Querier) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY updated_at DESC`
	var sessions []Session
	if err := sqlscan.Select(ctx, db, &sessions, query); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateSession creates a new session in the database
func CreateSession(ctx context.Context, db Execer, session *Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now()
	}

	query := `INSERT INTO sessions (id, name, is_default, context_threshold, input_tokens, output_tokens, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, session.ID, session.Name, session.IsDefault, session.ContextThreshold, session.InputTokens, session.OutputTokens, session.CreatedAt, session.UpdatedAt)
	return err
}

// GetOrCreateSession returns the session with the given name, creating
// it on first use.
func GetOrCreateSession(ctx context.Context, db ExecQuerier, name string) (*Session, error) {
	session, err := GetSessionByName(ctx, db, name)
	if err != nil {
		return nil, err
	}
	if session != nil {
		return session, nil
	}

	session = &Session{Name: name, IsDefault: name == DefaultSessionName}
	if err := CreateSession(ctx, db, session); err != nil {
		return nil, err
	}
	return session, nil
}

// EnsureDefaultSession creates the default scratch session if missing.
func EnsureDefaultSession(ctx context.Context, db ExecQuerier) (*Session, error) {
	return GetOrCreateSession(ctx, db, DefaultSessionName)
}

// DeleteSession removes a session and, via cascade, its messages. The
// default session is protected.
func DeleteSession(ctx context.Context, db ExecQuerier, sessionID string) error {
	session, err := GetSessionByID(ctx, db, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.IsDefault {
		return ErrDefaultSessionImmutable
	}

	_, err = db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}

// RenameSession changes a session's name. The default session is
// protected.
func RenameSession(ctx context.Context, db ExecQuerier, sessionID, newName string) error {
	session, err := GetSessionByID(ctx, db, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.IsDefault {
		return ErrDefaultSessionImmutable
	}

	_, err = db.ExecContext(ctx, `UPDATE sessions SET name = ?, updated_at = ? WHERE id = ?`, newName, time.Now(), sessionID)
	return err
}

// SetThreshold sets the session's context threshold (0-5).
func SetThreshold(ctx context.Context, db Execer, sessionID string, value int) error {
	if value < MinGrade || value > MaxGrade {
		return fmt.Errorf("threshold %d out of range [%d,%d]", value, MinGrade, MaxGrade)
	}
	_, err := db.ExecContext(ctx, `UPDATE sessions SET context_threshold = ?, updated_at = ? WHERE id = ?`, value, time.Now(), sessionID)
	return err
}

// CycleThreshold advances the session's threshold 0→1→…→5→0 and
// returns the new value.
func CycleThreshold(ctx context.Context, db ExecQuerier, sessionID string) (int, error) {
	session, err := GetSessionByID(ctx, db, sessionID)
	if err != nil {
		return 0, err
	}
	if session == nil {
		return 0, ErrSessionNotFound
	}

	next := session.ContextThreshold + 1
	if next > MaxGrade {
		next = MinGrade
	}
	if err := SetThreshold(ctx, db, sessionID, next); err != nil {
		return 0, err
	}
	return next, nil
}

// AddSessionUsage accumulates token usage onto the session counters.
func AddSessionUsage(ctx context.Context, db Execer, sessionID string, inputTokens, outputTokens int64) error {
	query := `UPDATE sessions SET input_tokens = input_tokens + ?, output_tokens = output_tokens + ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, inputTokens, outputTokens, time.Now(), sessionID)
	return err
}
