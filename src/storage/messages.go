package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

const messageColumns = `id, session_id, role, content, turn_id, is_final_response, text_grade, input_tokens, output_tokens, model, created_at`

// GetMessagesBySession retrieves all messages for a session ordered by
// creation time.
func GetMessagesBySession(ctx context.Context, db sqlscan.Querier, sessionID string) ([]Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE session_id = ? ORDER BY created_at, id`
	var messages []Message
	if err := sqlscan.Select(ctx, db, &messages, query, sessionID); err != nil {
		return nil, err
	}
	return messages, nil
}

// CreateMessage creates a new message in the database. TextGrade is
// stored exactly as given; 0 is a meaningful value ("never replay"),
// so callers writing fresh conversation turns must set MaxGrade
// themselves.
func CreateMessage(ctx context.Context, db Execer, message *Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	if message.TextGrade < MinGrade || message.TextGrade > MaxGrade {
		return fmt.Errorf("grade %d out of range [%d,%d]", message.TextGrade, MinGrade, MaxGrade)
	}

	query := `INSERT INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		message.ID,
		message.SessionID,
		message.Role,
		message.Content,
		message.TurnID,
		message.IsFinalResponse,
		message.TextGrade,
		message.InputTokens,
		message.OutputTokens,
		message.Model,
		message.CreatedAt,
	)
	return err
}

// SetMessageGrade sets one message's grade (0-5).
func SetMessageGrade(ctx context.Context, db Execer, messageID string, grade int) error {
	if grade < MinGrade || grade > MaxGrade {
		return fmt.Errorf("grade %d out of range [%d,%d]", grade, MinGrade, MaxGrade)
	}
	_, err := db.ExecContext(ctx, `UPDATE messages SET text_grade = ? WHERE id = ?`, grade, messageID)
	return err
}

// SetSessionGrades sets every message in a session to a uniform grade.
func SetSessionGrades(ctx context.Context, db Execer, sessionID string, grade int) error {
	if grade < MinGrade || grade > MaxGrade {
		return fmt.Errorf("grade %d out of range [%d,%d]", grade, MinGrade, MaxGrade)
	}
	_, err := db.ExecContext(ctx, `UPDATE messages SET text_grade = ? WHERE session_id = ?`, grade, sessionID)
	return err
}

// SetTurnGrade sets both messages of a turn to the same grade, keeping
// the assistant grade equal to the user grade at write time.
func SetTurnGrade(ctx context.Context, db Execer, turnID string, grade int) error {
	if grade < MinGrade || grade > MaxGrade {
		return fmt.Errorf("grade %d out of range [%d,%d]", grade, MinGrade, MaxGrade)
	}
	_, err := db.ExecContext(ctx, `UPDATE messages SET text_grade = ? WHERE turn_id = ?`, grade, turnID)
	return err
}

// AssignTurnID backfills turn grouping onto a legacy message.
func AssignTurnID(ctx context.Context, db Execer, messageID, turnID string) error {
	_, err := db.ExecContext(ctx, `UPDATE messages SET turn_id = ?, is_final_response = 1 WHERE id = ?`, turnID, messageID)
	return err
}
