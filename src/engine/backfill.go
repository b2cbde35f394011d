package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/src/storage"
)

// backfillTurnIDs assigns turn ids to rows written before turn grouping
// existed. Messages are walked in chronological order; a user message
// and the assistant message immediately after it share a fresh id, and
// anything left unpaired gets its own. The input slice is updated in
// place so callers can keep working with it.
func backfillTurnIDs(ctx context.Context, db storage.Execer, messages []storage.Message) error {
	for i := 0; i < len(messages); i++ {
		if messages[i].TurnID != "" {
			continue
		}

		turnID := uuid.New().String()
		if err := storage.AssignTurnID(ctx, db, messages[i].ID, turnID); err != nil {
			return fmt.Errorf("failed to backfill turn id: %w", err)
		}
		messages[i].TurnID = turnID
		messages[i].IsFinalResponse = true

		if messages[i].Role == storage.RoleUser && i+1 < len(messages) &&
			messages[i+1].Role == storage.RoleAssistant && messages[i+1].TurnID == "" {
			if err := storage.AssignTurnID(ctx, db, messages[i+1].ID, turnID); err != nil {
				return fmt.Errorf("failed to backfill turn id: %w", err)
			}
			messages[i+1].TurnID = turnID
			messages[i+1].IsFinalResponse = true
			i++
		}
	}
	return nil
}
