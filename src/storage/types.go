package storage

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Grade bounds for message inclusion under a session threshold.
const (
	MinGrade = 0
	MaxGrade = 5
)

// Session is a named conversation container. The default session is the
// baseline scratch session and can be neither deleted nor renamed.
type Session struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	IsDefault        bool      `json:"is_default" db:"is_default"`
	ContextThreshold int       `json:"context_threshold" db:"context_threshold"`
	InputTokens      int64     `json:"input_tokens" db:"input_tokens"`
	OutputTokens     int64     `json:"output_tokens" db:"output_tokens"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Message is one persisted utterance. TurnID groups a user message with
// its one final assistant reply; rows from before turn grouping carry
// an empty TurnID until backfilled. IsFinalResponse is true for every
// user message and for the assistant message that is the turn's true
// reply; tool-loop intermediates are never persisted, so a false value
// only ever comes from legacy data.
type Message struct {
	ID              string    `json:"id" db:"id"`
	SessionID       string    `json:"session_id" db:"session_id"`
	Role            string    `json:"role" db:"role"`
	Content         string    `json:"content" db:"content"`
	TurnID          string    `json:"turn_id" db:"turn_id"`
	IsFinalResponse bool      `json:"is_final_response" db:"is_final_response"`
	TextGrade       int       `json:"text_grade" db:"text_grade"`
	InputTokens     int64     `json:"input_tokens" db:"input_tokens"`
	OutputTokens    int64     `json:"output_tokens" db:"output_tokens"`
	Model           string    `json:"model" db:"model"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
