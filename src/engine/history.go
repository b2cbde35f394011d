package engine

import (
	"github.com/parley-chat/parley/src/anthropic"
	"github.com/parley-chat/parley/src/marker"
	"github.com/parley-chat/parley/src/storage"
)

// ImagePlaceholder replaces image payloads when history is replayed.
// Full-fidelity image bytes are sent exactly once, at turn time;
// replaying them would multiply token cost by tens of thousands per
// image on every later turn.
const ImagePlaceholder = "image previously shared and analyzed"

// FilterReplay selects the turns replayed to the model. Messages with
// isFinalResponse=false are skipped outright (tool-loop intermediates
// from legacy data). A turn is kept or dropped as a unit: a user
// message at or above the threshold brings its immediately following
// final assistant reply; a user message below it excludes both. Grade
// 0 is always excluded, whatever the threshold.
func FilterReplay(messages []storage.Message, threshold int) []storage.Message {
	finals := make([]storage.Message, 0, len(messages))
	for _, m := range messages {
		if m.IsFinalResponse {
			finals = append(finals, m)
		}
	}

	var kept []storage.Message
	for i := 0; i < len(finals); i++ {
		m := finals[i]
		if m.Role != storage.RoleUser {
			// An assistant message here had its user message excluded
			// (or legacy data lost the pairing); never replay it alone.
			continue
		}

		include := m.TextGrade >= threshold && m.TextGrade > storage.MinGrade

		hasReply := i+1 < len(finals) && finals[i+1].Role == storage.RoleAssistant
		if include {
			kept = append(kept, m)
			if hasReply {
				kept = append(kept, finals[i+1])
			}
		}
		if hasReply {
			i++ // the pair was handled as a unit either way
		}
	}
	return kept
}

// wireHistory serializes kept history messages into wire format.
func wireHistory(messages []storage.Message) []anthropic.Message {
	wire := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, wireMessage(m))
	}
	return wire
}

// wireMessage converts one persisted message. User messages carrying
// image markers become placeholder text blocks plus the remaining
// visible text; everything else is stripped of markers and sent as a
// plain string.
func wireMessage(m storage.Message) anthropic.Message {
	if m.Role == storage.RoleUser && marker.HasKind(marker.KindImage, m.Content) {
		images, remaining := marker.ExtractImages(m.Content)
		blocks := make([]anthropic.ContentBlock, 0, len(images)+1)
		for range images {
			blocks = append(blocks, anthropic.TextBlock(ImagePlaceholder))
		}
		if text := marker.StripAll(remaining); text != "" {
			blocks = append(blocks, anthropic.TextBlock(text))
		}
		return anthropic.Message{Role: m.Role, Content: anthropic.BlockContent(blocks...)}
	}

	return anthropic.Message{Role: m.Role, Content: anthropic.TextContent(marker.StripAll(m.Content))}
}
