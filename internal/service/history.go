package service

import (
	"github.com/liutentor/tentor/internal/ai"
	"github.com/liutentor/tentor/internal/model"
)

// ToProviderHistory converts prior conversation messages into provider turns.
// Only text survives: non-text parts become empty text parts so every message
// keeps its part count.
func ToProviderHistory(msgs []model.ConversationMessage) []ai.Content {
	out := make([]ai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := ai.RoleUser
		if m.Role == model.RoleAssistant {
			role = ai.RoleModel
		}
		out = append(out, ai.Content{Role: role, Parts: toTextParts(m.Content)})
	}
	return out
}

func toTextParts(content model.MessageContent) []ai.Part {
	if !content.Structured {
		return []ai.Part{ai.TextPart(content.Text)}
	}
	parts := make([]ai.Part, 0, len(content.Parts))
	for _, p := range content.Parts {
		if p.Type == model.PartTypeText {
			parts = append(parts, ai.TextPart(p.Text))
			continue
		}
		parts = append(parts, ai.TextPart(""))
	}
	return parts
}
