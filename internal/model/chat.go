package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

const (
	PartTypeText = "text"
	PartTypeFile = "file"
)

type ContentPart struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	MediaType string          `json:"mediaType,omitempty"`
}

// MessageContent is either a plain string or an ordered list of typed parts.
// Present is false when the field was absent from the decoded message.
type MessageContent struct {
	Text       string
	Parts      []ContentPart
	Structured bool
	Present    bool
}

func TextContent(text string) MessageContent {
	return MessageContent{Text: text, Present: true}
}

func PartsContent(parts ...ContentPart) MessageContent {
	return MessageContent{Parts: parts, Structured: true, Present: true}
}

func (m *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("content is empty")
	}
	switch trimmed[0] {
	case '"':
		*m = MessageContent{Present: true}
		return json.Unmarshal(trimmed, &m.Text)
	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return err
		}
		*m = MessageContent{Parts: parts, Structured: true, Present: true}
		return nil
	default:
		return fmt.Errorf("content must be a string or an array of parts")
	}
}

func (m MessageContent) MarshalJSON() ([]byte, error) {
	if m.Structured {
		parts := m.Parts
		if parts == nil {
			parts = []ContentPart{}
		}
		return json.Marshal(parts)
	}
	return json.Marshal(m.Text)
}

// FirstText returns the plain string, or the text of the first text part.
func (m MessageContent) FirstText() string {
	if !m.Structured {
		return m.Text
	}
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			return p.Text
		}
	}
	return ""
}

func (m MessageContent) Validate() error {
	if !m.Present {
		return fmt.Errorf("content is required")
	}
	if !m.Structured {
		return nil
	}
	for i, p := range m.Parts {
		switch p.Type {
		case PartTypeText:
		case PartTypeFile:
			if p.MediaType == "" {
				return fmt.Errorf("part %d: mediaType is required for file parts", i)
			}
		default:
			return fmt.Errorf("part %d: unsupported type %q", i, p.Type)
		}
	}
	return nil
}

type ConversationMessage struct {
	Role    ChatRole       `json:"role" binding:"required,oneof=user assistant system"`
	Content MessageContent `json:"content"`
}

// ChatTurn is one audited message of a tutoring conversation.
type ChatTurn struct {
	AnonymousUserID string
	CourseCode      string
	ExamID          string
	Role            ChatRole
	Content         string
	ModelID         string
}
