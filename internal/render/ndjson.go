package render

import (
	"bytes"
	"encoding/json"

	"convsplit/internal/model"
)

// MetaRecord is the first line emitted for a conversation.
type MetaRecord struct {
	Type         string   `json:"type"`
	ConvID       string   `json:"conv_id"`
	Source       string   `json:"source"`
	CreatedAt    string   `json:"created_at"`
	Title        string   `json:"title,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Model        string   `json:"model,omitempty"`
	Project      string   `json:"project,omitempty"`
	Participants []string `json:"participants,omitempty"`
	Markers      []string `json:"markers,omitempty"`
}

// ChannelRecord mirrors model.Channel for NDJSON output.
type ChannelRecord struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// MessageRecord is one message line following a MetaRecord.
type MessageRecord struct {
	Type       string          `json:"type"`
	Index      int             `json:"idx"`
	MessageID  string          `json:"message_id,omitempty"`
	Role       string          `json:"role"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Channels   []ChannelRecord `json:"channels"`
	Attachments []string       `json:"attachments,omitempty"`
	ToolCalls  []string        `json:"tool_calls,omitempty"`
	Artifacts  []string        `json:"artifacts,omitempty"`
	Markers    []string        `json:"markers,omitempty"`
}

// NDJSON renders a Conversation as one meta record followed by one message
// record per message.
func NDJSON(conv *model.Conversation) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	participants := make([]string, 0, len(conv.Participants()))
	for _, r := range conv.Participants() {
		participants = append(participants, string(r))
	}

	var project string
	if conv.SessionMeta != nil {
		project = conv.SessionMeta.Project
	}

	meta := MetaRecord{
		Type:         "meta",
		ConvID:       conv.ConvID,
		Source:       string(conv.Source),
		CreatedAt:    conv.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Title:        conv.Title,
		Summary:      conv.Summary,
		Model:        conv.Model,
		Project:      project,
		Participants: participants,
		Markers:      conv.Markers,
	}
	if err := enc.Encode(meta); err != nil {
		return nil, err
	}

	for _, m := range conv.Messages {
		rec := MessageRecord{
			Type:      "message",
			Index:     m.Index,
			MessageID: m.MessageID,
			Role:      string(m.Role),
			Markers:   m.Markers,
		}
		if m.Timestamp != nil {
			rec.Timestamp = m.Timestamp.Format("2006-01-02T15:04:05Z07:00")
		}
		for _, ch := range m.Channels {
			rec.Channels = append(rec.Channels, ChannelRecord{Channel: string(ch.Kind), Text: ch.Text})
		}
		for _, a := range m.Attachments {
			rec.Attachments = append(rec.Attachments, a.Name)
		}
		for _, tc := range m.ToolCalls {
			rec.ToolCalls = append(rec.ToolCalls, tc.Name)
		}
		for _, a := range m.Artifacts {
			rec.Artifacts = append(rec.Artifacts, a.Filename)
		}
		if err := enc.Encode(rec); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}
