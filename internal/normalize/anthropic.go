package normalize

import (
	"encoding/json"
	"time"

	"convsplit/internal/errs"
	"convsplit/internal/model"
)

type anthropicConversation struct {
	UUID         string              `json:"uuid"`
	Name         string              `json:"name"`
	Summary      string              `json:"summary"`
	Model        string              `json:"model"`
	CreatedAt    string              `json:"created_at"`
	UpdatedAt    string              `json:"updated_at"`
	ChatMessages []anthropicMessage  `json:"chat_messages"`
}

type anthropicMessage struct {
	UUID      string          `json:"uuid"`
	Sender    string          `json:"sender"`
	Text      string          `json:"text"`
	CreatedAt string          `json:"created_at"`
	Content   json.RawMessage `json:"content"`
}

type anthropicContentBlock struct {
	Type   string          `json:"type"`
	Text   string          `json:"text"`
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input"`
	Content json.RawMessage `json:"content"`
}

type anthropicArtifactInput struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	Language string `json:"language"`
	Content string `json:"content"`
}

func normalizeAnthropic(raw json.RawMessage) (*model.Conversation, error) {
	var src anthropicConversation
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, errs.Parse(src.UUID, "malformed anthropic conversation", err)
	}

	created, err := parseRFC3339(src.CreatedAt)
	if err != nil {
		return nil, errs.Parse(src.UUID, "invalid created_at timestamp", err)
	}

	conv := &model.Conversation{
		ConvID:    src.UUID,
		Source:    model.SourceAnthropic,
		Title:     src.Name,
		Summary:   src.Summary,
		Model:     src.Model,
		CreatedAt: created,
		Roles:     make(map[model.Role]bool),
		Raw:       raw,
	}
	if src.UpdatedAt != "" {
		if t, err := parseRFC3339(src.UpdatedAt); err == nil {
			conv.UpdatedAt = &t
		}
	}

	var allMarkers []string
	for i, m := range src.ChatMessages {
		msg, err := convertAnthropicMessage(i, m)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue
		}
		conv.Roles[msg.Role] = true
		conv.Messages = append(conv.Messages, *msg)
		allMarkers = append(allMarkers, msg.Markers...)
	}
	conv.Markers = MergeMarkers(allMarkers)

	return conv, nil
}

func convertAnthropicMessage(idx int, m anthropicMessage) (*model.Message, error) {
	role := anthropicRole(m.Sender)

	msg := &model.Message{
		MessageID: m.UUID,
		Index:     idx,
		Role:      role,
	}
	if m.CreatedAt != "" {
		if t, err := parseRFC3339(m.CreatedAt); err == nil {
			msg.Timestamp = &t
		}
	}

	var text string
	if m.Text != "" {
		text = m.Text
	}

	var blocks []anthropicContentBlock
	if len(m.Content) > 0 {
		if err := json.Unmarshal(m.Content, &blocks); err != nil {
			return nil, errs.Parse(m.UUID, "malformed anthropic content blocks", err)
		}
	}

	artIdx := 0
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				if text != "" {
					text += "\n"
				}
				text += b.Text
			}
		case "tool_use":
			if b.Name == "artifacts" {
				var art anthropicArtifactInput
				if err := json.Unmarshal(b.Input, &art); err == nil && art.Content != "" {
					msg.Artifacts = append(msg.Artifacts, model.Artifact{
						Kind:     art.Title,
						Language: art.Language,
						MIME:     art.Type,
						Body:     art.Content,
					})
					artIdx++
				}
			} else {
				var input map[string]any
				json.Unmarshal(b.Input, &input)
				msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{Name: b.Name, Input: input})
			}
		case "tool_result":
			if len(b.Content) > 0 {
				var nested []anthropicContentBlock
				if err := json.Unmarshal(b.Content, &nested); err == nil {
					for _, nb := range nested {
						if nb.Type == "text" && nb.Text != "" {
							msg.Artifacts = append(msg.Artifacts, model.Artifact{Body: nb.Text})
						}
					}
				}
			}
		}
	}

	if text != "" {
		msg.Channels = append(msg.Channels, model.Channel{Kind: model.ChannelMessage, Text: text})
	}
	msg.Markers = ExtractMarkers(msg.CombinedText())

	if !msg.HasContent() {
		return nil, nil
	}
	return msg, nil
}

func anthropicRole(sender string) model.Role {
	switch sender {
	case "human":
		return model.RoleHuman
	case "assistant":
		return model.RoleAssistant
	case "system":
		return model.RoleSystem
	case "tool":
		return model.RoleTool
	default:
		return model.RoleOther
	}
}

func parseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
	}
	return t.UTC(), err
}
