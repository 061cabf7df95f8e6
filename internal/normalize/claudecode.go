package normalize

import (
	"encoding/json"
	"strings"

	"convsplit/internal/errs"
	"convsplit/internal/model"
)

// LogEntry is one line of a Claude-Code .jsonl session log. Timestamp is
// optional: the original implementation documents it as optional but some
// of its own tests assume it is present. This port treats it as optional
// for parsing and fails soft (a message without a timestamp is still
// emitted) rather than rejecting the record.
type LogEntry struct {
	Type        string          `json:"type"`
	Timestamp   *string         `json:"timestamp"`
	Message     *messageData    `json:"message"`
	Content     json.RawMessage `json:"content"`
	SessionID   *string         `json:"sessionId"`
	Cwd         *string         `json:"cwd"`
	GitBranch   *string         `json:"gitBranch"`
	Version     *string         `json:"version"`
}

type messageData struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Usage   *usage          `json:"usage"`
}

type usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// contentBlock is the tagged union Text | Thinking | ToolUse | ToolResult |
// Image. ToolResult.Content is itself polymorphic (string or nested block
// array); extraction recurses through recursiveText.
type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Thinking string         `json:"thinking"`
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input"`
	Content json.RawMessage `json:"content"`
	IsError bool            `json:"is_error"`
}

// unmarshalContentBlocks parses a polymorphic message/log-entry content
// field: either a bare string (wrapped as a single text block) or an array
// of typed blocks.
func unmarshalContentBlocks(raw json.RawMessage) ([]contentBlock, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []contentBlock{{Type: "text", Text: s}}, nil
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// extractTextFromBlocks recursively extracts display text from content
// blocks: Text contributes its text, Thinking is left out, ToolUse is
// skipped here (handled separately as a tool call), ToolResult recurses into
// its own content, and Image contributes the placeholder "[Image]".
func extractTextFromBlocks(blocks []contentBlock) string {
	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case "thinking":
			// Thinking blocks are not included in extracted display text.
		case "tool_result":
			nested, err := unmarshalContentBlocks(b.Content)
			if err == nil && len(nested) > 0 {
				if t := extractTextFromBlocks(nested); t != "" {
					parts = append(parts, t)
				}
			} else {
				var s string
				if json.Unmarshal(b.Content, &s) == nil && s != "" {
					parts = append(parts, s)
				}
			}
		case "image":
			parts = append(parts, "[Image]")
		}
	}
	return strings.Join(parts, "\n")
}

// extractLogEntryContent mirrors extractTextFromBlocks but falls back to
// "[Attachment]" when the block list yields nothing.
func extractLogEntryContent(raw json.RawMessage) string {
	blocks, err := unmarshalContentBlocks(raw)
	if err != nil || len(blocks) == 0 {
		return ""
	}
	text := extractTextFromBlocks(blocks)
	if text == "" {
		return "[Attachment]"
	}
	return text
}

// NormalizeClaudeCodeSession builds one Conversation from the ordered
// LogEntry records of a single session log file. sessionPath is used only
// as the conv_id when no session_id is present in the entries.
func NormalizeClaudeCodeSession(entries []LogEntry, sessionPath string, raw []byte) (*model.Conversation, error) {
	if len(entries) == 0 {
		return nil, errs.Parse(sessionPath, "empty session log", nil)
	}

	convID := sessionPath
	if entries[0].SessionID != nil && *entries[0].SessionID != "" {
		convID = *entries[0].SessionID
	}

	var firstTS, lastTS string
	var allMarkers []string
	stats := &model.SessionStats{}
	var userTurns, assistantTurns int

	conv := &model.Conversation{
		ConvID: convID,
		Source: model.SourceClaudeCode,
		Title:  convID,
		Roles:  make(map[model.Role]bool),
		Raw:    raw,
	}

	for idx, entry := range entries {
		if entry.Timestamp != nil && *entry.Timestamp != "" {
			if firstTS == "" {
				firstTS = *entry.Timestamp
			}
			lastTS = *entry.Timestamp
		}

		switch entry.Type {
		case "user":
			userTurns++
		case "assistant":
			assistantTurns++
		}

		if entry.Type == "user" {
			if entry.Message != nil {
				blocks, _ := unmarshalContentBlocks(entry.Message.Content)
				for _, b := range blocks {
					if b.Type == "tool_result" {
						var resultText string
						nested, err := unmarshalContentBlocks(b.Content)
						if err == nil {
							resultText = extractTextFromBlocks(nested)
						} else {
							json.Unmarshal(b.Content, &resultText)
						}
						lower := strings.ToLower(resultText)
						if b.IsError || strings.Contains(lower, "error") || strings.Contains(lower, "failed") || strings.Contains(lower, "not found") {
							stats.Failures++
						}
					}
				}
			}
		}

		if entry.Type != "user" && entry.Type != "assistant" {
			continue
		}
		if entry.Message == nil {
			continue
		}

		role := claudeCodeRole(entry.Message.Role)
		blocks, err := unmarshalContentBlocks(entry.Message.Content)
		if err != nil {
			// A record whose content cannot be parsed is skipped without
			// a message; the rest of the session is still assembled.
			continue
		}

		var textParts []string
		var toolCalls []model.ToolCall
		for _, b := range blocks {
			switch b.Type {
			case "text":
				if b.Text != "" {
					textParts = append(textParts, b.Text)
				}
			case "tool_use":
				var input map[string]any
				json.Unmarshal(b.Input, &input)
				toolCalls = append(toolCalls, model.ToolCall{Name: b.Name, Input: input})
				if entry.Type == "assistant" {
					stats.ToolCalls++
				}
			case "thinking":
				// skipped from extracted content, as in the original parser
			case "image":
				textParts = append(textParts, "[Image]")
			}
		}

		text := strings.Join(textParts, "\n")
		if text == "" && entry.Type == "user" {
			text = extractLogEntryContent(entry.Content)
		}
		if text == "" && len(toolCalls) == 0 {
			continue
		}

		msg := model.Message{
			Index:     idx,
			Role:      role,
			ToolCalls: toolCalls,
		}
		if entry.Timestamp != nil {
			if t, err := parseRFC3339(*entry.Timestamp); err == nil {
				msg.Timestamp = &t
			}
		}
		if text != "" {
			msg.Channels = append(msg.Channels, model.Channel{Kind: model.ChannelMessage, Text: text})
		}
		msg.Markers = ExtractMarkers(msg.CombinedText())
		if !msg.HasContent() {
			continue
		}

		if entry.Message.Usage != nil && entry.Type == "assistant" {
			addUsage(stats, entry.Message.Usage)
		}

		conv.Roles[role] = true
		conv.Messages = append(conv.Messages, msg)
		allMarkers = append(allMarkers, msg.Markers...)
	}

	conv.Markers = MergeMarkers(allMarkers)

	if firstTS != "" {
		if t, err := parseRFC3339(firstTS); err == nil {
			conv.CreatedAt = t
		}
	}
	if conv.CreatedAt.IsZero() && len(conv.Messages) > 0 && conv.Messages[0].Timestamp != nil {
		conv.CreatedAt = *conv.Messages[0].Timestamp
	}

	stats.TurnCount = userTurns + assistantTurns
	conv.Stats = stats

	first := entries[0]
	conv.SessionMeta = &model.SessionMeta{
		SessionID: convID,
		Started:   firstTS,
		Ended:     lastTS,
	}
	if first.Cwd != nil {
		conv.SessionMeta.Project = *first.Cwd
	}
	if first.GitBranch != nil {
		conv.SessionMeta.Branch = *first.GitBranch
	}
	if first.Version != nil {
		conv.SessionMeta.Version = *first.Version
	}

	return conv, nil
}

func addUsage(stats *model.SessionStats, u *usage) {
	add := func(p **int, v int) {
		if v == 0 {
			return
		}
		if *p == nil {
			n := 0
			*p = &n
		}
		**p += v
	}
	add(&stats.TotalInputTokens, u.InputTokens)
	add(&stats.TotalOutputTokens, u.OutputTokens)
	add(&stats.CacheReadTokens, u.CacheReadInputTokens)
	add(&stats.CacheCreationTokens, u.CacheCreationInputTokens)
}

func claudeCodeRole(role string) model.Role {
	switch role {
	case "user":
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
