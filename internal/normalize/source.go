package normalize

import (
	"encoding/json"

	"convsplit/internal/errs"
	"convsplit/internal/model"
)

// DetectConversationSource inspects one raw JSON value — either a single
// conversation object, or (for Anthropic) an array whose first element is a
// conversation object — and reports which vendor shape it matches.
func DetectConversationSource(raw json.RawMessage) (model.Source, error) {
	trimmed := raw
	var arr []json.RawMessage
	if err := json.Unmarshal(trimmed, &arr); err == nil {
		if len(arr) == 0 {
			return "", errs.Parse("", "cannot detect source from empty array", nil)
		}
		return detectObjectSource(arr[0])
	}
	return detectObjectSource(raw)
}

func detectObjectSource(raw json.RawMessage) (model.Source, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", errs.Parse("", "vendor shape mismatch: not a JSON object", err)
	}
	if _, ok := probe["chat_messages"]; ok {
		return model.SourceAnthropic, nil
	}
	if _, ok := probe["mapping"]; ok {
		return model.SourceChatGPT, nil
	}
	if _, ok := probe["type"]; ok {
		if _, hasMsg := probe["message"]; hasMsg {
			return model.SourceClaudeCode, nil
		}
	}
	return "", errs.Parse("", "vendor shape mismatch: unrecognized conversation object", nil)
}

// Normalize dispatches a single raw conversation value to the parser for
// the given source. Anthropic and ChatGPT conversations are self-contained
// single values; Claude-Code sessions are assembled from many LogEntry
// values by NormalizeClaudeCodeSession instead.
func Normalize(raw json.RawMessage, source model.Source) (*model.Conversation, error) {
	switch source {
	case model.SourceAnthropic:
		return normalizeAnthropic(raw)
	case model.SourceChatGPT:
		return normalizeChatGPT(raw)
	default:
		return nil, errs.Validation(string(source), "unsupported source for single-value normalization", nil)
	}
}
