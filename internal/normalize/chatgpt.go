package normalize

import (
	"encoding/json"
	"sort"
	"time"

	"convsplit/internal/errs"
	"convsplit/internal/model"
)

type chatgptConversation struct {
	Title      string                     `json:"title"`
	CreateTime float64                    `json:"create_time"`
	UpdateTime float64                    `json:"update_time"`
	Mapping    map[string]chatgptNode     `json:"mapping"`
	ID         string                     `json:"conversation_id"`
}

type chatgptNode struct {
	ID      string          `json:"id"`
	Message *chatgptMessage `json:"message"`
	Parent  *string         `json:"parent"`
}

type chatgptMessage struct {
	ID         string           `json:"id"`
	Author     chatgptAuthor    `json:"author"`
	Content    chatgptContent   `json:"content"`
	CreateTime *float64         `json:"create_time"`
}

type chatgptAuthor struct {
	Role string `json:"role"`
}

type chatgptContent struct {
	ContentType string          `json:"content_type"`
	Parts       json.RawMessage `json:"parts"`
}

// chatgptPart is a single element of Content.Parts, which may be a bare
// string or an object carrying its own "text" field.
type chatgptPart struct {
	isString bool
	text     string
}

func (p *chatgptPart) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		p.isString = true
		p.text = s
		return nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	p.text = obj.Text
	return nil
}

func normalizeChatGPT(raw json.RawMessage) (*model.Conversation, error) {
	var src chatgptConversation
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, errs.Parse(src.ID, "malformed chatgpt conversation", err)
	}

	convID := src.ID
	created := unixSeconds(src.CreateTime)

	conv := &model.Conversation{
		ConvID:    convID,
		Source:    model.SourceChatGPT,
		Title:     src.Title,
		CreatedAt: created,
		Roles:     make(map[model.Role]bool),
		Raw:       raw,
	}
	if src.UpdateTime > 0 {
		t := unixSeconds(src.UpdateTime)
		conv.UpdatedAt = &t
	}

	// Order nodes deterministically by id first so "source order" is
	// stable before the timestamp sort below.
	ids := make([]string, 0, len(src.Mapping))
	for id := range src.Mapping {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	type timedMessage struct {
		ts  time.Time
		msg model.Message
	}
	var timed []timedMessage

	for _, id := range ids {
		node := src.Mapping[id]
		if node.Message == nil {
			continue
		}
		m := node.Message
		role := chatgptRole(m.Author.Role)
		if role == "" {
			continue
		}

		text, err := extractChatGPTText(m.Content)
		if err != nil {
			return nil, errs.Parse(convID, "malformed chatgpt message content", err)
		}

		ts := created
		if m.CreateTime != nil {
			ts = unixSeconds(*m.CreateTime)
		}

		msg := model.Message{
			MessageID: m.ID,
			Role:      role,
			Timestamp: &ts,
		}
		if text != "" {
			msg.Channels = append(msg.Channels, model.Channel{Kind: model.ChannelMessage, Text: text})
		}
		msg.Markers = ExtractMarkers(msg.CombinedText())
		if !msg.HasContent() {
			continue
		}
		timed = append(timed, timedMessage{ts: ts, msg: msg})
	}

	sort.SliceStable(timed, func(i, j int) bool { return timed[i].ts.Before(timed[j].ts) })

	var allMarkers []string
	for i, tm := range timed {
		tm.msg.Index = i
		conv.Roles[tm.msg.Role] = true
		conv.Messages = append(conv.Messages, tm.msg)
		allMarkers = append(allMarkers, tm.msg.Markers...)
	}
	conv.Markers = MergeMarkers(allMarkers)

	return conv, nil
}

func extractChatGPTText(c chatgptContent) (string, error) {
	switch c.ContentType {
	case "text", "code", "multimodal_text":
		var parts []chatgptPart
		if len(c.Parts) == 0 {
			return "", nil
		}
		if err := json.Unmarshal(c.Parts, &parts); err != nil {
			return "", err
		}
		var out string
		for i, p := range parts {
			if p.text == "" {
				continue
			}
			if out != "" && i > 0 {
				out += "\n"
			}
			out += p.text
		}
		return out, nil
	default:
		return "", nil
	}
}

func chatgptRole(role string) model.Role {
	switch role {
	case "user":
		return model.RoleHuman
	case "assistant":
		return model.RoleAssistant
	case "system":
		return model.RoleSystem
	case "tool":
		return model.RoleTool
	case "":
		return ""
	default:
		return model.RoleOther
	}
}

func unixSeconds(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
