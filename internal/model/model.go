// Package model defines the uniform conversation data types produced by the
// normalizer and consumed by every downstream component. Values are treated
// as immutable after the normalizer returns them.
package model

import "time"

// Source identifies the vendor export format a Conversation was parsed from.
type Source string

const (
	SourceAnthropic  Source = "anthropic"
	SourceChatGPT    Source = "chatgpt"
	SourceClaudeCode Source = "claude-code"
)

func (s Source) String() string { return string(s) }

// Role identifies the speaker of a Message.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	RoleOther     Role = "other"
)

// ChannelKind names a text stream within a Message.
type ChannelKind string

const (
	ChannelMessage   ChannelKind = "message"
	ChannelReply     ChannelKind = "reply"
	ChannelReasoning ChannelKind = "reasoning"
	ChannelSystem    ChannelKind = "system"
	ChannelTool      ChannelKind = "tool"
)

// Channel is one named text stream within a Message.
type Channel struct {
	Kind ChannelKind
	Text string
}

// Attachment is a named, typed reference to binary content carried by a
// Message.
type Attachment struct {
	Name string
	URI  string
	MIME string
	Size int64
}

// ToolCall is an invocation of a tool by the model, with its structured
// input and, if available, its result.
type ToolCall struct {
	Name   string
	Input  map[string]any
	Result string
}

// Artifact is a code or document block extracted from a tool-use within a
// Message, destined to become a standalone file.
type Artifact struct {
	Kind     string // title, e.g. "react component"
	Language string
	MIME     string
	Body     string
	// Filename is populated by the splitter once message/artifact indices
	// are known: {slug(kind)}-{msgIdx:03}-{artIdx:03}.{ext}
	Filename string
}

// Message is one turn within a Conversation.
type Message struct {
	MessageID  string // optional; empty if the source had none
	Index      int    // position within the conversation
	Role       Role
	Timestamp  *time.Time // optional, UTC
	Channels   []Channel
	Attachments []Attachment
	ToolCalls  []ToolCall
	Artifacts  []Artifact
	Markers    []string

	// Project and Meeting mirror the Vector Store Gateway's messages-table
	// columns. The normalizers leave both empty; the Embedding Coordinator
	// fills the table's project column from the conversation's meta record.
	Project string
	Meeting string
}

// HasContent reports whether the message satisfies the non-empty invariant:
// at least one non-empty channel, or a tool call, or an artifact.
func (m *Message) HasContent() bool {
	for _, c := range m.Channels {
		if c.Text != "" {
			return true
		}
	}
	return len(m.ToolCalls) > 0 || len(m.Artifacts) > 0
}

// CombinedText joins every channel's text in order, used as the chunker's
// input and for marker re-scanning.
func (m *Message) CombinedText() string {
	var out string
	for i, c := range m.Channels {
		if i > 0 {
			out += "\n"
		}
		out += c.Text
	}
	return out
}

// SessionStats holds Claude-Code session-log turn/token statistics,
// populated only for SourceClaudeCode conversations.
type SessionStats struct {
	TurnCount           int
	ToolCalls           int
	Failures            int
	TotalInputTokens    *int
	TotalOutputTokens   *int
	CacheReadTokens     *int
	CacheCreationTokens *int
}

// SessionMeta holds Claude-Code session identity metadata, populated only
// for SourceClaudeCode conversations.
type SessionMeta struct {
	SessionID string
	Project   string
	Branch    string
	Version   string
	Started   string
	Ended     string
}

// Conversation is one LLM dialogue thread from a vendor export.
type Conversation struct {
	ConvID    string
	Source    Source
	Title     string
	Summary   string
	Model     string
	CreatedAt time.Time // required, UTC
	UpdatedAt *time.Time
	Roles     map[Role]bool
	Messages  []Message
	Markers   []string

	Stats       *SessionStats
	SessionMeta *SessionMeta

	// Raw is the original vendor JSON for this conversation, preserved for
	// the Splitter's .json output and for content-hash fingerprinting.
	Raw []byte
}

// Participants returns the distinct roles present across the conversation's
// messages, in a stable order.
func (c *Conversation) Participants() []Role {
	order := []Role{RoleHuman, RoleAssistant, RoleSystem, RoleTool, RoleOther}
	var out []Role
	for _, r := range order {
		if c.Roles[r] {
			out = append(out, r)
		}
	}
	return out
}
