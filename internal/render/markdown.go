package render

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"convsplit/internal/model"
)

type frontmatter struct {
	ID           string        `yaml:"id"`
	Source       string        `yaml:"source"`
	Model        string        `yaml:"model,omitempty"`
	Created      string        `yaml:"created"`
	Updated      string        `yaml:"updated,omitempty"`
	Participants []string      `yaml:"participants,omitempty"`
	Projects     []string      `yaml:"projects,omitempty"`
	Meetings     []string      `yaml:"meetings,omitempty"`
	Stats        *sessionStats `yaml:"stats,omitempty"`
}

// sessionStats mirrors model.SessionStats for YAML frontmatter, omitting
// the token-count fields entirely when the session log carried no Usage
// blocks to derive them from.
type sessionStats struct {
	Turns             int  `yaml:"turns"`
	ToolCalls         int  `yaml:"tool_calls"`
	Failures          int  `yaml:"failures"`
	InputTokens       *int `yaml:"input_tokens,omitempty"`
	OutputTokens      *int `yaml:"output_tokens,omitempty"`
	CacheReadTokens   *int `yaml:"cache_read_tokens,omitempty"`
	CacheCreateTokens *int `yaml:"cache_creation_tokens,omitempty"`
}

// Markdown renders a Conversation as YAML-frontmatter + "# Title" +
// per-message sections with fenced text blocks, attachments, tool-calls,
// and artifact manifests.
func Markdown(conv *model.Conversation) (string, error) {
	fm := frontmatter{
		ID:      conv.ConvID,
		Source:  string(conv.Source),
		Model:   conv.Model,
		Created: conv.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if conv.UpdatedAt != nil {
		fm.Updated = conv.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	for _, r := range conv.Participants() {
		fm.Participants = append(fm.Participants, string(r))
	}
	if conv.SessionMeta != nil {
		if conv.SessionMeta.Project != "" {
			fm.Projects = []string{conv.SessionMeta.Project}
		}
		if conv.SessionMeta.Branch != "" {
			fm.Meetings = []string{conv.SessionMeta.Branch}
		}
	}
	if conv.Stats != nil {
		fm.Stats = &sessionStats{
			Turns:             conv.Stats.TurnCount,
			ToolCalls:         conv.Stats.ToolCalls,
			Failures:          conv.Stats.Failures,
			InputTokens:       conv.Stats.TotalInputTokens,
			OutputTokens:      conv.Stats.TotalOutputTokens,
			CacheReadTokens:   conv.Stats.CacheReadTokens,
			CacheCreateTokens: conv.Stats.CacheCreationTokens,
		}
	}

	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fmBytes)
	b.WriteString("---\n\n")
	title := conv.Title
	if title == "" {
		title = conv.ConvID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	for i, m := range conv.Messages {
		ts := ""
		if m.Timestamp != nil {
			ts = m.Timestamp.Format("2006-01-02T15:04:05Z07:00")
		}
		fmt.Fprintf(&b, "## Message %d — %s — %s\n\n", i+1, m.Role, ts)

		for _, ch := range m.Channels {
			if ch.Text == "" {
				continue
			}
			fmt.Fprintf(&b, "```%s\n%s\n```\n\n", channelLang(ch.Kind), ch.Text)
		}

		if len(m.Attachments) > 0 {
			b.WriteString("**Attachments:**\n\n")
			for _, a := range m.Attachments {
				fmt.Fprintf(&b, "- %s (%s)\n", a.Name, a.MIME)
			}
			b.WriteString("\n")
		}

		if len(m.ToolCalls) > 0 {
			b.WriteString("**Tool calls:**\n\n")
			for _, tc := range m.ToolCalls {
				fmt.Fprintf(&b, "- `%s`\n", tc.Name)
			}
			b.WriteString("\n")
		}

		if len(m.Artifacts) > 0 {
			b.WriteString("**Artifacts:**\n\n")
			for _, a := range m.Artifacts {
				fmt.Fprintf(&b, "- %s\n", a.Filename)
			}
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}

func channelLang(k model.ChannelKind) string {
	switch k {
	case model.ChannelReasoning:
		return "thinking"
	case model.ChannelTool:
		return "tool"
	default:
		return ""
	}
}
