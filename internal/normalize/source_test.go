package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"convsplit/internal/model"
)

func TestDetectConversationSource(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want model.Source
	}{
		{"anthropic object", `{"chat_messages":[]}`, model.SourceAnthropic},
		{"anthropic array", `[{"chat_messages":[]}]`, model.SourceAnthropic},
		{"chatgpt mapping", `{"mapping":{}}`, model.SourceChatGPT},
		{"claude code log entry", `{"type":"user","message":{}}`, model.SourceClaudeCode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectConversationSource(json.RawMessage(tc.raw))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDetectConversationSourceErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty array", `[]`},
		{"not an object", `"hello"`},
		{"unrecognized shape", `{"foo":"bar"}`},
		{"type without message", `{"type":"summary"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DetectConversationSource(json.RawMessage(tc.raw))
			require.Error(t, err)
		})
	}
}

func TestNormalizeUnsupportedSource(t *testing.T) {
	_, err := Normalize(json.RawMessage(`{}`), model.SourceClaudeCode)
	require.Error(t, err)
}
