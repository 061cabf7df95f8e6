package split

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"convsplit/internal/model"
)

func testConv(id, title string, created time.Time) *model.Conversation {
	return &model.Conversation{
		ConvID:    id,
		Source:    model.SourceAnthropic,
		Title:     title,
		CreatedAt: created,
		Roles:     map[model.Role]bool{model.RoleHuman: true, model.RoleAssistant: true},
		Raw:       []byte(`{"uuid":"` + id + `"}`),
		Messages: []model.Message{
			{Index: 0, Role: model.RoleHuman, Channels: []model.Channel{{Kind: model.ChannelMessage, Text: "hi"}}},
			{Index: 1, Role: model.RoleAssistant, Channels: []model.Channel{{Kind: model.ChannelMessage, Text: "hello"}}},
		},
	}
}

func TestSplitBasicLayout(t *testing.T) {
	dir := t.TempDir()
	created := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	conv := testConv("abc", "Test Conversation", created)

	s := New(Options{OutDir: dir})
	res, err := s.Write(conv)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(res.Dir) != "2025-01-15-test-conversation" {
		t.Fatalf("got dir %q", res.Dir)
	}
	for _, f := range []string{"test-conversation.md", "test-conversation.json", "conversation.ndjson"} {
		if _, err := os.Stat(filepath.Join(res.Dir, f)); err != nil {
			t.Fatalf("expected %s to exist: %v", f, err)
		}
	}
}

func TestSplitSlugCollision(t *testing.T) {
	dir := t.TempDir()
	created := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	s := New(Options{OutDir: dir})
	r1, err := s.Write(testConv("a", "Hello", created))
	if err != nil {
		t.Fatal(err)
	}
	r2, err := s.Write(testConv("b", "Hello", created))
	if err != nil {
		t.Fatal(err)
	}

	if filepath.Base(r1.Dir) != "2025-01-15-hello" {
		t.Fatalf("got %q", r1.Dir)
	}
	if filepath.Base(r2.Dir) != "2025-01-15-hello-001" {
		t.Fatalf("got %q", r2.Dir)
	}
}

func TestSplitDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	created := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	s := New(Options{OutDir: dir, DryRun: true})
	res, err := s.Write(testConv("abc", "Test", created))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(res.Dir); !os.IsNotExist(err) {
		t.Fatal("expected dry-run to write nothing")
	}
}
