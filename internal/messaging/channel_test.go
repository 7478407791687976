package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewAction(t *testing.T) {
	t.Parallel()

	if got := NewAction("Accept", "accept_price", "o1"); got.Command != "accept_price:o1" {
		t.Errorf("expected accept_price:o1, got %s", got.Command)
	}
	if got := NewAction("Clear", "cancel_all", ""); got.Command != "cancel_all" {
		t.Errorf("expected cancel_all, got %s", got.Command)
	}
}

func TestLogChannel_LogsCommands(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ch := NewLogChannel(slog.New(slog.NewJSONHandler(&buf, nil)))
	if err := ch.SendText(context.Background(), 42, "Price: 500", NewAction("Accept", "accept_price", "o1")); err != nil {
		t.Fatalf("send: %v", err)
	}

	var entry struct {
		ChatID  int64    `json:"chat_id"`
		Text    string   `json:"text"`
		Actions []string `json:"actions"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if entry.ChatID != 42 || entry.Text != "Price: 500" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if len(entry.Actions) != 1 || entry.Actions[0] != "accept_price:o1" {
		t.Errorf("expected the action command to be logged, got %v", entry.Actions)
	}
}
