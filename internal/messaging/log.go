package messaging

import (
	"context"
	"log/slog"
)

// LogChannel writes outbound messages to the structured log.
// It is used when no chat gateway is attached.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a LogChannel.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) SendText(ctx context.Context, chatID int64, text string, actions ...Action) error {
	commands := make([]string, len(actions))
	for i, a := range actions {
		commands[i] = a.Command
	}
	c.logger.InfoContext(ctx, "outbound message",
		slog.Int64("chat_id", chatID),
		slog.String("text", text),
		slog.Any("actions", commands),
	)
	return nil
}

func (c *LogChannel) SendPhoto(ctx context.Context, chatID int64, photoRef, caption string) error {
	c.logger.InfoContext(ctx, "outbound photo",
		slog.Int64("chat_id", chatID),
		slog.String("photo", photoRef),
		slog.String("caption", caption),
	)
	return nil
}

func (c *LogChannel) ClearActions(ctx context.Context, chatID int64, messageID string) error {
	c.logger.DebugContext(ctx, "clear actions", slog.Int64("chat_id", chatID), slog.String("message_id", messageID))
	return nil
}
