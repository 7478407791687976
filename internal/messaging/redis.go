package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	eventText         = "text"
	eventPhoto        = "photo"
	eventClearActions = "clear_actions"
)

// RedisChannel appends outbound messages to a Redis stream consumed by the chat gateway.
type RedisChannel struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisChannel creates a RedisChannel writing to stream, trimmed to roughly maxLen entries.
func NewRedisChannel(client *redis.Client, stream string, maxLen int64) *RedisChannel {
	return &RedisChannel{client: client, stream: stream, maxLen: maxLen}
}

func (c *RedisChannel) SendText(ctx context.Context, chatID int64, text string, actions ...Action) error {
	encoded, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("%w: encode actions: %v", ErrDelivery, err)
	}
	return c.publish(ctx, map[string]any{
		"type":    eventText,
		"chat_id": chatID,
		"text":    text,
		"actions": string(encoded),
	})
}

func (c *RedisChannel) SendPhoto(ctx context.Context, chatID int64, photoRef, caption string) error {
	return c.publish(ctx, map[string]any{
		"type":    eventPhoto,
		"chat_id": chatID,
		"photo":   photoRef,
		"caption": caption,
	})
}

func (c *RedisChannel) ClearActions(ctx context.Context, chatID int64, messageID string) error {
	return c.publish(ctx, map[string]any{
		"type":       eventClearActions,
		"chat_id":    chatID,
		"message_id": messageID,
	})
}

func (c *RedisChannel) publish(ctx context.Context, values map[string]any) error {
	values["id"] = uuid.New().String()
	err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		MaxLen: c.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}
