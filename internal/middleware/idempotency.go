package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
	inFlightTTL       = 30 * time.Second
	inFlightMarker    = "pending"
)

// cachedResponse is the stored outcome of an idempotent request.
type cachedResponse struct {
	StatusCode  int             `json:"status_code"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
}

// responseWriter captures the body while it is written to the client.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response of a mutating request
// repeated with the same Idempotency-Key by the same actor. Chat gateways
// retry button presses, and a replay must not apply a transition twice.
// A duplicate arriving while the first request runs gets 409.
func IdempotencyMiddleware(client *redis.Client, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := "idempotency:" + strconv.FormatInt(ActorID(c), 10) + ":" + key

		acquired, err := client.SetNX(ctx, cacheKey, inFlightMarker, inFlightTTL).Result()
		if err != nil {
			logger.WarnContext(ctx, "idempotency store unavailable", slog.Any("error", err))
			c.Next()
			return
		}

		if !acquired {
			cached, err := getCachedResponse(ctx, client, cacheKey)
			switch {
			case err == nil:
				c.Data(cached.StatusCode, cached.ContentType, cached.Body)
				c.Abort()
			case errors.Is(err, errInFlight):
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in progress"})
			default:
				logger.WarnContext(ctx, "idempotency lookup failed", slog.Any("error", err))
				c.Next()
			}
			return
		}

		w := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w

		c.Next()

		// Server errors are not stored so that the client can retry.
		if c.Writer.Status() >= http.StatusInternalServerError {
			_ = client.Del(context.WithoutCancel(ctx), cacheKey).Err()
			return
		}
		response := cachedResponse{
			StatusCode:  c.Writer.Status(),
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		}
		if err := setCachedResponse(context.WithoutCancel(ctx), client, cacheKey, &response); err != nil {
			logger.WarnContext(ctx, "failed to store idempotent response", slog.Any("error", err))
		}
	}
}

var errInFlight = errors.New("request in flight")

func getCachedResponse(ctx context.Context, client *redis.Client, key string) (*cachedResponse, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	if string(data) == inFlightMarker {
		return nil, errInFlight
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func setCachedResponse(ctx context.Context, client *redis.Client, key string, response *cachedResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, data, idempotencyTTL).Err()
}
