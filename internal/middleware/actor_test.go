package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type adminSet map[int64]bool

func (a adminSet) IsAdmin(id int64) bool { return a[id] }

type clearCall struct {
	chatID    int64
	messageID string
}

type recordingClearer struct {
	mu    sync.Mutex
	calls []clearCall
	err   error
}

func (r *recordingClearer) ClearActions(ctx context.Context, chatID int64, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, clearCall{chatID, messageID})
	return r.err
}

func TestActorMiddleware(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(ActorMiddleware())
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": ActorID(c)})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not a number", "abc", http.StatusUnauthorized},
		{"negative", "-4", http.StatusUnauthorized},
		{"valid", "42", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers[ActorHeader] = tt.header
			}
			w := performRequest(r, http.MethodGet, "/me", headers)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(ActorMiddleware(), RequireAdmin(adminSet{100: true}))
	r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	if w := performRequest(r, http.MethodGet, "/admin", map[string]string{ActorHeader: "100"}); w.Code != http.StatusNoContent {
		t.Errorf("admin: expected 204, got %d", w.Code)
	}
	if w := performRequest(r, http.MethodGet, "/admin", map[string]string{ActorHeader: "200"}); w.Code != http.StatusForbidden {
		t.Errorf("client: expected 403, got %d", w.Code)
	}
}

func TestClearActionsMiddleware(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	newRouter := func(clearer *recordingClearer) *gin.Engine {
		r := gin.New()
		r.Use(ActorMiddleware(), ClearActionsMiddleware(clearer, logger))
		r.POST("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
		r.POST("/fail", func(c *gin.Context) { c.Status(http.StatusConflict) })
		return r
	}

	t.Run("clears after success", func(t *testing.T) {
		clearer := &recordingClearer{}
		performRequest(newRouter(clearer), http.MethodPost, "/ok",
			map[string]string{ActorHeader: "7", MessageHeader: "m-1"})
		if len(clearer.calls) != 1 || clearer.calls[0] != (clearCall{7, "m-1"}) {
			t.Errorf("expected one clear for chat 7 message m-1, got %+v", clearer.calls)
		}
	})

	t.Run("keeps buttons after failure", func(t *testing.T) {
		clearer := &recordingClearer{}
		performRequest(newRouter(clearer), http.MethodPost, "/fail",
			map[string]string{ActorHeader: "7", MessageHeader: "m-1"})
		if len(clearer.calls) != 0 {
			t.Errorf("expected no clear, got %+v", clearer.calls)
		}
	})

	t.Run("no message header", func(t *testing.T) {
		clearer := &recordingClearer{}
		performRequest(newRouter(clearer), http.MethodPost, "/ok", map[string]string{ActorHeader: "7"})
		if len(clearer.calls) != 0 {
			t.Errorf("expected no clear, got %+v", clearer.calls)
		}
	})

	t.Run("clear failure keeps response", func(t *testing.T) {
		clearer := &recordingClearer{err: errors.New("telegram down")}
		w := performRequest(newRouter(clearer), http.MethodPost, "/ok",
			map[string]string{ActorHeader: "7", MessageHeader: "m-1"})
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})
}
