package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iwonder/iwonder-backend/internal/cache"
	"github.com/iwonder/iwonder-backend/internal/services"
	"github.com/iwonder/iwonder-backend/internal/utils"
)

func newTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, w.Body.String())
	}
	return resp
}

func TestMapServiceError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"conversation missing", services.ErrConversationNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"user missing", services.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"blocked", services.ErrBlocked, http.StatusForbidden, ErrCodeBlocked},
		{"only followers", services.ErrOnlyFollowers, http.StatusForbidden, ErrCodeOnlyFollowers},
		{"not authorized", services.ErrNotAuthorized, http.StatusForbidden, ErrCodeForbidden},
		{"self conversation", services.ErrSelfConversation, http.StatusBadRequest, ErrCodeBadRequest},
		{"bad cursor", utils.ErrBadCursor, http.StatusBadRequest, ErrCodeBadCursor},
		{"username taken", services.ErrUsernameTaken, http.StatusConflict, ErrCodeConflict},
		{"bad credentials", services.ErrBadCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"unknown", http.ErrBodyNotAllowed, http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newTestContext(t)
			mapServiceError(c, tc.err)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			resp := decodeEnvelope(t, w)
			if resp.Code != tc.code {
				t.Fatalf("code = %q, want %q", resp.Code, tc.code)
			}
			if tc.status == http.StatusInternalServerError && resp.Message != "internal error" {
				t.Fatalf("internal errors must be opaque, got %q", resp.Message)
			}
		})
	}
}

func TestPathID(t *testing.T) {
	for _, bad := range []string{"", "abc", "0", "-3", "1.5"} {
		c, w := newTestContext(t)
		c.Params = gin.Params{{Key: "id", Value: bad}}
		if _, okID := pathID(c, "id"); okID {
			t.Fatalf("pathID(%q) accepted", bad)
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("pathID(%q) status = %d", bad, w.Code)
		}
	}

	c, _ := newTestContext(t)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	id, okID := pathID(c, "id")
	if !okID || id != 42 {
		t.Fatalf("pathID(42) = %d, %v", id, okID)
	}
}

func TestPageParams(t *testing.T) {
	cases := []struct {
		query     string
		skip, lim int
	}{
		{"", 0, 20},
		{"skip=5&limit=10", 5, 10},
		{"skip=-1&limit=0", 0, 20},
		{"limit=500", 0, 20},
		{"skip=junk&limit=junk", 0, 20},
	}
	for _, tc := range cases {
		c, _ := newTestContext(t)
		c.Request.URL = &url.URL{RawQuery: tc.query}
		skip, limit := pageParams(c, 20)
		if skip != tc.skip || limit != tc.lim {
			t.Errorf("pageParams(%q) = (%d, %d), want (%d, %d)", tc.query, skip, limit, tc.skip, tc.lim)
		}
	}
}

// Without a reachable Redis the fixed-window limiter fails open, so write
// budgets never reject.
func TestCheckWriteBudgetFailsOpen(t *testing.T) {
	h := New(Options{Limiter: cache.NewLimiter(nil)})
	c, w := newTestContext(t)
	if !h.checkWriteBudget(c, "msg", 1, time.Second) {
		t.Fatal("budget check must pass with no limiter backend")
	}
	if w.Code == http.StatusTooManyRequests {
		t.Fatal("unexpected 429")
	}
}

func TestNewDefaultsBudgets(t *testing.T) {
	h := New(Options{})
	if h.messageLimit != 30 || h.messageWindow != 10*time.Second {
		t.Fatalf("message budget = %d/%s", h.messageLimit, h.messageWindow)
	}
	if h.questionLimit != 10 || h.questionWindow != 60*time.Second {
		t.Fatalf("question budget = %d/%s", h.questionLimit, h.questionWindow)
	}
}
