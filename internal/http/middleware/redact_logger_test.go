package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedactingLogger_DoesNotBreakRequests(t *testing.T) {
	r := newTestRouter(RequestID(), RedactingLogger(RedactOptions{
		MaskHeaders: []string{"X-Api-Key"},
	}))
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ws?token=eyJhbGciOi.secret&user=bob@example.com", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	req.Header.Set("X-Api-Key", "k-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRedactingLogger_LevelsByStatus(t *testing.T) {
	r := newTestRouter(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/missing", "/broken"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound && w.Code != http.StatusInternalServerError {
			t.Fatalf("%s: status = %d", path, w.Code)
		}
	}
}
