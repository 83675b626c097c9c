// WebSocket endpoint for real-time push.
//
// GET /ws upgrades the connection and registers it for the authenticated
// user. The server only writes; inbound frames are drained and discarded so
// that pings and close frames are processed. Authentication accepts either
// the Authorization header or a "token" query parameter, since browser
// WebSocket clients cannot set headers.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/iwonder/iwonder-backend/internal/auth"
	"github.com/iwonder/iwonder-backend/internal/http/middleware"
	"github.com/iwonder/iwonder-backend/internal/push"
)

const (
	wsReadLimit  = 4096
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 45 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin enforcement happens at the CORS layer; the upgrader accepts
	// whatever reached the route.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsUserID authenticates the upgrade request. It tries the Authorization
// header first, then the token query parameter.
func (h *Handlers) wsUserID(c *gin.Context) (int64, bool) {
	tok := ""
	if v := c.GetHeader("Authorization"); v != "" {
		tok, _ = strings.CutPrefix(v, "Bearer ")
	}
	if tok == "" {
		tok = c.Query("token")
	}
	if tok == "" {
		return 0, false
	}
	uid, err := auth.ParseToken(h.jwtSecret, tok)
	if err != nil {
		return 0, false
	}
	return uid, true
}

// Connect upgrades the request to a WebSocket and streams push events until
// the peer goes away.
func (h *Handlers) Connect(c *gin.Context) {
	uid, authed := h.wsUserID(c)
	if !authed {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing or invalid token")
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote its own error response.
		middleware.LoggerFrom(c).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	ch := push.NewWSChannel(conn)
	h.registry.Connect(uid, ch)
	defer h.registry.Disconnect(uid, ch)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Keepalive pings ride the same serialized writer as push payloads.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(wsPingPeriod)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if err := ch.Ping(); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	// Drain loop. Any read error (close, timeout, protocol) ends the session.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
