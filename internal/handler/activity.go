package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aryan0dhankhar/secretsanta/internal/featureflags"
	"github.com/aryan0dhankhar/secretsanta/internal/observability/metrics"
	"github.com/aryan0dhankhar/secretsanta/internal/security/audit"
)

const (
	defaultActivityLines = 50
	maxActivityLines     = 500
	pingInterval         = 15 * time.Second
	writeWait            = 5 * time.Second
)

// ActivityHandler serves recent activity log lines over REST and websocket
type ActivityHandler struct {
	activity       *audit.Logger
	logger         *slog.Logger
	allowedOrigins []string
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activity *audit.Logger, logger *slog.Logger, allowedOrigins []string) *ActivityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityHandler{activity: activity, logger: logger, allowedOrigins: allowedOrigins}
}

func (h *ActivityHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients such as the CLI
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

func lineCount(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil || n <= 0 {
		return defaultActivityLines
	}
	if n > maxActivityLines {
		return maxActivityLines
	}
	return n
}

// Recent handles GET /api/admin/activity?n=
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	lines, err := h.activity.LastN(lineCount(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"lines": lines})
}

// Stream handles GET /ws/admin/activity. It sends the last n lines and then
// every new line until the client goes away.
func (h *ActivityHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if featureflags.Enabled(featureflags.DisableActivityStream) {
		writeCode(w, r, http.StatusNotFound, "NOT_FOUND")
		return
	}

	backlog, err := h.activity.LastN(lineCount(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	// subscribe before upgrading so no line written in between is lost
	lines, cancel := h.activity.Subscribe(64)
	defer cancel()

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	metrics.StreamOpened()
	defer metrics.StreamClosed()

	for _, line := range backlog {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}

	// the read pump only notices the close frame
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("websocket closed", slog.String("error", err.Error()))
				}
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
