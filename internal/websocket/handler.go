package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/restoregeek/restoregeek/internal/auth"
)

// HandleWebSocket upgrades the request and streams reminder activity for the
// caller's organization until the connection closes. Cross-origin browsers
// are accepted only when their host matches one of originPatterns.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := auth.OrganizationID(r.Context())
		if orgID == "" {
			http.Error(w, "organization required", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "origin", r.Header.Get("Origin"), "error", err)
			return
		}

		client := NewClient(hub, conn, orgID)
		client.Run(r.Context())
	}
}
