package api

import (
	"net/http"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsHandler upgrades HTTP connections to WebSocket and delegates to
// the ConnectionManager.
func (s *Server) wsHandler(c *echo.Context) error {
	if s.connManager == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "WebSocket not available")
	}

	opts := &websocket.AcceptOptions{}
	if len(s.cfg.AllowedWSOrigins) > 0 {
		opts.OriginPatterns = s.cfg.AllowedWSOrigins
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), opts)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.WSConnections.Inc()
		defer s.metrics.WSConnections.Dec()
	}

	// Blocks until the WebSocket closes.
	s.connManager.HandleConnection(c.Request().Context(), conn)
	return nil
}
