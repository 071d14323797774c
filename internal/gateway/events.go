package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
)

// handleEvents returns an http.HandlerFunc for GET /ws/events. It upgrades
// the connection to a WebSocket and streams watchdog events as JSON text
// messages until the client disconnects.
func (g *Gateway) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.cfg.Logger.Debug("gateway: websocket accept failed", "error", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		events, unsubscribe := g.watchdog.Subscribe()
		defer unsubscribe()

		// Reads are discarded; their only purpose is to detect disconnects
		// and handle control frames.
		readCtx := conn.CloseRead(r.Context())

		for {
			select {
			case <-readCtx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := g.writeEvent(readCtx, conn, ev); err != nil {
					g.cfg.Logger.Debug("gateway: event write failed", "error", err)
					return
				}
			}
		}
	}
}

func (g *Gateway) writeEvent(ctx context.Context, conn *websocket.Conn, ev any) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
