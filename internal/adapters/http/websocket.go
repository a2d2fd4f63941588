package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/osmdash/internal/core/domain"
	"github.com/samirrijal/osmdash/internal/core/usecases"
	"github.com/samirrijal/osmdash/internal/pkg/metrics"
)

const (
	wsPingInterval   = 30 * time.Second
	wsCommandTimeout = 5 * time.Second
	wsSubscribeBuf   = 8
)

// wsCommand is sent from client to change the session parameters.
type wsCommand struct {
	Action  string   `json:"action"` // set_origin | set_radius | set_categories | select_all | clear | place | refresh
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
	Trigger string   `json:"trigger,omitempty"`
	Radius  *int     `json:"radius,omitempty"`
	Step    int      `json:"step,omitempty"`
	Labels  []string `json:"labels,omitempty"`
	Name    string   `json:"name,omitempty"`
}

// wsEnvelope tags every server message so clients can dispatch on type.
type wsEnvelope struct {
	Type     string        `json:"type"` // snapshot | ack | error
	Action   string        `json:"action,omitempty"`
	Error    string        `json:"error,omitempty"`
	Snapshot *SnapshotView `json:"snapshot,omitempty"`
}

// applyWSCommand routes one client command into the scheduler.
func applyWSCommand(ctx context.Context, deps *Dependencies, cmd wsCommand) error {
	s := deps.Scheduler
	switch cmd.Action {
	case "set_origin":
		if cmd.Lat == nil || cmd.Lon == nil {
			return errors.New("lat and lon are required")
		}
		trigger := usecases.Trigger(cmd.Trigger)
		if trigger == "" {
			trigger = usecases.TriggerUpdate
		}
		return s.SetOrigin(ctx, domain.Coordinate{Lat: *cmd.Lat, Lon: *cmd.Lon}, trigger)
	case "set_radius":
		switch {
		case cmd.Radius != nil:
			return s.SetRadius(ctx, deps.Query.ClampRadius(*cmd.Radius))
		case cmd.Step != 0:
			return s.SetRadius(ctx, deps.Query.StepRadius(s.Snapshot().State.Radius, cmd.Step))
		default:
			return errors.New("radius or step is required")
		}
	case "set_categories":
		return s.SetCategories(ctx, cmd.Labels)
	case "select_all":
		return s.SelectAll(ctx)
	case "clear":
		return s.ClearCategories(ctx)
	case "place":
		_, err := s.SelectPlace(ctx, cmd.Name)
		return err
	case "refresh":
		return s.Refresh(ctx)
	default:
		return fmt.Errorf("unknown action: %q", cmd.Action)
	}
}

// WebSocketHandler returns a handler that streams scheduler snapshots to the
// client and accepts parameter changes over the same connection. The current
// snapshot is sent on connect.
// Clients send JSON: {"action":"set_categories","labels":["Restaurant"]}
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		logger := slog.With("remote", remoteAddr, "session_id", deps.Scheduler.SessionID())
		logger.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		sendSnapshot := func(snap *domain.Snapshot) error {
			view := snapshotView(snap, deps)
			return writeJSON(wsEnvelope{Type: "snapshot", Snapshot: &view})
		}

		updates, unsubscribe := deps.Scheduler.Subscribe(wsSubscribeBuf)
		defer unsubscribe()

		if err := sendSnapshot(deps.Scheduler.Snapshot()); err != nil {
			logger.Warn("ws initial snapshot failed", "error", err)
			return
		}

		done := make(chan struct{})
		defer close(done)

		// Relay snapshots and keep the connection alive.
		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case snap, ok := <-updates:
					if !ok {
						return
					}
					if err := sendSnapshot(snap); err != nil {
						return
					}
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var cmd wsCommand
			if err := json.Unmarshal(msg, &cmd); err != nil {
				_ = writeJSON(wsEnvelope{Type: "error", Error: "invalid JSON"})
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), wsCommandTimeout)
			err = applyWSCommand(ctx, deps, cmd)
			cancel()
			if err != nil {
				logger.Debug("ws command rejected", "action", cmd.Action, "error", err)
				_ = writeJSON(wsEnvelope{Type: "error", Action: cmd.Action, Error: err.Error()})
				continue
			}
			_ = writeJSON(wsEnvelope{Type: "ack", Action: cmd.Action})
		}

		logger.Info("ws client disconnected")
	}
}
