package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/tsforge/tsforge/pkg/agent"
	"github.com/tsforge/tsforge/pkg/events"
	"github.com/tsforge/tsforge/pkg/models"
	"github.com/tsforge/tsforge/pkg/services"
)

// autoDetectionWSHandler serves /ws/auto-detection/{file_id} (spec.md
// §6): the client sends start/cancel commands, the server pushes
// {type, data} progress notifications from agent.Runner.Run. A client
// reconnecting mid-run replays every notification emitted so far from
// the run's conversation log, then keeps receiving live ones.
func (s *Server) autoDetectionWSHandler(c *echo.Context) error {
	fileID := c.Param("file_id")
	ctx0 := c.Request().Context()

	replay, err := s.autoDetectionReplay(ctx0, fileID)
	if err != nil {
		return httpError(c, err)
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	var (
		mu      sync.Mutex
		running bool
	)

	onMessage := func(raw []byte) error {
		var cmd events.ClientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return fmt.Errorf("invalid command: %w", err)
		}
		switch cmd.Command {
		case events.CommandStartAutoDetection:
			mu.Lock()
			alreadyRunning := running
			if !alreadyRunning {
				running = true
			}
			mu.Unlock()
			if alreadyRunning {
				return nil
			}
			go s.runAutoDetection(ctx, fileID, func() {
				mu.Lock()
				running = false
				mu.Unlock()
			})
		case events.CommandCancelAutoDetection:
			cancel()
		default:
			return fmt.Errorf("unknown command %q", cmd.Command)
		}
		return nil
	}

	s.hub.Serve(ctx, conn, fileID, events.KindAutoDetection, replay, onMessage)
	return nil
}

// autoDetectionReplay rebuilds the notification history a reconnecting
// client missed from the most recent auto-detection conversation for
// fileID, mirroring chatWSHandler's catch-up query.
func (s *Server) autoDetectionReplay(ctx context.Context, fileID string) ([]events.ServerMessage, error) {
	conv, err := s.convs.LatestByFileAndKind(ctx, fileID, models.ConversationAutoDetect)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if conv.Status != models.ConversationRunning {
		return nil, nil
	}

	history, err := s.convs.MessagesSince(ctx, conv.ID, 0)
	if err != nil {
		return nil, err
	}
	replay := make([]events.ServerMessage, 0, len(history))
	for _, m := range history {
		var msg events.ServerMessage
		if err := json.Unmarshal([]byte(m.Content), &msg); err != nil {
			continue
		}
		replay = append(replay, msg)
	}
	return replay, nil
}

// runAutoDetection drives one agent.Runner pass, persisting and
// publishing every notification to the file's auto-detection room in
// spec.md §6's {type, data} shape. done is called once the run and its
// notifications have finished, regardless of outcome.
func (s *Server) runAutoDetection(ctx context.Context, fileID string, done func()) {
	defer done()

	conv, err := s.convs.Create(ctx, fileID, models.ConversationAutoDetect)
	if err != nil {
		s.hub.Publish(fileID, events.KindAutoDetection, events.ServerMessage{
			Type: string(agent.NotifyError),
			Data: map[string]any{"message": fmt.Sprintf("start conversation: %v", err)},
		})
		return
	}

	notify := func(n agent.Notification) {
		msg := events.ServerMessage{Type: string(n.Type), Data: n.Data}
		if body, err := json.Marshal(msg); err == nil {
			_, _ = s.convs.Append(ctx, conv.ID, models.RoleAssistant, "", string(body), "")
		}
		s.hub.Publish(fileID, events.KindAutoDetection, msg)
	}

	_, runErr := s.agents.Run(ctx, fileID, notify)

	status := models.ConversationCompleted
	if runErr != nil {
		status = models.ConversationFailed
		notify(agent.Notification{Type: agent.NotifyError, Data: map[string]any{"message": runErr.Error()}})
	}
	if ctx.Err() != nil {
		status = models.ConversationCancelled
	}
	_ = s.convs.UpdateStatus(context.WithoutCancel(ctx), conv.ID, status)
}
