package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/tsforge/tsforge/pkg/events"
	"github.com/tsforge/tsforge/pkg/models"
	"github.com/tsforge/tsforge/pkg/services"
)

// chatWSHandler serves /ws/chat/{file_id} (spec.md §6). The chat
// assistant itself is an out-of-scope external collaborator
// (SPEC_FULL.md §1); this handler owns the conversation log, the
// reconnect catch-up, and the `event_added`/`guideline_added` pass-through
// channel that collaborator pushes through, persisting every turn a
// client sends as a `user_message_received` broadcast.
func (s *Server) chatWSHandler(c *echo.Context) error {
	fileID := c.Param("file_id")
	ctx := c.Request().Context()

	conv, err := s.findOrCreateChat(ctx, fileID)
	if err != nil {
		return httpError(c, err)
	}

	history, err := s.convs.MessagesSince(ctx, conv.ID, 0)
	if err != nil {
		return httpError(c, err)
	}
	replay := make([]events.ServerMessage, 0, len(history))
	for _, m := range history {
		if m.Role != models.RoleUser {
			continue
		}
		replay = append(replay, events.ServerMessage{Type: events.ChatTypeUserMessageReceived, Message: m.Content})
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	wsCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	userName := ""
	onMessage := func(raw []byte) error {
		var msg events.ChatClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("invalid chat message: %w", err)
		}

		if msg.Action == "set-context" {
			if msg.Context != nil {
				userName = msg.Context.UserName
			}
			return nil
		}
		if msg.Message == "" {
			return nil
		}

		if _, err := s.convs.Append(wsCtx, conv.ID, models.RoleUser, "", msg.Message, ""); err != nil {
			return fmt.Errorf("persist chat message: %w", err)
		}
		s.hub.Publish(fileID, events.KindChat, events.ServerMessage{
			Type:    events.ChatTypeUserMessageReceived,
			Message: msg.Message,
			Data:    map[string]any{"userName": userName},
		})
		return nil
	}

	s.hub.Serve(wsCtx, conn, fileID, events.KindChat, replay, onMessage)
	return nil
}

func (s *Server) findOrCreateChat(ctx context.Context, fileID string) (*models.Conversation, error) {
	conv, err := s.convs.LatestByFileAndKind(ctx, fileID, models.ConversationChat)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}
	return s.convs.Create(ctx, fileID, models.ConversationChat)
}
