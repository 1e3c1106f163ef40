// handlers/ws.go - Live session stream over WebSocket
package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"wizzzard/logger"
	"wizzzard/middleware"
	"wizzzard/models"
	"wizzzard/services"
	"wizzzard/session"
)

const (
	writeWait  = 10 * time.Second // Time allowed to write a message
	pingPeriod = 15 * time.Second // Send pings at this interval

	// Send channel buffer size
	sendBufferSize = 64
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type SnapshotPayload struct {
	Quiz *models.QuizSession `json:"quiz"`
	View session.View        `json:"view"`
}

// subscriber is one connected viewer. writePump is the only goroutine that
// writes to conn.
type subscriber struct {
	conn   *websocket.Conn
	quizID string
	uid    string
	send   chan Message
	ctx    context.Context
	cancel context.CancelFunc
}

// sendMessage queues a message without blocking. When the buffer is full the
// message is dropped; the next snapshot supersedes it.
func (s *subscriber) sendMessage(msgType string, payload interface{}) {
	select {
	case s.send <- Message{Type: msgType, Payload: payload}:
	default:
		logger.Log.Warn("⚠️ Send buffer full, dropping message",
			zap.String("quiz_id", s.quizID),
			zap.String("uid", s.uid),
			zap.String("type", msgType))
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.cancel()
	}()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				logger.Log.Debug("write failed", zap.String("uid", s.uid), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.ctx.Done():
			return
		}
	}
}

// readPump discards client frames and cancels the subscriber when the
// connection closes.
func (s *subscriber) readPump() {
	defer s.cancel()
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// UpgradeCheck rejects plain HTTP requests on WebSocket routes.
func UpgradeCheck(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Stream returns the handler for /ws/quizzes/:id. Each connection receives a
// snapshot message per session change and a tick message per second while a
// question is shown.
func (h *QuizHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		id, err := middleware.IdentityFrom(conn.Locals(middleware.IdentityKey))
		if err != nil {
			_ = conn.WriteJSON(Message{Type: "error", Payload: fiber.Map{"error": "Not signed in"}})
			_ = conn.Close()
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		sub := &subscriber{
			conn:   conn,
			quizID: conn.Params("id"),
			uid:    id.UID,
			send:   make(chan Message, sendBufferSize),
			ctx:    ctx,
			cancel: cancel,
		}
		defer cancel()

		logger.Log.Info("🔌 Viewer connected", zap.String("quiz_id", sub.quizID), zap.String("uid", sub.uid))

		done := make(chan struct{})
		go func() {
			defer close(done)
			sub.writePump()
		}()
		go sub.readPump()

		err = h.watcher.Watch(ctx, sub.quizID, func(u services.Update) {
			if u.Tick {
				sub.sendMessage("tick", u.View)
				return
			}
			sub.sendMessage("snapshot", SnapshotPayload{
				Quiz: u.Quiz.RedactedFor(sub.uid),
				View: u.View,
			})
		})
		cancel()
		<-done

		if err != nil {
			// The write pump has exited, so this goroutine owns the connection.
			logger.Log.Warn("watch ended with error", zap.String("quiz_id", sub.quizID), zap.Error(err))
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteJSON(Message{Type: "error", Payload: fiber.Map{"error": err.Error()}})
		}
		logger.Log.Info("🔌 Viewer disconnected", zap.String("quiz_id", sub.quizID), zap.String("uid", sub.uid))
	})
}
