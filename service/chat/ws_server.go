package chat

import (
	"context"
	"net/http"
	"time"

	"Parley/logger"
	midsec "Parley/middleware/security"
	"Parley/module/chat/service"
	"Parley/service/storage"
	"Parley/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = 30 * time.Second
	sendQueueSize = 64
	wsPresenceTTL = 90 * time.Second
)

// Server owns the websocket endpoint.
type Server struct {
	mgr *ConnManager
	fan *Fanout
	svc *service.Service
}

func NewServer(mgr *ConnManager, fan *Fanout, svc *service.Service) *Server {
	return &Server{mgr: mgr, fan: fan, svc: svc}
}

// HandleWS is GET /ws (authenticated). The client subscribes to its
// conversations with {"type":"subscribe","conversationId":...} frames.
func (s *Server) HandleWS(c *gin.Context) {
	userID := midsec.MustUserID(c)
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	client := NewClient(ids.GenerateString(), userID, ws, sendQueueSize)
	s.mgr.Add(client)
	if err := storage.PresenceOnline(c.Request.Context(), userID, "ws", wsPresenceTTL); err != nil {
		logger.Warnf("[ws] presence online user=%s: %v", userID, err)
	}

	go s.writePump(client)
	s.readPump(client)
}

func (s *Server) readPump(client *Client) {
	ws := client.WS
	defer s.teardown(client)

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s", client.ConnID)
			} else {
				logger.Infof("[ws] read err conn=%s: %v", client.ConnID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			logger.Infof("[ws] bad frame conn=%s: %v", client.ConnID, perr)
			continue
		}

		switch frame.Type {
		case FrameSubscribe:
			if frame.ConversationID == "" {
				continue
			}
			// Only members may attach to a conversation channel.
			if err := s.svc.Authorize(context.Background(), client.UserID, frame.ConversationID); err != nil {
				s.send(client, &Frame{Type: FrameError, ConversationID: frame.ConversationID, Error: "forbidden"})
				continue
			}
			s.mgr.Subscribe(client.ConnID, frame.ConversationID)
			s.svc.PublishPresence(context.Background(), frame.ConversationID, client.UserID, true)
		case FrameUnsubscribe:
			s.mgr.Unsubscribe(client.ConnID, frame.ConversationID)
		case FramePing:
			s.send(client, &Frame{Type: FramePong})
		default:
			// client-originated envelopes are not accepted; sends go over HTTP
		}
	}
}

func (s *Server) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	ws := client.WS
	for {
		select {
		case payload, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) teardown(client *Client) {
	convIDs := s.mgr.Remove(client.ConnID)
	if dropped := client.Close(); dropped > 0 {
		logger.Infof("[ws] conn=%s dropped %d frames to a slow queue", client.ConnID, dropped)
	}
	_ = client.WS.Close()

	ctx := context.Background()
	// Presence goes offline only when the user's last connection drops.
	if !s.mgr.UserOnline(client.UserID) {
		if err := storage.PresenceOffline(ctx, client.UserID); err != nil {
			logger.Warnf("[ws] presence offline user=%s: %v", client.UserID, err)
		}
		for _, convID := range convIDs {
			s.svc.PublishPresence(ctx, convID, client.UserID, false)
		}
	}
}

func (s *Server) send(client *Client, f *Frame) {
	client.TrySend(f.Marshal())
}
