package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/twinpilot/internal/turn"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type      string `json:"type"` // "ask"
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type       string   `json:"type"` // "response" or "error"
	SessionID  string   `json:"session_id"`
	Content    string   `json:"content"`
	Citations  []string `json:"citations,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendError(conn, "", "invalid message format")
			continue
		}

		if req.Content == "" {
			s.sendError(conn, req.SessionID, "content is required")
			continue
		}

		switch req.Type {
		case "ask":
			s.handleAskMessage(conn, r, req)
		default:
			s.sendError(conn, req.SessionID, "unknown message type: "+req.Type)
		}
	}
}

func (s *Server) handleAskMessage(conn *websocket.Conn, r *http.Request, req chatRequest) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	result, err := s.runner.Run(r.Context(), turn.Turn{
		ID:        uuid.New().String(),
		Utterance: req.Content,
		PersonaID: s.cfg.PersonaID,
		Context:   turn.ContextPublic,
	})
	if err != nil {
		s.sendError(conn, sessionID, "processing failed: "+err.Error())
		return
	}

	s.sendResponse(conn, chatResponse{
		Type:       "response",
		SessionID:  sessionID,
		Content:    result.FinalText,
		Citations:  result.Citations,
		Confidence: result.Confidence,
	})
}

func (s *Server) sendResponse(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}

func (s *Server) sendError(conn *websocket.Conn, sessionID, message string) {
	s.sendResponse(conn, chatResponse{
		Type:      "error",
		SessionID: sessionID,
		Content:   message,
	})
}
