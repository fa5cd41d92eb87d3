package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/lab"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/limiter"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type   string `json:"type"` // "run" or "save"
	UserID int64  `json:"user_id"`
	Code   string `json:"code"`
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Score     *int   `json:"score,omitempty"`
	SessionID int64  `json:"session_id,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	labID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid lab id", http.StatusBadRequest)
		return
	}

	// Verify lab exists
	if _, err := s.svc.Lab(r.Context(), labID); err != nil {
		if errors.Is(err, lab.ErrLabNotFound) {
			http.Error(w, "lab not found", http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	ar := s.runs.Open(connID, labID)
	ar.Client = limiter.ClientKey(r)
	defer s.runs.Remove(connID)

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	// Read loop
	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			log.Printf("websocket read error: %v", err)
			return
		}

		if (msg.Type != "run" && msg.Type != "save") || msg.UserID <= 0 {
			wsWriteJSON(conn, wsOutgoing{Type: "error", Content: "invalid message"})
			continue
		}

		s.processSubmission(conn, ar, msg)
	}
}

func (s *Server) processSubmission(conn *websocket.Conn, ar *ActiveRun, msg wsIncoming) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if ar.Ctx.Err() != nil {
		wsWriteJSON(conn, wsOutgoing{Type: "error", Content: "server shutting down"})
		return
	}

	sub := lab.Submission{UserID: msg.UserID, LabID: ar.LabID, Code: msg.Code}

	if msg.Type == "save" {
		id, err := s.svc.SaveOnly(ar.Ctx, sub)
		if err != nil {
			wsWriteJSON(conn, wsOutgoing{Type: "error", Content: err.Error()})
			return
		}
		wsWriteJSON(conn, wsOutgoing{Type: "saved", SessionID: id})
		return
	}

	if s.limiter != nil {
		if !s.limiter.Allow(ar.Client) {
			wsWriteJSON(conn, wsOutgoing{Type: "error", Content: "too many submissions, slow down"})
			return
		}
		defer s.limiter.Done()
	}

	wsWriteJSON(conn, wsOutgoing{Type: "started"})

	graded, err := s.svc.RunAndGrade(ar.Ctx, sub)
	if err != nil {
		wsWriteJSON(conn, wsOutgoing{Type: "error", Content: err.Error()})
		return
	}

	score := graded.Score
	wsWriteJSON(conn, wsOutgoing{
		Type:      "result",
		Content:   graded.Result.Output,
		Outcome:   string(graded.Result.Outcome),
		Score:     &score,
		SessionID: graded.SessionID,
	})
}

func wsWriteJSON(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}
