package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	errs "github.com/matzehuels/rostermap/pkg/errors"
	"github.com/matzehuels/rostermap/pkg/observability"
	"github.com/matzehuels/rostermap/pkg/render/sink"
	"github.com/matzehuels/rostermap/pkg/session"
	"github.com/matzehuels/rostermap/pkg/transition"
)

// Stream message types.
const (
	MsgStep     = "step"
	MsgProgress = "progress"
	MsgMetric   = "metric"
	MsgSeek     = "seek"

	MsgPlan  = "plan"
	MsgOps   = "ops"
	MsgError = "error"
)

const (
	streamReadTimeout  = 2 * time.Minute
	streamWriteTimeout = 5 * time.Second
	streamMaxMessage   = 16 * 1024
)

// ClientMessage is one command on the stream. Index and Direction belong
// to step and seek, Progress to progress, Metric to metric.
type ClientMessage struct {
	Type      string  `json:"type"`
	Index     int     `json:"index,omitempty"`
	Direction string  `json:"direction,omitempty"`
	Progress  float64 `json:"progress,omitempty"`
	Metric    string  `json:"metric,omitempty"`
}

// ServerMessage answers a command. Plan answers step and metric, Ops
// answers progress and seek, Error answers anything that failed.
type ServerMessage struct {
	Type     string         `json:"type"`
	Plan     *PlanResponse  `json:"plan,omitempty"`
	Progress *float64       `json:"progress,omitempty"`
	Ops      []sink.Op      `json:"ops,omitempty"`
	Error    *ErrorResponse `json:"error,omitempty"`
}

// handleStream upgrades to a WebSocket bound to one session. The server
// first sends the ops that draw the session's current frame from nothing,
// then answers each client message in order.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(streamMaxMessage)

	ctx := r.Context()
	s.logger.Debug("stream opened", "session", sess.ID)

	// Seed the client with the current frame.
	_, _, t := sess.Position()
	frame, _ := sess.Progress(t)
	if err := writeMessage(conn, ServerMessage{Type: MsgOps, Progress: &t, Ops: sink.Diff(transition.Frame{}, frame)}); err != nil {
		return
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("stream closed", "session", sess.ID, "err", err)
			}
			break
		}

		// Every message counts as activity, and a session deleted or
		// expired meanwhile ends the stream.
		if _, err := s.store.Get(sess.ID); err != nil {
			_ = writeMessage(conn, errorMessage(err))
			break
		}

		var msg ClientMessage
		var reply ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			reply = errorMessage(errs.Wrap(errs.ErrCodeInvalidInput, err, "invalid message"))
		} else {
			observability.Server().OnStreamMessage(ctx, msg.Type)
			reply = s.handleMessage(sess, msg)
		}
		if err := writeMessage(conn, reply); err != nil {
			break
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
}

// handleMessage applies one client command to sess.
func (s *Server) handleMessage(sess *session.Session, msg ClientMessage) ServerMessage {
	switch msg.Type {
	case MsgStep:
		plan, err := playStep(sess, StepRequest{Index: msg.Index, Direction: msg.Direction})
		if err != nil {
			return errorMessage(err)
		}
		p := describePlan(sess, plan)
		return ServerMessage{Type: MsgPlan, Plan: &p}

	case MsgMetric:
		plan, err := sess.SetMetric(msg.Metric)
		if err != nil {
			return errorMessage(err)
		}
		p := describePlan(sess, plan)
		return ServerMessage{Type: MsgPlan, Plan: &p}

	case MsgProgress:
		t := msg.Progress
		frame, prev := sess.Progress(t)
		return ServerMessage{Type: MsgOps, Progress: &t, Ops: sink.Diff(prev, frame)}

	case MsgSeek:
		if err := sess.Seek(msg.Index); err != nil {
			return errorMessage(err)
		}
		t := 1.0
		frame, prev := sess.Progress(t)
		return ServerMessage{Type: MsgOps, Progress: &t, Ops: sink.Diff(prev, frame)}
	}
	return errorMessage(errs.New(errs.ErrCodeInvalidInput, "unknown message type %q", msg.Type))
}

func errorMessage(err error) ServerMessage {
	e := errorResponse(err)
	return ServerMessage{Type: MsgError, Error: &e}
}

func writeMessage(conn *websocket.Conn, msg ServerMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(msg)
}
