package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/recall/internal/protocol"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 120 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "chat backend not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 16)
	outbound := make(chan any, 16)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		defer close(outbound)
		s.runConnection(ctx, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ping := time.NewTicker(s.pingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					cancel()
					_ = conn.Close()
					return
				}
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(msg); err != nil {
					s.logger.Warn("websocket write failed", "err", err)
					cancel()
					_ = conn.Close()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.ObserveWSMessage("outbound", string(t))
				}
			}
		}
	}()

	conn.SetReadLimit(maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			parsed = protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Source: "gateway",
				Detail: err.Error(),
			}
		} else if t, ok := messageTypeOf(parsed); ok {
			s.metrics.ObserveWSMessage("inbound", string(t))
		}

		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
}

// runConnection handles one socket's messages in arrival order, so turns on
// a connection never overlap.
func (s *Server) runConnection(ctx context.Context, inbound <-chan any, outbound chan<- any) {
	send := func(msg any) bool {
		select {
		case <-ctx.Done():
			return false
		case outbound <- msg:
			return true
		}
	}

	for msg := range inbound {
		var out any
		switch m := msg.(type) {
		case protocol.ChatRequest:
			out = s.wsChat(ctx, m)
		case protocol.ClearRequest:
			out = s.wsClear(ctx, m)
		case protocol.ErrorEvent:
			out = m
		default:
			continue
		}
		if !send(out) {
			return
		}
	}
}

func (s *Server) wsChat(ctx context.Context, m protocol.ChatRequest) any {
	if err := validateTurn(m.SessionID, m.Message); err != nil {
		return protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: m.SessionID,
			Code:      "invalid_request",
			Source:    "gateway",
			Detail:    err.Error(),
		}
	}
	reply, err := s.runTurn(ctx, m.SessionID, m.Message)
	if err != nil {
		return s.errorEvent(m.SessionID, err)
	}
	reply.Type = protocol.TypeChatReply
	reply.SessionID = m.SessionID
	return reply
}

func (s *Server) wsClear(ctx context.Context, m protocol.ClearRequest) any {
	if err := s.clear(ctx, m.SessionID); err != nil {
		return s.errorEvent(m.SessionID, err)
	}
	return protocol.Cleared{Type: protocol.TypeCleared, SessionID: m.SessionID, OK: true}
}

func (s *Server) errorEvent(sessionID string, err error) protocol.ErrorEvent {
	status, code, msg := s.classifyError(err)
	return protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      code,
		Source:    "chat",
		Retryable: status == http.StatusServiceUnavailable,
		Detail:    msg,
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ChatRequest:
		return m.Type, true
	case protocol.ClearRequest:
		return m.Type, true
	case protocol.ChatReply:
		return m.Type, true
	case protocol.Cleared:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
