package server

import (
	"bufio"
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/hupe1980/ragmesh/engine"
	"github.com/hupe1980/ragmesh/guardrail"
	"github.com/hupe1980/ragmesh/routing"
)

// SSE event names.
const (
	EventRoute = "route"
	EventToken = "token"
	EventDone  = "done"
)

// RouteEvent announces what the answer will be built from.
type RouteEvent struct {
	InvocationID string            `json:"invocation_id"`
	SessionID    string            `json:"session_id"`
	Verdict      guardrail.Verdict `json:"verdict"`
	Route        *routing.Route    `json:"route,omitempty"`
	Sources      []string          `json:"sources"`
}

// TokenEvent carries one answer fragment.
type TokenEvent struct {
	Content string `json:"content"`
}

// DoneEvent closes the stream.
type DoneEvent struct {
	InvocationID string `json:"invocation_id"`
	SessionID    string `json:"session_id"`
}

// streamMessage answers over Server-Sent Events:
//
//	event: route  data: {"verdict":{...},"route":{...},"sources":[...]}
//	event: token  data: {"content":"..."}
//	event: done   data: {"invocation_id":"...","session_id":"..."}
func (s *Server) streamMessage(c *fiber.Ctx) error {
	sessionID, query, err := s.parseMessage(c)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// The writer runs after the handler returns; c must not be used inside it.
	logger := s.opts.Logger
	svc := s.svc
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		res, frags := svc.Stream(ctx, sessionID, query)
		drain := func() {
			cancel()
			for range frags {
			}
		}

		if err := writeEvent(w, EventRoute, routeEvent(res)); err != nil {
			logger.Debug("Stream client gone", "session_id", sessionID, "error", err.Error())
			drain()
			return
		}
		for f := range frags {
			if err := writeEvent(w, EventToken, TokenEvent{Content: f}); err != nil {
				logger.Debug("Stream client gone", "session_id", sessionID, "error", err.Error())
				drain()
				return
			}
		}
		_ = writeEvent(w, EventDone, DoneEvent{InvocationID: res.InvocationID, SessionID: res.SessionID})
	})
	return nil
}

func routeEvent(res engine.Result) RouteEvent {
	return RouteEvent{
		InvocationID: res.InvocationID,
		SessionID:    res.SessionID,
		Verdict:      res.Verdict,
		Route:        res.Route,
		Sources:      res.Sources,
	}
}
