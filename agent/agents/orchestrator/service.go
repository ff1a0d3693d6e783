// Package orchestrator runs one conversation turn: route the message, run
// the chosen workflow and hand the session snapshot back to the caller.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	bookingx "github.com/tanpawarit/bitebot/agent/booking"
	contractx "github.com/tanpawarit/bitebot/agent/contract"
	memoryx "github.com/tanpawarit/bitebot/agent/memory"
	nodex "github.com/tanpawarit/bitebot/agent/nodes"
	sessionx "github.com/tanpawarit/bitebot/agent/session"
)

var (
	ErrInvalidMessage = contractx.ErrInvalidMessage
	ErrInvalidSession = contractx.ErrInvalidSession
)

const DefaultApology = "Sorry, something went wrong on my side. Please try that again in a moment."

var tracer = otel.Tracer("github.com/tanpawarit/bitebot/agent/agents/orchestrator")

type Snapshot = nodex.Snapshot

type TurnRequest struct {
	SessionID string
	Message   string
	Snapshot  Snapshot
}

type TurnResult struct {
	Reply    string
	Snapshot Snapshot
	// Committed lists the reservations confirmed during this turn.
	Committed []bookingx.Reservation
	Route     contractx.RouteDecision
	// Failed is set when the turn was discarded and Reply is an apology.
	Failed bool
}

type Config struct {
	Apology string
	Now     func() time.Time
}

type Orchestrator struct {
	sessions *sessionx.Store
	agents   contractx.Registry
	memory   contractx.Checkpointer

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	apology string
	now     func() time.Time
}

func New(
	sessions *sessionx.Store,
	agents contractx.Registry,
	memory contractx.Checkpointer,
	cfg Config,
) (*Orchestrator, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if agents == nil {
		return nil, errors.New("agent registry is required")
	}
	if memory == nil {
		memory = memoryx.NewInMemory()
	}

	o := &Orchestrator{
		sessions: sessions,
		agents:   agents,
		memory:   memory,
		apology:  strings.TrimSpace(cfg.Apology),
		now:      cfg.Now,
	}
	if o.apology == "" {
		o.apology = DefaultApology
	}
	if o.now == nil {
		o.now = time.Now
	}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleTurn answers one user message. Only invalid input is returned as an
// error; any other failure rolls the session back and yields an apology with
// the caller's snapshot unchanged.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return TurnResult{}, ErrInvalidSession
	}
	if strings.TrimSpace(req.Message) == "" {
		return TurnResult{}, ErrInvalidMessage
	}

	ctx, span := tracer.Start(ctx, "orchestrator.handle_turn",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	before := o.sessions.Snapshot(sessionID)
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Message:   req.Message,
		Snapshot:  req.Snapshot,
	})
	if err != nil {
		o.sessions.Restore(sessionID, before)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Str("session_id", sessionID).Msg("turn failed")

		snap := req.Snapshot
		if strings.TrimSpace(snap.ThreadID) == "" {
			snap.ThreadID = sessionID
		}
		return TurnResult{Reply: o.apology, Snapshot: snap, Failed: true}, nil
	}

	span.SetAttributes(
		attribute.String("route.agent", string(out.Route.Agent)),
		attribute.Bool("route.fallback", out.Route.Fallback),
		attribute.Int("reservations.committed", len(out.Committed)),
	)
	log.Info().
		Str("session_id", sessionID).
		Str("agent", string(out.Route.Agent)).
		Bool("fallback", out.Route.Fallback).
		Int("committed", len(out.Committed)).
		Msg("turn handled")

	return TurnResult{
		Reply:     out.Reply,
		Snapshot:  out.Snapshot,
		Committed: out.Committed,
		Route:     out.Route,
	}, nil
}

// Reset drops the session bag and both workflow histories of the thread. The
// returned snapshot starts a fresh thread.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string, snap Snapshot) (Snapshot, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Snapshot{}, ErrInvalidSession
	}
	o.sessions.Reset(sessionID)

	threadID := strings.TrimSpace(snap.ThreadID)
	if threadID == "" {
		threadID = sessionID
	}
	var errs []error
	for _, agent := range []contractx.AgentType{contractx.AgentTypeDiscovery, contractx.AgentTypeSupport} {
		if err := o.memory.Delete(ctx, nodex.HistoryThread(threadID, agent)); err != nil {
			errs = append(errs, fmt.Errorf("delete %s history: %w", agent, err))
		}
	}

	fresh := Snapshot{ThreadID: uuid.NewString()}
	if err := errors.Join(errs...); err != nil {
		return fresh, err
	}
	log.Info().Str("session_id", sessionID).Str("thread_id", fresh.ThreadID).Msg("session reset")
	return fresh, nil
}
