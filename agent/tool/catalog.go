package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	bookingx "github.com/tanpawarit/bitebot/agent/booking"
	contractx "github.com/tanpawarit/bitebot/agent/contract"
	restaurantx "github.com/tanpawarit/bitebot/agent/restaurant"
	reviewsx "github.com/tanpawarit/bitebot/agent/reviews"
	sessionx "github.com/tanpawarit/bitebot/agent/session"
)

const (
	ToolSearchRestaurants    = "search_restaurants"
	ToolGetRestaurantDetails = "get_restaurant_details"
	ToolCheckAvailability    = "check_availability"
	ToolMakeReservation      = "make_reservation"
	ToolGetRestaurantReviews = "get_restaurant_reviews"

	ToolViewReservation   = "view_reservation"
	ToolModifyReservation = "modify_reservation"
	ToolCancelReservation = "cancel_reservation"
)

var tracer = otel.Tracer("github.com/tanpawarit/bitebot/agent/tool")

// Deps are the collaborators the tools call into. Reviews may be nil.
type Deps struct {
	Restaurants restaurantx.Lookup
	Reviews     reviewsx.Searcher
	Store       *sessionx.Store
	Checker     *bookingx.Checker
	Committer   *bookingx.Committer
	Ledger      *bookingx.Ledger
	Now         func() time.Time
}

type handler struct {
	agent contractx.AgentType
	info  *schema.ToolInfo
	hint  string
	run   func(ctx context.Context, sessionID string, raw string) (string, error)
}

// Catalog is the ToolGateway for both workflows.
type Catalog struct {
	deps     Deps
	handlers map[string]handler
	order    []string
}

var _ contractx.ToolGateway = (*Catalog)(nil)

func NewCatalog(deps Deps) *Catalog {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	c := &Catalog{deps: deps, handlers: make(map[string]handler)}
	c.registerDiscovery()
	c.registerSupport()
	return c
}

func (c *Catalog) register(h handler) {
	c.handlers[h.info.Name] = h
	c.order = append(c.order, h.info.Name)
}

// Infos returns the tool definitions bound to agentType's model.
func (c *Catalog) Infos(agentType contractx.AgentType) []*schema.ToolInfo {
	var out []*schema.ToolInfo
	for _, name := range c.order {
		if h := c.handlers[name]; h.agent == agentType {
			out = append(out, h.info)
		}
	}
	return out
}

// Execute runs one tool call for sessionID. Argument and domain failures come
// back as ToolResult.Error so the model can correct itself.
func (c *Catalog) Execute(
	ctx context.Context,
	agentType contractx.AgentType,
	sessionID string,
	req contractx.ToolRequest,
) (contractx.ToolResult, error) {
	result := contractx.ToolResult{CallID: req.CallID, Tool: req.Tool}

	ctx, span := tracer.Start(ctx, "tool."+req.Tool,
		trace.WithAttributes(
			attribute.String("tool.name", req.Tool),
			attribute.String("agent.type", string(agentType)),
			attribute.String("session.id", sessionID),
		),
	)
	defer span.End()

	h, ok := c.handlers[req.Tool]
	if !ok || h.agent != agentType {
		result.Error = fmt.Sprintf("tool=%s is unavailable for agent=%s", req.Tool, agentType)
		span.SetStatus(codes.Error, "tool unavailable")
		return result, nil
	}

	content, err := h.run(ctx, sessionID, req.Arguments)
	logger := log.With().Str("session_id", sessionID).Str("tool", req.Tool).Logger()
	if err == nil {
		result.Content = content
		logger.Debug().Msg("tool call succeeded")
		return result, nil
	}

	var be *bookingx.Error
	switch {
	case errors.As(err, &be):
		result.Error = be.Message
		span.SetAttributes(attribute.String("booking.code", string(be.Code)))
		logger.Info().Str("code", string(be.Code)).Msg("tool call rejected")
	case errors.Is(err, contractx.ErrToolArguments):
		result.Error = err.Error()
		if h.hint != "" {
			result.Error += ". " + h.hint
		}
		logger.Warn().Err(err).Msg("tool call arguments rejected")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Msg("tool call failed")
		return result, fmt.Errorf("tool %s: %w", req.Tool, err)
	}
	span.SetStatus(codes.Error, result.Error)
	return result, nil
}

// decodeArgs decodes raw into T. Unknown fields and ill-typed values fail.
func decodeArgs[T any](tool, raw string) (T, error) {
	var out T
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("%w for %s: %v", contractx.ErrToolArguments, tool, err)
	}
	if dec.More() {
		return out, fmt.Errorf("%w for %s: trailing data", contractx.ErrToolArguments, tool)
	}
	return out, nil
}

func missingArg(tool, name string) error {
	return fmt.Errorf("%w for %s: %s is required", contractx.ErrToolArguments, tool, name)
}
