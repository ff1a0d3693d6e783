package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	bookingx "github.com/tanpawarit/bitebot/agent/booking"
	contractx "github.com/tanpawarit/bitebot/agent/contract"
	sessionx "github.com/tanpawarit/bitebot/agent/session"
)

type confirmationArgs struct {
	ConfirmationNumber string `json:"confirmation_number"`
}

type modifyArgs struct {
	ConfirmationNumber string `json:"confirmation_number"`
	NewDate            string `json:"new_date"`
	NewTime            string `json:"new_time"`
	NewPartySize       int    `json:"new_party_size"`
}

func (c *Catalog) registerSupport() {
	confirmation := &schema.ParameterInfo{
		Type: schema.String,
		Desc: "8-character confirmation number; omit when the user has a single reservation",
	}

	c.register(handler{
		agent: contractx.AgentTypeSupport,
		info: &schema.ToolInfo{
			Name: ToolViewReservation,
			Desc: "Show a reservation by confirmation number, or list every reservation made in this conversation.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"confirmation_number": confirmation,
			}),
		},
		run: c.viewReservation,
	})

	c.register(handler{
		agent: contractx.AgentTypeSupport,
		info: &schema.ToolInfo{
			Name: ToolModifyReservation,
			Desc: "Change the date, time or party size of a reservation. The new slot is checked against the restaurant's hours.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"confirmation_number": confirmation,
				"new_date":            {Type: schema.String, Desc: "New date in the user's words"},
				"new_time":            {Type: schema.String, Desc: "New time in the user's words"},
				"new_party_size":      {Type: schema.Integer, Desc: "New number of guests"},
			}),
		},
		run: c.modifyReservation,
	})

	c.register(handler{
		agent: contractx.AgentTypeSupport,
		info: &schema.ToolInfo{
			Name: ToolCancelReservation,
			Desc: "Cancel a reservation.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"confirmation_number": confirmation,
			}),
		},
		run: c.cancelReservation,
	})
}

func (c *Catalog) viewReservation(_ context.Context, sessionID string, raw string) (string, error) {
	args, err := decodeArgs[confirmationArgs](ToolViewReservation, raw)
	if err != nil {
		return "", err
	}
	list := bookingx.Held(c.deps.Store, sessionID)

	if strings.TrimSpace(args.ConfirmationNumber) != "" {
		r, err := c.deps.Ledger.Select(list, args.ConfirmationNumber)
		if err != nil {
			return "", err
		}
		return describeReservation(r), nil
	}

	if len(list) == 0 {
		_, err := c.deps.Ledger.Select(nil, "")
		return "", err
	}
	if len(list) == 1 {
		return describeReservation(list[0]), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d reservations in this conversation:\n", len(list))
	for _, r := range list {
		fmt.Fprintf(&sb, "- %s\n", r.Summary())
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (c *Catalog) modifyReservation(ctx context.Context, sessionID string, raw string) (string, error) {
	args, err := decodeArgs[modifyArgs](ToolModifyReservation, raw)
	if err != nil {
		return "", err
	}

	var updated bookingx.Reservation
	err = c.deps.Store.Update(sessionID, func(b sessionx.Bag) error {
		list, _ := b[bookingx.KeyReservations].([]bookingx.Reservation)
		next, r, err := c.deps.Ledger.Modify(ctx, list, bookingx.ModifyRequest{
			ConfirmationNumber: args.ConfirmationNumber,
			Date:               args.NewDate,
			Time:               args.NewTime,
			PartySize:          args.NewPartySize,
		})
		if err != nil {
			return err
		}
		b[bookingx.KeyReservations] = next
		updated = r
		return nil
	})
	if err != nil {
		return "", err
	}
	return "Reservation updated.\n" + describeReservation(updated), nil
}

func (c *Catalog) cancelReservation(_ context.Context, sessionID string, raw string) (string, error) {
	args, err := decodeArgs[confirmationArgs](ToolCancelReservation, raw)
	if err != nil {
		return "", err
	}

	var cancelled bookingx.Reservation
	err = c.deps.Store.Update(sessionID, func(b sessionx.Bag) error {
		list, _ := b[bookingx.KeyReservations].([]bookingx.Reservation)
		next, r, err := c.deps.Ledger.Cancel(list, args.ConfirmationNumber)
		if err != nil {
			return err
		}
		b[bookingx.KeyReservations] = next
		cancelled = r
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Reservation %s at %s on %s has been cancelled.",
		cancelled.ReservationID, cancelled.RestaurantName, bookingx.FormatDate(cancelled.Date)), nil
}

func describeReservation(r bookingx.Reservation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Confirmation number: %s\n", r.ReservationID)
	fmt.Fprintf(&sb, "Restaurant: %s\n", r.RestaurantName)
	if r.Address != "" {
		fmt.Fprintf(&sb, "Address: %s\n", r.Address)
	}
	fmt.Fprintf(&sb, "Date: %s\n", bookingx.FormatDate(r.Date))
	fmt.Fprintf(&sb, "Time: %s\n", bookingx.FormatClock(r.Time))
	fmt.Fprintf(&sb, "Party size: %d\n", r.PartySize)
	fmt.Fprintf(&sb, "Name: %s\n", r.CustomerName)
	if r.CustomerPhone != "" {
		fmt.Fprintf(&sb, "Phone: %s\n", r.CustomerPhone)
	}
	if r.SpecialRequests != "" {
		fmt.Fprintf(&sb, "Special requests: %s\n", r.SpecialRequests)
	}
	fmt.Fprintf(&sb, "Status: %s", r.Status)
	return sb.String()
}
