package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	orchestratorx "github.com/tanpawarit/bitebot/agent/agents/orchestrator"
)

type turnRunner interface {
	HandleTurn(ctx context.Context, req orchestratorx.TurnRequest) (orchestratorx.TurnResult, error)
	Reset(ctx context.Context, sessionID string, snap orchestratorx.Snapshot) (orchestratorx.Snapshot, error)
}

func newChatCmd() *cobra.Command {
	var files dataFiles

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			a, err := buildApp(ctx, files)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			return runREPL(ctx, a.orchestrator, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&files.restaurants, "restaurants", "", "Yelp business JSONL used when DATABASE_URL is not set")
	cmd.Flags().StringVar(&files.reviews, "reviews", "", "Yelp review JSONL used with --restaurants")
	return cmd
}

// runREPL reads one message per line. "/reset" starts over, "/reservations"
// lists what was booked, "/quit" exits.
func runREPL(ctx context.Context, turns turnRunner, in io.Reader, out io.Writer) error {
	sessionID := uuid.NewString()
	snap := orchestratorx.Snapshot{ThreadID: sessionID}

	fmt.Fprintln(out, "BiteBot here. Ask me about restaurants or reservations. /quit to leave.")
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			fresh, err := turns.Reset(ctx, sessionID, snap)
			if err != nil {
				fmt.Fprintf(out, "(reset incomplete: %v)\n", err)
			}
			snap = fresh
			fmt.Fprintln(out, "Starting over.")
			continue
		case "/reservations":
			if len(snap.Reservations) == 0 {
				fmt.Fprintln(out, "No reservations yet.")
			}
			for _, r := range snap.Reservations {
				fmt.Fprintln(out, r.Summary())
			}
			continue
		}

		res, err := turns.HandleTurn(ctx, orchestratorx.TurnRequest{
			SessionID: sessionID,
			Message:   line,
			Snapshot:  snap,
		})
		if err != nil {
			return err
		}
		snap = res.Snapshot
		fmt.Fprintln(out, res.Reply)

		if ctx.Err() != nil {
			return nil
		}
	}
}
