package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanpawarit/bitebot/api"
	configx "github.com/tanpawarit/bitebot/pkg/config"
)

func newServeCmd() *cobra.Command {
	var (
		files dataFiles
		addr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configx.New[api.Config]("APP")
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := buildApp(ctx, files)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				a.Close(shutdownCtx)
			}()

			hashKey, blockKey, err := api.CookieKeys(*cfg)
			if err != nil {
				return err
			}
			srv := api.NewServer(a.orchestrator, api.NewCookieStore(hashKey, blockKey, cfg.CookieSecure), *cfg)
			return api.Start(ctx, cfg.Addr, srv.Routes())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides APP_ADDR")
	cmd.Flags().StringVar(&files.restaurants, "restaurants", "", "Yelp business JSONL used when DATABASE_URL is not set")
	cmd.Flags().StringVar(&files.reviews, "reviews", "", "Yelp review JSONL used with --restaurants")
	return cmd
}
