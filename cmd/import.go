package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	restaurantx "github.com/tanpawarit/bitebot/agent/restaurant"
	reviewsx "github.com/tanpawarit/bitebot/agent/reviews"
	configx "github.com/tanpawarit/bitebot/pkg/config"
	postgresx "github.com/tanpawarit/bitebot/pkg/postgres"
)

func newImportYelpCmd() *cobra.Command {
	var (
		files     dataFiles
		batchSize int
		workers   int
		noEmbed   bool
	)

	cmd := &cobra.Command{
		Use:   "import-yelp",
		Short: "Load Yelp dataset restaurants and reviews into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(files.restaurants) == "" {
				return fmt.Errorf("--restaurants is required")
			}
			if batchSize <= 0 {
				batchSize = 500
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			dbCfg, err := configx.New[postgresx.Config]("DATABASE")
			if err != nil {
				return err
			}
			db, err := postgresx.Open(ctx, *dbCfg)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := restaurantx.NewBunRepository(db)
			if err := repo.CreateSchema(ctx); err != nil {
				return err
			}

			f, err := os.Open(files.restaurants)
			if err != nil {
				return fmt.Errorf("open restaurants file: %w", err)
			}
			items, err := restaurantx.LoadYelpJSONL(f)
			f.Close()
			if err != nil {
				return err
			}
			for start := 0; start < len(items); start += batchSize {
				end := min(start+batchSize, len(items))
				if err := repo.Upsert(ctx, items[start:end]); err != nil {
					return err
				}
			}
			log.Info().Int("restaurants", len(items)).Msg("restaurants imported")

			if strings.TrimSpace(files.reviews) == "" {
				return nil
			}

			var embedder reviewsx.Embedder
			if !noEmbed {
				if embedder, err = newEmbedder(); err != nil {
					return err
				}
			}
			searcher := reviewsx.NewPGVectorSearcher(db, embedder)
			if err := searcher.CreateSchema(ctx); err != nil {
				return err
			}

			return scanReviewsFile(files.reviews, businessIDs(items), func(rows []reviewsx.Review) error {
				if err := embedReviews(ctx, embedder, rows, workers); err != nil {
					return err
				}
				return searcher.Upsert(ctx, rows)
			})
		},
	}

	cmd.Flags().StringVar(&files.restaurants, "restaurants", "", "Yelp business JSONL file")
	cmd.Flags().StringVar(&files.reviews, "reviews", "", "Yelp review JSONL file")
	cmd.Flags().IntVar(&batchSize, "batch", 500, "rows per insert")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent embedding requests")
	cmd.Flags().BoolVar(&noEmbed, "no-embed", false, "skip review embeddings")
	return cmd
}

// embedReviews fills Embedding in place. A nil embedder leaves rows as they
// are.
func embedReviews(ctx context.Context, embedder reviewsx.Embedder, rows []reviewsx.Review, workers int) error {
	if embedder == nil || len(rows) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}

	p := pool.New().WithMaxGoroutines(workers).WithErrors().WithContext(ctx).WithCancelOnError()
	for i := range rows {
		p.Go(func(ctx context.Context) error {
			vec, err := embedder.Embed(ctx, rows[i].Text)
			if err != nil {
				return fmt.Errorf("embed review_id=%s: %w", rows[i].ReviewID, err)
			}
			rows[i].Embedding = vec
			return nil
		})
	}
	return p.Wait()
}
