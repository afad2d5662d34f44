package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yangatekane/bh-ea-dashboard/internal/ert"
	"github.com/yangatekane/bh-ea-dashboard/internal/logger"
	"github.com/yangatekane/bh-ea-dashboard/internal/narrative"
	"github.com/yangatekane/bh-ea-dashboard/internal/session"
	"github.com/yangatekane/bh-ea-dashboard/internal/storage"
	"github.com/yangatekane/bh-ea-dashboard/internal/web"
)

var (
	serveAddr          string
	servePruneInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			c.Server.Addr = serveAddr
		}
		log, err := newLogger(c)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := session.Open(c.Session)
		if err != nil {
			return err
		}
		defer store.Close()

		narrator, err := narrative.FromConfig(c.Narrative, c.HTTP, log)
		if errors.Is(err, narrative.ErrNotConfigured) {
			log.Info("AI narrative disabled", "reason", err.Error())
			narrator = nil
		} else if err != nil {
			return err
		}
		defer narrator.Close()

		publisher, err := storage.Open(ctx, c.Storage, c.Server.PublicBaseURL)
		if err != nil {
			return err
		}

		srv, err := web.New(web.Deps{
			Config:    c,
			Store:     store,
			ERT:       ert.New(c.ERT.InversionCommand, c.ERT.TimeoutSec, log),
			Narrator:  narrator,
			Publisher: publisher,
			Log:       log,
		})
		if err != nil {
			return err
		}

		go pruneLoop(ctx, srv, servePruneInterval, log)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().DurationVar(&servePruneInterval, "prune-interval", time.Hour, "how often expired sessions are removed (0 disables)")
}

func pruneLoop(ctx context.Context, srv *web.Server, every time.Duration, log *logger.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		n, err := srv.PruneExpired(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn("session prune failed", "error", err)
		case n > 0:
			log.Info("expired sessions pruned", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
