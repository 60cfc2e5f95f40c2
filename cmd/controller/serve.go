package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/httpapi"
)

// #region serve

// runServe serves the HTTP surface until interrupted. An ended conversation keeps
// answering reads.
func runServe(ctx context.Context, rt *runtime) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := httpapi.New(rt.cfg.Addr(), rt.session)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-rt.session.Done():
			st := rt.session.State()
			log.Info().Str("reason", string(st.EndReason)).Int("engagement", st.Score.Engagement).Msg("conversation ended, server stays up for inspection")
		case <-gctx.Done():
		}
		return nil
	})

	err := g.Wait()
	log.Info().Msg("controller stopped")
	return err
}

// #endregion serve
