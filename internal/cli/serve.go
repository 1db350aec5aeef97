package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"meal-planner/internal/server"
	"meal-planner/internal/telegram"

	"github.com/spf13/cobra"
)

const webhookPath = "/telegram/webhook"

var syncInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		srvOpts := []server.Option{
			server.WithDataDir(rt.cfg.DataDir),
			server.WithSyncHistory(rt.metrics),
		}
		var bot *telegram.Bot
		if rt.notifier != nil {
			bot = telegram.NewBot(rt.notifier, rt.app, rt.metrics, rt.cfg.DataDir)
			srvOpts = append(srvOpts, server.WithWebhook(webhookPath, bot.HandleWebhook))
			if rt.cfg.TelegramWebhookURL != "" {
				if err := bot.SetWebhook(rt.cfg.TelegramWebhookURL); err != nil {
					return err
				}
			}
		}
		srv := server.New(rt.app, rt.logger, srvOpts...)
		httpSrv := &http.Server{
			Addr:              ":" + rt.cfg.Port,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if syncInterval > 0 {
			go rt.syncLoop(ctx, syncInterval)
		}

		errCh := make(chan error, 1)
		go func() {
			rt.logger.Info("HTTP server listening", "port", rt.cfg.Port)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		rt.logger.Info("shutting down server")

		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctxShutdown); err != nil {
			return err
		}
		if bot != nil {
			bot.Wait()
		}
		rt.logger.Info("server exiting")
		return nil
	},
}

func init() {
	serveCmd.Flags().DurationVar(&syncInterval, "sync-interval", 0, "Sync inventory in the background at this interval (0 disables)")
}

// syncLoop refreshes the snapshot store until ctx is done. Failures are
// logged by the syncer and retried on the next tick.
func (rt *runtime) syncLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = rt.app.Sync(ctx)
		}
	}
}
