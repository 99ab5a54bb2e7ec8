package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hearthkeep/hearth/internal/api"
	"github.com/hearthkeep/hearth/internal/infra/rates"
	"github.com/hearthkeep/hearth/internal/infra/sqlite"
)

// Run starts the Hearth daemon and blocks until the listener stops or
// ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := sqlite.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if cfg.Rates.APIURL != "" {
		refresher := rates.NewRefresher(rates.NewClient(cfg.Rates.APIURL), db, cfg.Rates.RefreshInterval())
		go refresher.Run(ctx)
	}

	server := api.NewServer(db)
	if cfg.Metrics.Enabled {
		server.EnableMetrics()
	}

	httpServer := &http.Server{
		Addr:    cfg.API.Addr(),
		Handler: server.Handler(),
	}
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	log.Printf("hearth: listening on %s (db %s)", cfg.API.Addr(), cfg.DB.Path)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
