package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Sternrassler/comics-catalog-client/internal/config"
	"github.com/Sternrassler/comics-catalog-client/pkg/logging"
	"github.com/spf13/cobra"
)

// options are shared by all subcommands.
type options struct {
	configPath string
	envFiles   []string

	// httpClient replaces the catalog transport (tests only)
	httpClient *http.Client
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comics",
		Short: "Browse the comics catalog from the terminal",
		Long: `Comics browses a paginated comics catalog API.

It lists comics page by page with an optional title filter, loads a comic
together with its creator and cover variants, and keeps a local list of
favorites. Credentials are read from CATALOG_PUBLIC_KEY and
CATALOG_PRIVATE_KEY (a .env file in the working directory is honored).`,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, ".env files to load (missing files are skipped)")

	cmd.AddCommand(
		newListCmd(opts),
		newDetailCmd(opts),
		newFavoritesCmd(opts),
		newMetricsCmd(opts),
	)

	return cmd
}

// withApp loads the configuration, sets up logging and runs fn with a
// freshly wired app that is released afterwards.
func withApp(cmd *cobra.Command, opts *options, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load(opts.configPath, opts.envFiles...)
	if err != nil {
		return err
	}

	logCfg := cfg.Logging()
	logCfg.Output = cmd.ErrOrStderr()
	logging.Setup(logCfg)

	a := newApp(cfg, opts.httpClient)
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to release resources")
		}
	}()

	return fn(cmd.Context(), a)
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid comic id %q", raw)
	}
	return id, nil
}
