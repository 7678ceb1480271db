package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Sternrassler/comics-catalog-client/pkg/detail"
	"github.com/spf13/cobra"
)

func newDetailCmd(opts *options) *cobra.Command {
	var (
		concurrency int
		progress    bool
	)

	cmd := &cobra.Command{
		Use:   "detail <id>",
		Short: "Show a comic with its creator and cover variants",
		Long: `Loads the comic, then fetches its creator and every cover variant
concurrently. Failed related fetches are reported but do not fail the
command.`,
		Example: `  comics detail 1689
  comics detail 1689 --progress --concurrency 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if concurrency < 0 {
				return fmt.Errorf("--concurrency must be >= 0 (got %d)", concurrency)
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				cl, err := a.catalogClient(ctx)
				if err != nil {
					return err
				}

				cfg := detail.DefaultConfig()
				cfg.MaxConcurrency = concurrency
				session := detail.NewCoordinator(cl, cfg).LoadByID(ctx, id)
				defer session.Close()

				var final detail.Bundle
				for b := range session.Updates() {
					if progress && !b.Settled {
						fmt.Fprintf(cmd.ErrOrStderr(), "%d/%d related resources resolved\n", len(b.Fetches)-b.Pending(), len(b.Fetches))
					}
					final = b
				}
				if final.Err != nil {
					return final.Err
				}

				favs, err := a.favorites()
				if err != nil {
					return err
				}
				favorite, err := favs.IsFavorite(ctx, id)
				if err != nil {
					return err
				}

				printBundle(cmd.OutOrStdout(), final, favorite)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum concurrent related fetches (0 = unlimited)")
	cmd.Flags().BoolVar(&progress, "progress", false, "Print progress while related resources load")

	return cmd
}

func printBundle(w io.Writer, b detail.Bundle, favorite bool) {
	item := b.Primary
	fmt.Fprintf(w, "#%d %s\n", item.ID, item.Title)
	if item.Description != "" {
		fmt.Fprintf(w, "%s\n", item.Description)
	}
	fmt.Fprintf(w, "\nThumbnail: %s\n", item.Thumbnail.ResolvedURL())
	fmt.Fprintf(w, "Favorite:  %s\n", yesNo(favorite))

	switch {
	case b.Creator != nil:
		fmt.Fprintf(w, "Creator:   %s\n", b.Creator.FullName)
	case b.CreatorError != "":
		fmt.Fprintf(w, "Creator:   unavailable (%s)\n", b.CreatorError)
	}

	fmt.Fprintf(w, "\nVariants (%d):\n", len(b.Variants))
	for _, v := range b.Variants {
		fmt.Fprintf(w, "  %d  %s\n", v.ID, v.Title)
	}

	var failed int
	for _, f := range b.Failed() {
		if f.Kind != detail.KindVariant {
			continue
		}
		if failed == 0 {
			fmt.Fprintln(w, "\nFailed variants:")
		}
		failed++
		fmt.Fprintf(w, "  %s: %s\n", f.URI, f.Error)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
