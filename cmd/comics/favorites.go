package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newFavoritesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"fav"},
		Short:   "Manage the local favorites list",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List favorites, most recently saved first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					favs, err := a.favorites()
					if err != nil {
						return err
					}
					items, err := favs.List(ctx)
					if err != nil {
						return err
					}
					if len(items) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No favorites yet.")
						return nil
					}
					printItems(cmd.OutOrStdout(), items)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "add <id>",
			Short: "Fetch a comic and save it as favorite",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					cl, err := a.catalogClient(ctx)
					if err != nil {
						return err
					}
					item, err := cl.FetchComic(ctx, id)
					if err != nil {
						return err
					}
					favs, err := a.favorites()
					if err != nil {
						return err
					}
					if err := favs.Add(ctx, *item); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Saved #%d %s\n", item.ID, item.Title)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:     "remove <id>",
			Aliases: []string{"rm"},
			Short:   "Remove a favorite",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					favs, err := a.favorites()
					if err != nil {
						return err
					}
					if err := favs.Remove(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed #%d\n", id)
					return nil
				})
			},
		},
	)

	return cmd
}
