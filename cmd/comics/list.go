package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Sternrassler/comics-catalog-client/pkg/catalog"
	"github.com/Sternrassler/comics-catalog-client/pkg/pagination"
	"github.com/Sternrassler/comics-catalog-client/pkg/search"
	"github.com/spf13/cobra"
)

func newListCmd(opts *options) *cobra.Command {
	var (
		offset int
		limit  int
		pages  int
		query  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List comics page by page",
		Long: `Loads one or more pages of the catalog listing into a de-duplicated
collection and prints it. With --query only comics whose title contains
the query (case-insensitive) are shown.`,
		Example: `  # First page with the configured page size
  comics list

  # Three pages of 50, filtered by title
  comics list --limit 50 --pages 3 --query spider`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if offset < 0 {
				return fmt.Errorf("--offset must be >= 0 (got %d)", offset)
			}
			if limit < 0 {
				return fmt.Errorf("--limit must be >= 0 (got %d)", limit)
			}
			if pages < 1 {
				return fmt.Errorf("--pages must be >= 1 (got %d)", pages)
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				cl, err := a.catalogClient(ctx)
				if err != nil {
					return err
				}

				pageSize := limit
				if pageSize == 0 {
					pageSize = a.cfg.Catalog.PageSize
				}
				coll, err := pagination.New(offsetFetcher{start: offset, pages: cl}, pagination.Config{
					PageSize:     pageSize,
					FetchTimeout: a.cfg.Catalog.Timeout,
				})
				if err != nil {
					return err
				}
				defer coll.Close()

				var state pagination.State
				for i := 0; i < pages; i++ {
					state, err = coll.LoadNextPage(ctx)
					if err != nil {
						return err
					}
					if state.EndReached {
						break
					}
				}

				if query != "" {
					if state, err = applyQuery(ctx, coll, query, a.cfg.Search.Debounce); err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				printItems(out, state.Filtered)
				fmt.Fprintf(out, "\n%d of %d comics shown (next offset %d", len(state.Filtered), len(state.Items), offset+state.Offset)
				if state.EndReached {
					fmt.Fprint(out, ", end of catalog")
				}
				fmt.Fprintln(out, ")")
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Offset of the first page")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Page size (default from config)")
	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "Number of pages to load")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Title filter")

	return cmd
}

// offsetFetcher shifts every page request by a fixed starting offset.
type offsetFetcher struct {
	start int
	pages pagination.PageFetcher
}

func (f offsetFetcher) FetchPage(ctx context.Context, offset, limit int) ([]catalog.Item, error) {
	return f.pages.FetchPage(ctx, f.start+offset, limit)
}

// applyQuery feeds query through a debouncer into the collection filter and
// waits for it to be applied.
func applyQuery(ctx context.Context, coll *pagination.Collection, query string, delay time.Duration) (pagination.State, error) {
	applied := make(chan struct{}, 1)
	debouncer := search.New(func(q string) {
		coll.ApplyQuery(q)
		select {
		case applied <- struct{}{}:
		default:
		}
	}, search.Config{Delay: delay})
	defer debouncer.Stop()

	debouncer.Push(query)

	select {
	case <-applied:
		return coll.State(), nil
	case <-ctx.Done():
		return pagination.State{}, ctx.Err()
	}
}

func printItems(w io.Writer, items []catalog.Item) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTHUMBNAIL")
	for _, item := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", item.ID, item.Title, item.Thumbnail.ResolvedURL())
	}
	tw.Flush()
}
