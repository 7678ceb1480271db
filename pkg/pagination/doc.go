// Package pagination maintains a de-duplicated, append-only list of catalog
// items that grows one page at a time, with a live title filter.
//
// A Collection owns its state on a single goroutine. Page fetches run in the
// background and report back to the owner; at most one fetch is in flight.
// Every completed page is merged in server order after dropping items whose
// ID is already present, and the offset advances by the number of items the
// server returned (duplicates included).
//
// Example usage:
//
//	coll, err := pagination.New(catalogClient, pagination.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer coll.Close()
//
//	updates, unsubscribe := coll.Subscribe()
//	defer unsubscribe()
//
//	coll.FetchNextPage()
//	for state := range updates {
//		render(state.Filtered)
//	}
//
// An empty page marks the end of the catalog. ItemAppeared stops
// triggering fetches from then on until Reset; FetchNextPage still asks the
// server, which is how a caller probes for newly published items.
package pagination
