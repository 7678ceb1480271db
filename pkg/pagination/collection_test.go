package pagination

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/comics-catalog-client/internal/testutil"
	"github.com/Sternrassler/comics-catalog-client/pkg/catalog"
	"github.com/Sternrassler/comics-catalog-client/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePages struct {
	mu    sync.Mutex
	pages map[int][]catalog.Item
	errs  map[int]error
	gate  chan struct{}
	calls []int
}

func newFakePages() *fakePages {
	return &fakePages{
		pages: make(map[int][]catalog.Item),
		errs:  make(map[int]error),
	}
}

func (f *fakePages) FetchPage(ctx context.Context, offset, limit int) ([]catalog.Item, error) {
	f.mu.Lock()
	f.calls = append(f.calls, offset)
	gate := f.gate
	items, err := f.pages[offset], f.errs[offset]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return items, err
}

func (f *fakePages) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakePages) setGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = gate
}

func items(titles map[int]string, ids ...int) []catalog.Item {
	out := make([]catalog.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.Item{ID: id, Title: titles[id]})
	}
	return out
}

func ids(list []catalog.Item) []int {
	out := make([]int, 0, len(list))
	for _, item := range list {
		out = append(out, item.ID)
	}
	return out
}

func newTestCollection(t *testing.T, f PageFetcher, pageSize int) *Collection {
	t.Helper()
	c, err := New(f, Config{PageSize: pageSize})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func awaitIdle(t *testing.T, c *Collection) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := c.Await(ctx)
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.EqualError(t, err, "page fetcher is required")

	_, err = New(newFakePages(), Config{PageSize: 0})
	assert.EqualError(t, err, "page_size must be > 0 (got 0)")

	c, err := New(newFakePages(), DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	s := c.State()
	assert.Equal(t, 20, s.PageSize)
	assert.Equal(t, 0, s.Offset)
	assert.False(t, s.IsFetching)
}

func TestLoadNextPage_AppendsAndAdvancesOffset(t *testing.T) {
	f := newFakePages()
	f.pages[0] = items(nil, 1, 2, 3)
	f.pages[3] = items(nil, 4, 5)
	c := newTestCollection(t, f, 3)

	s, err := c.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ids(s.Items))
	assert.Equal(t, 3, s.Offset)

	s, err = c.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(s.Items))
	assert.Equal(t, 5, s.Offset)
	assert.Equal(t, []int{0, 3}, f.calls)
}

func TestLoadNextPage_DropsDuplicates(t *testing.T) {
	f := newFakePages()
	f.pages[0] = items(nil, 1, 2, 3)
	// a shifted listing hands out item 3 again
	f.pages[3] = items(nil, 3, 4, 5)
	c := newTestCollection(t, f, 3)

	_, err := c.LoadNextPage(context.Background())
	require.NoError(t, err)
	s, err := c.LoadNextPage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(s.Items))
	// offset counts what the server returned, duplicates included
	assert.Equal(t, 6, s.Offset)
}

func TestFetchNextPage_SingleFlight(t *testing.T) {
	f := newFakePages()
	f.pages[0] = items(nil, 1, 2)
	gate := make(chan struct{})
	f.setGate(gate)
	c := newTestCollection(t, f, 2)

	assert.True(t, c.FetchNextPage())
	assert.False(t, c.FetchNextPage())
	assert.True(t, c.State().IsFetching)

	close(gate)
	s := awaitIdle(t, c)

	assert.Equal(t, 1, f.callCount())
	assert.Equal(t, []int{1, 2}, ids(s.Items))
	assert.False(t, s.IsFetching)
}

func TestLoadNextPage_Failure(t *testing.T) {
	f := newFakePages()
	f.pages[0] = items(nil, 1, 2)
	boom := &client.Error{Class: client.ErrorClassServer, StatusCode: 500, Message: "500 Internal Server Error"}
	f.errs[2] = boom
	c := newTestCollection(t, f, 2)

	_, err := c.LoadNextPage(context.Background())
	require.NoError(t, err)

	s, err := c.LoadNextPage(context.Background())
	require.Error(t, err)
	status, ok := client.ServerStatus(err)
	assert.True(t, ok)
	assert.Equal(t, 500, status)
	assert.False(t, s.IsFetching)
	assert.Equal(t, []int{1, 2}, ids(s.Items))
	assert.Equal(t, 2, s.Offset)
	assert.ErrorIs(t, s.Err, boom)

	// re-trigger after the failure clears the error
	f.mu.Lock()
	delete(f.errs, 2)
	f.pages[2] = items(nil, 3)
	f.mu.Unlock()

	s, err = c.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.NoError(t, s.Err)
	assert.Equal(t, []int{1, 2, 3}, ids(s.Items))
}

func TestEndReached(t *testing.T) {
	f := newFakePages()
	f.pages[0] = items(nil, 1, 2)
	c := newTestCollection(t, f, 2)

	_, err := c.LoadNextPage(context.Background())
	require.NoError(t, err)
	s, err := c.LoadNextPage(context.Background())
	require.NoError(t, err)

	assert.True(t, s.EndReached)
	assert.Equal(t, 2, s.Offset)

	assert.False(t, c.ItemAppeared(2), "end reached must stop auto-trigger")
	assert.Equal(t, 2, f.callCount())

	assert.True(t, c.FetchNextPage(), "explicit fetch is still allowed")
	awaitIdle(t, c)

	c.Reset()
	assert.False(t, c.State().EndReached)
}

func TestItemAppeared(t *testing.T) {
	f := newFakePages()
	f.pages[0] = items(nil, 1, 2, 3)
	f.pages[3] = items(nil, 4)
	c := newTestCollection(t, f, 3)

	assert.False(t, c.ItemAppeared(1), "empty collection has no last item")

	_, err := c.LoadNextPage(context.Background())
	require.NoError(t, err)

	assert.False(t, c.ItemAppeared(2))
	assert.Equal(t, 1, f.callCount())

	assert.True(t, c.ItemAppeared(3))
	s := awaitIdle(t, c)
	assert.Equal(t, []int{1, 2, 3, 4}, ids(s.Items))
}

func TestItemAppeared_UsesFullList(t *testing.T) {
	f := newFakePages()
	titles := map[int]string{1: "Batman", 2: "Superman"}
	f.pages[0] = items(titles, 1, 2)
	c := newTestCollection(t, f, 2)

	_, err := c.LoadNextPage(context.Background())
	require.NoError(t, err)
	c.ApplyQuery("bat")

	// 1 is the last filtered item but not the last loaded one
	assert.False(t, c.ItemAppeared(1))
	assert.True(t, c.ItemAppeared(2))
	awaitIdle(t, c)
}

func TestReset_AbandonsInFlightFetch(t *testing.T) {
	f := newFakePages()
	f.pages[0] = items(nil, 1, 2)
	f.pages[2] = items(nil, 3, 4)
	c := newTestCollection(t, f, 2)

	_, err := c.LoadNextPage(context.Background())
	require.NoError(t, err)
	c.ApplyQuery("comic")

	gate := make(chan struct{})
	f.setGate(gate)
	require.True(t, c.FetchNextPage())

	c.Reset()
	s := c.State()
	assert.Empty(t, s.Items)
	assert.Equal(t, 0, s.Offset)
	assert.False(t, s.IsFetching)
	assert.Equal(t, "comic", s.Query, "reset keeps the query")

	f.setGate(nil)
	close(gate)

	s, err = c.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids(s.Items))
	assert.Equal(t, 2, s.Offset)
	assert.Equal(t, []int{0, 2, 0}, f.calls)
}

func TestApplyQuery(t *testing.T) {
	f := newFakePages()
	titles := map[int]string{1: "Batman: Year One", 2: "Superman", 3: "BATGIRL", 4: "X-Men"}
	f.pages[0] = items(titles, 1, 2, 3, 4)
	c := newTestCollection(t, f, 4)

	_, err := c.LoadNextPage(context.Background())
	require.NoError(t, err)
	calls := f.callCount()

	tests := []struct {
		query string
		want  []int
	}{
		{query: "", want: []int{1, 2, 3, 4}},
		{query: "bat", want: []int{1, 3}},
		{query: "BAT", want: []int{1, 3}},
		{query: "man", want: []int{1, 2}},
		{query: "x-men", want: []int{4}},
		{query: "zzz", want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c.ApplyQuery(tt.query)
			first := c.State()
			c.ApplyQuery(tt.query)
			second := c.State()

			assert.Equal(t, tt.want, ids(first.Filtered))
			assert.Equal(t, ids(first.Filtered), ids(second.Filtered), "idempotent")
			assert.Equal(t, tt.query, first.Query)
			assert.Equal(t, []int{1, 2, 3, 4}, ids(first.Items), "filter never changes items")
		})
	}

	c.ApplyQuery("")
	s := c.State()
	assert.Equal(t, s.Items, s.Filtered)
	assert.Equal(t, calls, f.callCount(), "filtering must not hit the network")
}

func TestSubscribe(t *testing.T) {
	f := newFakePages()
	f.pages[0] = items(nil, 1)
	f.pages[1] = items(nil, 2)
	f.pages[2] = items(nil, 3)
	c := newTestCollection(t, f, 1)

	updates, unsubscribe := c.Subscribe()

	initial := <-updates
	assert.Empty(t, initial.Items)

	// nobody reads while three pages load; the owner must not block
	for i := 0; i < 3; i++ {
		_, err := c.LoadNextPage(context.Background())
		require.NoError(t, err)
	}

	latest := <-updates
	assert.Equal(t, 3, latest.Offset)
	assert.Equal(t, []int{1, 2, 3}, ids(latest.Items))

	unsubscribe()
	_, ok := <-updates
	assert.False(t, ok, "unsubscribe closes the channel")
	unsubscribe()
}

func TestSnapshotIsolation(t *testing.T) {
	f := newFakePages()
	f.pages[0] = items(nil, 1, 2)
	f.pages[2] = items(nil, 3, 4)
	c := newTestCollection(t, f, 2)

	before, err := c.LoadNextPage(context.Background())
	require.NoError(t, err)
	_, err = c.LoadNextPage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, ids(before.Items))
	assert.Equal(t, 2, cap(before.Items))
}

func TestClose(t *testing.T) {
	f := newFakePages()
	gate := make(chan struct{})
	defer close(gate)
	f.setGate(gate)

	c, err := New(f, Config{PageSize: 5})
	require.NoError(t, err)

	updates, _ := c.Subscribe()
	<-updates
	require.True(t, c.FetchNextPage())
	<-updates

	c.Close()
	c.Close()

	for range updates {
	}
	assert.False(t, c.FetchNextPage())
	_, err = c.Await(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.LoadNextPage(context.Background())
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestCollection_AgainstCatalogClient(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetComics(testutil.GenerateComics(45, 1))

	cfg := client.DefaultConfig("pub", "priv")
	cfg.BaseURL = mock.BaseURL()
	cl, err := client.New(cfg)
	require.NoError(t, err)
	cl.SetHTTPClient(mock.HTTPClient())

	c := newTestCollection(t, cl, 20)

	var s State
	for !s.EndReached {
		s, err = c.LoadNextPage(context.Background())
		require.NoError(t, err)
	}

	assert.Len(t, s.Items, 45)
	assert.Equal(t, 45, s.Offset)
	assert.Equal(t, 4, mock.GetRequestCount())

	c.ApplyQuery("#4")
	assert.Equal(t, []int{4, 40, 41, 42, 43, 44, 45}, ids(c.State().Filtered))
}
