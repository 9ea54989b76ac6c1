package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFetcher implements Fetcher for testing.
type mockFetcher struct {
	name     string
	page     *Page
	err      error
	calls    int
	attempts []int
	closed   int
	closeErr error
}

func (m *mockFetcher) Name() string { return m.name }

func (m *mockFetcher) Fetch(_ context.Context, _ string, maxAttempts int) (*Page, error) {
	m.calls++
	m.attempts = append(m.attempts, maxAttempts)
	return m.page, m.err
}

func (m *mockFetcher) Close() error {
	m.closed++
	return m.closeErr
}

func TestChain_Fetch_FirstSuccess(t *testing.T) {
	f1 := &mockFetcher{name: "http", page: &Page{Identifier: "Nami", Source: "http"}}
	f2 := &mockFetcher{name: "browser"}

	chain := NewChain(f1, f2)
	page, err := chain.Fetch(context.Background(), "Nami", 3)

	require.NoError(t, err)
	assert.Equal(t, "http", page.Source)
	assert.Equal(t, 0, f2.calls)
}

func TestChain_Fetch_FallbackOnError(t *testing.T) {
	f1 := &mockFetcher{name: "http", err: errors.New("blocked")}
	f2 := &mockFetcher{name: "browser", page: &Page{Identifier: "Nami", Source: "browser"}}

	chain := NewChain(f1, f2)
	page, err := chain.Fetch(context.Background(), "Nami", 3)

	require.NoError(t, err)
	assert.Equal(t, "browser", page.Source)
	assert.Equal(t, []int{3}, f1.attempts)
	assert.Equal(t, []int{3}, f2.attempts)
}

func TestChain_Fetch_AllFail(t *testing.T) {
	f1 := &mockFetcher{name: "http", err: errors.New("http error")}
	f2 := &mockFetcher{name: "browser", err: errors.New("browser error")}

	chain := NewChain(f1, f2)
	page, err := chain.Fetch(context.Background(), "Nami", 3)

	assert.Nil(t, page)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all fetchers failed")
	assert.Contains(t, err.Error(), "browser error")
}

func TestChain_Fetch_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f1 := &mockFetcher{name: "http", err: context.Canceled}
	f2 := &mockFetcher{name: "browser"}

	_, err := NewChain(f1, f2).Fetch(ctx, "Nami", 3)
	require.Error(t, err)
	assert.Equal(t, 0, f2.calls)
}

func TestChain_Fetch_Empty(t *testing.T) {
	_, err := NewChain().Fetch(context.Background(), "Nami", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fetcher returned a page")
}

func TestChain_Close(t *testing.T) {
	f1 := &mockFetcher{name: "http"}
	f2 := &mockFetcher{name: "browser", closeErr: errors.New("chrome hung")}

	chain := NewChain(f1, f2)
	err := chain.Close()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome hung")
	assert.Equal(t, 1, f1.closed)
	assert.Equal(t, 1, f2.closed)
	assert.Equal(t, "auto", chain.Name())
}
