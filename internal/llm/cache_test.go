package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cpmpazar/cpm-pazar/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHashPrompt(t *testing.T) {
	a := hashPrompt("m1", "prompt")
	assert.Len(t, a, 64)
	assert.Equal(t, a, hashPrompt("m1", "prompt"))
	assert.NotEqual(t, a, hashPrompt("m2", "prompt"))
	assert.NotEqual(t, a, hashPrompt("m1", "prompt2"))
}

func TestCachedGenerator_CacheHit(t *testing.T) {
	store := newMemoryStore(t)
	gen := new(mockGenerator)
	gen.On("GenerateText", mock.Anything, "p").
		Return(&GenerationResult{Text: "ilk", Usage: Usage{InputTokens: 10, OutputTokens: 5}}, nil).Once()

	cached := NewCachedGenerator(gen, store, time.Hour)

	first, err := cached.GenerateText(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ilk", first.Text)
	assert.False(t, first.Cached)

	second, err := cached.GenerateText(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ilk", second.Text)
	assert.True(t, second.Cached)
	assert.Equal(t, "test-model", second.Model)

	gen.AssertNumberOfCalls(t, "GenerateText", 1)

	sum, err := store.UsageSummary()
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Calls)
	assert.Equal(t, int64(10), sum.InputTokens)
}

func TestCachedGenerator_DisabledCacheStillRecordsUsage(t *testing.T) {
	store := newMemoryStore(t)
	gen := new(mockGenerator)
	gen.On("GenerateText", mock.Anything, "p").Return(&GenerationResult{Text: "metin"}, nil).Twice()

	cached := NewCachedGenerator(gen, store, 0)

	for i := 0; i < 2; i++ {
		res, err := cached.GenerateText(context.Background(), "p")
		require.NoError(t, err)
		assert.False(t, res.Cached)
	}
	gen.AssertNumberOfCalls(t, "GenerateText", 2)

	sum, err := store.UsageSummary()
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Calls)
}

func TestCachedGenerator_ErrorsAreNotCached(t *testing.T) {
	store := newMemoryStore(t)
	gen := new(mockGenerator)
	gen.On("GenerateText", mock.Anything, "p").Return(nil, errors.New("boom")).Once()
	gen.On("GenerateText", mock.Anything, "p").Return(&GenerationResult{Text: "ok"}, nil).Once()

	cached := NewCachedGenerator(gen, store, time.Hour)

	_, err := cached.GenerateText(context.Background(), "p")
	assert.Error(t, err)

	res, err := cached.GenerateText(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)

	sum, err := store.UsageSummary()
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Calls)
	assert.Equal(t, int64(1), sum.Failures)
}

func TestCachedGenerator_NilStore(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateText", mock.Anything, "p").Return(&GenerationResult{Text: "ok"}, nil)

	cached := NewCachedGenerator(gen, nil, time.Hour)
	res, err := cached.GenerateText(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
}

// countingGenerator blocks until released and counts calls.
type countingGenerator struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *countingGenerator) GenerateText(ctx context.Context, prompt string) (*GenerationResult, error) {
	g.calls.Add(1)
	g.once.Do(func() { close(g.started) })
	<-g.release
	return &GenerationResult{Text: "paylaşılan"}, nil
}

func TestCachedGenerator_DeduplicatesInFlight(t *testing.T) {
	gen := &countingGenerator{started: make(chan struct{}), release: make(chan struct{})}
	cached := NewCachedGenerator(gen, nil, 0)

	var wg sync.WaitGroup
	results := make([]string, 5)

	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := cached.GenerateText(context.Background(), "same")
		if err == nil {
			results[0] = res.Text
		}
	}()
	<-gen.started

	for i := 1; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := cached.GenerateText(context.Background(), "same")
			if err == nil {
				results[i] = res.Text
			}
		}(i)
	}

	// Give the followers time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	assert.Equal(t, int32(1), gen.calls.Load())
	for _, r := range results {
		assert.Equal(t, "paylaşılan", r)
	}
}
