package llm

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/cpmpazar/cpm-pazar/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

// CachedGenerator wraps a TextGenerator with a SQLite cache and usage ledger.
// Identical prompts that are in flight at the same time share one call.
type CachedGenerator struct {
	inner TextGenerator
	store storage.GenerationStore
	model string
	ttl   time.Duration // 0 disables the cache, usage is still recorded
	group singleflight.Group
}

// NewCachedGenerator creates a cached generator. store may be nil.
func NewCachedGenerator(inner TextGenerator, store storage.GenerationStore, ttl time.Duration) *CachedGenerator {
	model := ""
	if m, ok := inner.(interface{ Model() string }); ok {
		model = m.Model()
	}
	return &CachedGenerator{inner: inner, store: store, model: model, ttl: ttl}
}

// hashPrompt keys the cache by model and prompt so switching models does not
// serve stale copy.
func hashPrompt(model, prompt string) string {
	sum := blake2b.Sum256([]byte(model + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

// GenerateText implements TextGenerator with caching.
func (c *CachedGenerator) GenerateText(ctx context.Context, prompt string) (*GenerationResult, error) {
	hash := hashPrompt(c.model, prompt)

	if c.cacheEnabled() {
		text, ok, err := c.store.GetGenerationCache(hash, c.ttl)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check generation cache")
		} else if ok {
			log.Debug().Str("hash", hash[:16]).Msg("generation cache hit")
			return &GenerationResult{Text: text, Model: c.model, Cached: true}, nil
		}
	}

	// The first caller's context governs a shared call
	v, err, shared := c.group.Do(hash, func() (any, error) {
		result, err := c.inner.GenerateText(ctx, prompt)
		c.recordUsage(result, err)
		if err != nil {
			return nil, err
		}

		if c.cacheEnabled() && result.Text != "" {
			if err := c.store.SetGenerationCache(hash, result.Text); err != nil {
				log.Warn().Err(err).Msg("failed to cache generated text")
			} else {
				log.Debug().Str("hash", hash[:16]).Msg("cached generated text")
			}
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		log.Debug().Str("hash", hash[:16]).Msg("joined in-flight generation")
	}

	// Callers may hold on to the result, give each its own copy
	res := *v.(*GenerationResult)
	return &res, nil
}

func (c *CachedGenerator) cacheEnabled() bool {
	return c.store != nil && c.ttl > 0
}

func (c *CachedGenerator) recordUsage(result *GenerationResult, err error) {
	if c.store == nil {
		return
	}

	rec := storage.UsageRecord{Model: c.model, OK: err == nil}
	if result != nil {
		rec.InputTokens = result.Usage.InputTokens
		rec.OutputTokens = result.Usage.OutputTokens
		rec.CostUSD = result.Usage.CostUSD
		if result.Model != "" {
			rec.Model = result.Model
		}
	}
	if err := c.store.RecordUsage(rec); err != nil {
		log.Warn().Err(err).Msg("failed to record generation usage")
	}
}
