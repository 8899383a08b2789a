package toolcache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"deepgraph/internal/kv"
	"deepgraph/internal/logging"
)

const keyPrefix = "tool_call_cache:"

// Cache memoizes tool results keyed by tool name and arguments. Lookups and
// writes never fail the caller: a broken store degrades to a miss.
type Cache struct {
	store  kv.Store
	local  *lru.Cache[string, string]
	ttl    time.Duration
	logger logging.Logger
}

// Config controls cache sizing and entry lifetime.
type Config struct {
	TTL       time.Duration
	LocalSize int
}

// New builds a Cache over store. The local LRU tier absorbs repeat lookups
// within a run without a round trip to the store.
func New(store kv.Store, cfg Config, logger logging.Logger) (*Cache, error) {
	if cfg.LocalSize <= 0 {
		cfg.LocalSize = 256
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 48 * time.Hour
	}
	local, err := lru.New[string, string](cfg.LocalSize)
	if err != nil {
		return nil, fmt.Errorf("create local cache: %w", err)
	}
	return &Cache{
		store:  store,
		local:  local,
		ttl:    cfg.TTL,
		logger: logging.OrNop(logger),
	}, nil
}

// KeyFor derives the canonical cache key for a tool invocation. Two calls
// with the same tool name and semantically equal arguments produce the same
// key regardless of map iteration or argument order.
func KeyFor(toolName string, args map[string]any) string {
	payload := map[string]any{
		"function_name": toolName,
		"function_args": args,
	}
	canonical := canonicalJSON(payload)
	sum := md5.Sum([]byte(canonical))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// canonicalJSON renders v as JSON with object keys sorted at every nesting
// level. encoding/json already sorts map keys, but the model hands us
// arguments that may arrive as pre-ordered structures after repair, so the
// value is normalized to maps and slices first.
func canonicalJSON(v any) string {
	normalized := normalize(v)
	data, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(t))
		for _, k := range keys {
			out[k] = normalize(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// Get returns the cached result for key, if present. A store fault is
// reported as a miss with a non-nil error so the caller can tag the direct
// execution it falls back to; it never blocks the tool call.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if value, ok := c.local.Get(key); ok {
		return value, true, nil
	}
	value, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed, treating as miss: key=%s err=%v", key, err)
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	c.local.Add(key, value)
	return value, true, nil
}

// Put stores result under key with the configured TTL. The tool result has
// already been obtained, so a failed write is logged and only reported back
// for tagging.
func (c *Cache) Put(ctx context.Context, key, result string) error {
	c.local.Add(key, result)
	if err := c.store.SetEx(ctx, key, result, c.ttl); err != nil {
		c.logger.Warn("cache put failed: key=%s err=%v", key, err)
		return err
	}
	return nil
}
