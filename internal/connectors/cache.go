// internal/connectors/cache.go
package connectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/models"
)

// CachedConnector caches the findings of an idempotent connector in
// Redis. Only findings are cached, never transport errors, so an outage
// is always retried on the next assessment. Cache failures degrade to a
// direct fetch.
type CachedConnector struct {
	inner  Connector
	rdb    *redis.Client
	ttl    time.Duration
	keyFn  func(*models.Request) string
	decode func(json.RawMessage) (any, error)
	logger logger.Logger
}

// cacheEntry is the serialized form of a cached finding. The payload is
// kept raw so each connector can restore its concrete type.
type cacheEntry struct {
	Status  models.ConnectorStatus `json:"status"`
	Payload json.RawMessage        `json:"payload,omitempty"`
	Detail  string                 `json:"detail,omitempty"`
}

// NewCachedProviderRegistry caches provider verifications keyed by NPI.
func NewCachedProviderRegistry(inner Connector, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedConnector {
	return &CachedConnector{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		keyFn: func(req *models.Request) string { return req.Provider.NPI },
		decode: func(raw json.RawMessage) (any, error) {
			var p models.ProviderVerification
			err := json.Unmarshal(raw, &p)
			return p, err
		},
		logger: log.WithFields(map[string]interface{}{"cache": models.ConnectorProviderRegistry}),
	}
}

// NewCachedCodeValidation caches code validations keyed by the full code
// list. Order matters for the key; the normalizer preserves submission
// order, so identical requests hit the same entry.
func NewCachedCodeValidation(inner Connector, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedConnector {
	return &CachedConnector{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		keyFn: func(req *models.Request) string {
			return strings.Join(req.Service.ProcedureCodes, ",") + "|" +
				strings.Join(req.Service.DiagnosisCodes, ",")
		},
		decode: func(raw json.RawMessage) (any, error) {
			var c models.CodeValidation
			err := json.Unmarshal(raw, &c)
			return c, err
		},
		logger: log.WithFields(map[string]interface{}{"cache": models.ConnectorCodeValidation}),
	}
}

func (c *CachedConnector) Name() string           { return c.inner.Name() }
func (c *CachedConnector) Mandatory() bool        { return c.inner.Mandatory() }
func (c *CachedConnector) Timeout() time.Duration { return c.inner.Timeout() }

func (c *CachedConnector) Fetch(ctx context.Context, req *models.Request) (*Finding, error) {
	key := c.cacheKey(req)

	if cached, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		if finding, decodeErr := c.restore(cached); decodeErr == nil {
			c.logger.Debug("cache hit", map[string]interface{}{"key": key})
			return finding, nil
		}
		// A corrupt entry is dropped and refetched.
		c.rdb.Del(ctx, key)
	}

	finding, err := c.inner.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, finding)
	return finding, nil
}

func (c *CachedConnector) cacheKey(req *models.Request) string {
	sum := sha256.Sum256([]byte(c.keyFn(req)))
	return fmt.Sprintf("pa:connector:%s:%s", c.inner.Name(), hex.EncodeToString(sum[:16]))
}

func (c *CachedConnector) restore(raw []byte) (*Finding, error) {
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	payload, err := c.decode(entry.Payload)
	if err != nil {
		return nil, err
	}
	return &Finding{Status: entry.Status, Payload: payload, Detail: entry.Detail}, nil
}

func (c *CachedConnector) store(ctx context.Context, key string, finding *Finding) {
	payload, err := json.Marshal(finding.Payload)
	if err != nil {
		return
	}
	entry, err := json.Marshal(cacheEntry{
		Status:  finding.Status,
		Payload: payload,
		Detail:  finding.Detail,
	})
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, entry, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
