package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey   = "response_meta"
	cacheHitKey       = "cache_hit"
	processingTimeKey = "processing_time_ms"
)

// WithResponseMeta initialises response metadata storage on the request
// context. Handlers that never call StampDuration fall back to the full
// request duration.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
		meta := ensureMeta(c)
		if _, exists := meta[processingTimeKey]; !exists {
			meta[processingTimeKey] = time.Since(start).Milliseconds()
		}
	}
}

// SetCacheHit records whether the payload was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	ensureMeta(c)[cacheHitKey] = hit
}

// StampDuration records the elapsed time since start and returns the
// metadata map for the response envelope.
func StampDuration(c *gin.Context, start time.Time) map[string]interface{} {
	meta := ensureMeta(c)
	meta[processingTimeKey] = time.Since(start).Milliseconds()
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	newMeta := make(map[string]interface{})
	c.Set(responseMetaKey, newMeta)
	return newMeta
}
