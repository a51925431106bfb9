package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-reservation-admin/internal/config"
	"github.com/iliyamo/seat-reservation-admin/internal/logger"
)

// storeScript writes a cached response only if no purge ran for the route
// since the request read its generation. KEYS[1] entry, KEYS[2] generation;
// ARGV[1] generation seen, ARGV[2] payload, ARGV[3] ttl in ms.
var storeScript = redis.NewScript(`
	local current = redis.call('GET', KEYS[2]) or ''
	if current ~= ARGV[1] then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[2], 'PX', tonumber(ARGV[3]))
	return 1
`)

// captureWriter records status and body while forwarding to the client.
// Once more than limit bytes were written the body is marked overflowed
// and will not be cached.
type captureWriter struct {
	http.ResponseWriter
	status     int
	buf        bytes.Buffer
	limit      int64
	overflowed bool
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.overflowed {
		if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
			cw.overflowed = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// ResponseCache stores successful responses in Redis keyed by route
// template and query string, so a write can purge one route's entries
// without touching the others. A nil *ResponseCache or one without a
// client passes every request through.
type ResponseCache struct {
	cfg     config.CacheConfig
	rdb     *redis.Client
	methods map[string]bool
	log     *logger.Logger
}

func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log *logger.Logger) *ResponseCache {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "cache"
	}
	if !cfg.Enabled {
		rdb = nil
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, methods: cfg.MethodSet(), log: log}
}

func (rc *ResponseCache) active() bool { return rc != nil && rc.rdb != nil }

// key is prefix:route:sha1(method?query).
func (rc *ResponseCache) key(c echo.Context) string {
	r := c.Request()
	sum := sha1.Sum([]byte(r.Method + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s:%s:%x", rc.cfg.Prefix, c.Path(), sum[:])
}

// genKey counts purges of route. It sits outside the prefix:route:* pattern
// so purging never deletes it.
func (rc *ResponseCache) genKey(route string) string {
	return fmt.Sprintf("%s:gen:%s", rc.cfg.Prefix, route)
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:8+len(hdrJSON)], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}

// Middleware serves cached 200 responses and stores fresh ones. Headers
// are stored alongside the body so hits are byte-identical to misses.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rc.active() || !rc.methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}

			ctx := c.Request().Context()
			key := rc.key(c)

			if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) || strings.EqualFold(k, echo.HeaderXRequestID) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					if len(body) > 0 {
						_, _ = c.Response().Write(body)
					}
					return nil
				}
			}

			// read before the handler touches the database; a purge that
			// lands in between makes the store below a no-op
			genKey := rc.genKey(c.Path())
			gen, err := rc.rdb.Get(ctx, genKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				rc.log.Warn(ctx, "cache.generation_failed", err)
				return next(c)
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.overflowed {
				return nil
			}

			hdr := c.Response().Header().Clone()
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			err = storeScript.Run(context.WithoutCancel(ctx), rc.rdb, []string{key, genKey},
				gen, payload, rc.cfg.TTL.Milliseconds()).Err()
			if err != nil {
				rc.log.Warn(ctx, "cache.store_failed", err)
			}
			return nil
		}
	}
}

// Purge drops every cached entry for the given route templates and bumps
// their generation so responses computed before the purge are not stored.
func (rc *ResponseCache) Purge(ctx context.Context, routes ...string) error {
	if !rc.active() {
		return nil
	}
	for _, route := range routes {
		if err := rc.rdb.Incr(ctx, rc.genKey(route)).Err(); err != nil {
			return err
		}
		pattern := fmt.Sprintf("%s:%s:*", rc.cfg.Prefix, route)
		var cursor uint64
		for {
			keys, next, err := rc.rdb.Scan(ctx, cursor, pattern, 100).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if err := rc.rdb.Del(ctx, keys...).Err(); err != nil {
					return err
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return nil
}

// PurgeOnSuccess purges routes after the wrapped handler answers with a
// 2xx status.
func (rc *ResponseCache) PurgeOnSuccess(routes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil || !rc.active() {
				return err
			}
			if status := c.Response().Status; status >= 200 && status < 300 {
				ctx := c.Request().Context()
				if perr := rc.Purge(context.WithoutCancel(ctx), routes...); perr != nil {
					rc.log.Warn(ctx, "cache.purge_failed", perr)
				}
			}
			return nil
		}
	}
}
