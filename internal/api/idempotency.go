package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	// IdempotencyKeyHeader 幂等键请求头
	IdempotencyKeyHeader = "Idempotency-Key"

	// 处理中的占位记录在处理器结束前最多保留的时间
	provisionalLockTTL = 60 * time.Second
	maxIdempotencyKey  = 128
)

// idempotencyEntry 幂等记录
type idempotencyEntry struct {
	InProgress bool      `json:"in_progress"`
	Code       int       `json:"code"`
	Body       []byte    `json:"body"`
	BodySHA256 string    `json:"body_sha256"`
	CreatedAt  time.Time `json:"created_at"`
}

// bodyRecorder 在写出响应的同时保留一份副本
type bodyRecorder struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

func bodyHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// idempotencyKey 幂等键按操作人和请求路径隔离
func idempotencyKey(c *gin.Context, key string) string {
	operator := "anonymous"
	if actor, ok := GetActor(c); ok {
		operator = strconv.FormatUint(uint64(actor.ID), 10)
	}
	return "idemp:qms:" + strings.ToLower(c.Request.Method) + ":" + c.Request.URL.Path + ":" + operator + ":" + key
}

// IdempotencyMiddleware 幂等中间件
// 请求携带 Idempotency-Key 时生效: 相同键和相同请求体直接重放上次的响应,
// 请求体不同或上次请求仍在处理中时返回 409。rdb 为 nil 时不做控制
func IdempotencyMiddleware(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if rdb == nil || key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKey {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
				Code:    http.StatusBadRequest,
				Message: "invalid " + IdempotencyKeyHeader,
			})
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := bodyHash(body)

		storeKey := idempotencyKey(c, key)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		provisional, _ := json.Marshal(idempotencyEntry{InProgress: true, BodySHA256: hash, CreatedAt: time.Now().UTC()})
		ok, err := rdb.SetNX(ctx, storeKey, provisional, provisionalLockTTL).Result()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{
				Code:    http.StatusServiceUnavailable,
				Message: "idempotency store unavailable",
			})
			return
		}
		if !ok {
			replayOrReject(ctx, c, rdb, storeKey, hash)
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = rec
		c.Next()

		// 服务端错误不记录,允许客户端用同一个键重试
		status := rec.Status()
		if status >= http.StatusInternalServerError {
			_ = rdb.Del(context.Background(), storeKey).Err()
			return
		}
		final, _ := json.Marshal(idempotencyEntry{
			Code:       status,
			Body:       rec.buf.Bytes(),
			BodySHA256: hash,
			CreatedAt:  time.Now().UTC(),
		})
		if err := rdb.Set(context.Background(), storeKey, final, ttl).Err(); err != nil {
			GetLogger().WithError(err).WithField("key", storeKey).Warn("failed to save idempotent response")
		}
	}
}

// replayOrReject 键已存在时: 请求体一致且已有结果则重放,否则拒绝
func replayOrReject(ctx context.Context, c *gin.Context, rdb *redis.Client, storeKey string, hash string) {
	var cur idempotencyEntry
	raw, err := rdb.Get(ctx, storeKey).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		GetLogger().WithError(err).WithField("key", storeKey).Warn("failed to load idempotent response")
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &cur)
	}

	if cur.BodySHA256 != "" && cur.BodySHA256 != hash {
		c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{
			Code:    http.StatusConflict,
			Message: IdempotencyKeyHeader + " reused with different body",
		})
		return
	}
	if !cur.InProgress && cur.Code != 0 {
		c.Header("Idempotent-Replayed", "true")
		c.Data(cur.Code, "application/json; charset=utf-8", cur.Body)
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{
		Code:    http.StatusConflict,
		Message: "request is already in progress",
	})
}
