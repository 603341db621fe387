// Package middleware holds HTTP server middleware.
package middleware

import (
	"context"
	"strings"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// slowRequestThreshold flags requests worth a second look.
const slowRequestThreshold = 5 * time.Second

// Logging records method, path, status, and latency for every request.
func Logging(logger log.Logger) middleware.Middleware {
	helper := log.NewHelper(logger)

	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			start := time.Now()

			var (
				method    string
				path      string
				ip        string
				requestID string
			)

			if tr, ok := transport.FromServerContext(ctx); ok {
				method = tr.Operation()
				path = tr.Operation()

				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					method = httpReq.Method
					path = httpReq.URL.Path
					ip = clientIP(httpReq)
					requestID = httpReq.Header.Get("X-Request-ID")
				}
			}
			if requestID == "" {
				requestID = uuid.NewString()
			}

			reply, err := handler(ctx, req)

			elapsed := time.Since(start)
			status := 200
			if err != nil {
				status = int(kerrors.FromError(err).Code)
			}

			helper.Infow("http request",
				"request_id", requestID,
				"method", method,
				"path", path,
				"status", status,
				"elapsed_ms", elapsed.Milliseconds(),
				"ip", ip)

			if elapsed > slowRequestThreshold {
				helper.Warnw("slow request",
					"request_id", requestID,
					"method", method,
					"path", path,
					"elapsed_ms", elapsed.Milliseconds())
			}

			return reply, err
		}
	}
}

// clientIP extracts the client address, preferring proxy headers.
func clientIP(req *http.Request) string {
	if ip := req.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	return req.RemoteAddr
}
