package logging

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

type ctxKey string

// RequestIDKey carries the per-request correlation id
const RequestIDKey ctxKey = "req_id"

var debug atomic.Bool

// Init configures the standard logger
func Init(debugEnabled bool) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	debug.Store(debugEnabled)
}

// DebugEnabled reports whether debug logging is on
func DebugEnabled() bool {
	return debug.Load()
}

// Debugf logs only when debug logging is enabled
func Debugf(format string, args ...any) {
	if debug.Load() {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// WithRequestID returns a context carrying the request id
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID returns the request id stored in ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Time logs the duration of an operation. Use as:
//
//	defer logging.Time(ctx, "op")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()
	reqID := RequestID(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Printf("[TIMING] req_id=%s op=%s dur=%dms err=%v", reqID, name, dur.Milliseconds(), *errp)
			return
		}
		Debugf("req_id=%s op=%s dur=%dms", reqID, name, dur.Milliseconds())
	}
}
