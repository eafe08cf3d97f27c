// Package ctxutil carries per-request identifiers through a context so that
// logs, spans and export job directories can be correlated.
package ctxutil

import "context"

// MaxIDLength bounds identifiers accepted from callers.
const MaxIDLength = 64

type requestKey struct{}

type Request struct {
	TraceID   string
	RequestID string
}

func WithRequest(ctx context.Context, r Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

func RequestFrom(ctx context.Context) (Request, bool) {
	if ctx == nil {
		return Request{}, false
	}
	r, ok := ctx.Value(requestKey{}).(Request)
	return r, ok
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	r, _ := RequestFrom(ctx)
	return r.RequestID
}

// LogFields returns the identifiers in ctx as logger key/value pairs.
func LogFields(ctx context.Context) []interface{} {
	r, ok := RequestFrom(ctx)
	if !ok {
		return nil
	}
	var kv []interface{}
	if r.TraceID != "" {
		kv = append(kv, "trace_id", r.TraceID)
	}
	if r.RequestID != "" {
		kv = append(kv, "request_id", r.RequestID)
	}
	return kv
}

// ValidID reports whether s is safe to echo in headers and use inside a file
// name: 1 to MaxIDLength characters from [A-Za-z0-9._-], not starting with a dot.
func ValidID(s string) bool {
	if s == "" || len(s) > MaxIDLength || s[0] == '.' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}
