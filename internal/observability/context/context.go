package context

import stdcontext "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
)

func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	if requestID == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithUserID records the authenticated buyer for log correlation.
func WithUserID(ctx stdcontext.Context, userID string) stdcontext.Context {
	if userID == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(userIDKey).(string)
	return v
}
