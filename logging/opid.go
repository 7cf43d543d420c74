package logging

import "context"

// opIDKey is the attribute key under which op ids are logged.
const opIDKey = "op_id"

type opIDContextKey struct{}

// ContextWithOpID returns a context whose log records carry opID.
func ContextWithOpID(ctx context.Context, opID string) context.Context {
	return context.WithValue(ctx, opIDContextKey{}, opID)
}

// OpIDFromContext returns the op id stored in ctx, or "".
func OpIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(opIDContextKey{}).(string)
	return id
}
