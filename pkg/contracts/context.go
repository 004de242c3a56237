package contracts

import "context"

type operationIDKey struct{}

// WithOperationID tags ctx with the id correlating all telemetry produced
// while handling one operation.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationIDKey{}, id)
}

// OperationIDFromContext returns the operation id, or "" if ctx has none.
func OperationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(operationIDKey{}).(string); ok {
		return id
	}
	return ""
}
