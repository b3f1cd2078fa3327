package auth

import "context"

// SetOperatorIDForTest injects an operator ID into the context for testing purposes.
func SetOperatorIDForTest(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorIDKey, operatorID)
}
