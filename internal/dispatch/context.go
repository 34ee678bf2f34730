package dispatch

import "context"

type contextKey string

const skipRecoveryKey contextKey = "dispatch_skip_recovery"

// WithoutRecovery marks requests made with ctx as credential exchanges (login,
// register). A 401 on them means the submitted credentials were wrong, so the
// response is handed back untouched and stored credentials are left alone.
func WithoutRecovery(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipRecoveryKey, true)
}

func recoveryEnabled(ctx context.Context) bool {
	skip, _ := ctx.Value(skipRecoveryKey).(bool)
	return !skip
}
