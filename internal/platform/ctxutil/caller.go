package ctxutil

import "context"

type callerDataKey struct{}

const (
	RoleService = "SERVICE"
	RoleGM      = "GM"
)

// CallerData identifies the resource manager behind a request. It is filled
// by the service auth middleware from an already-verified token.
type CallerData struct {
	CallerID string
	Role     string
}

func WithCallerData(ctx context.Context, cd *CallerData) context.Context {
	return context.WithValue(ctx, callerDataKey{}, cd)
}

func GetCallerData(ctx context.Context) *CallerData {
	if ctx == nil {
		return nil
	}
	if cd, ok := ctx.Value(callerDataKey{}).(*CallerData); ok {
		return cd
	}
	return nil
}

// CallerID returns the authenticated caller id, or "" when absent.
func CallerID(ctx context.Context) string {
	if cd := GetCallerData(ctx); cd != nil {
		return cd.CallerID
	}
	return ""
}
