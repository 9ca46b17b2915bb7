package auth

import (
	"context"

	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

type ctxKey string

const ctxKeySub ctxKey = "sub"

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

func SubjectFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeySub); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithRole stores the role where rbac middleware reads it.
func WithRole(ctx context.Context, role string) context.Context {
	return rbac.WithRole(ctx, role)
}
