package middleware

import (
	"context"

	"github.com/angelmondragon/storefront/internal/permissions"
	"github.com/angelmondragon/storefront/pkg/session"
)

type contextKey string

const (
	ctxSubject  contextKey = "subject"
	ctxSession  contextKey = "session"
	ctxAccessID contextKey = "access_id"
	ctxRequest  contextKey = "request_info"
)

// requestInfo is filled in by inner middleware so Logging can report who made
// the request after the handler chain returns.
type requestInfo struct {
	requestID string
	userID    string
}

func withRequestInfo(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, ctxRequest, info)
}

func requestInfoFrom(ctx context.Context) *requestInfo {
	if ctx == nil {
		return nil
	}
	info, _ := ctx.Value(ctxRequest).(*requestInfo)
	return info
}

// RequestIDFromContext returns the id assigned by the RequestID middleware.
func RequestIDFromContext(ctx context.Context) string {
	if info := requestInfoFrom(ctx); info != nil {
		return info.requestID
	}
	return ""
}

// SubjectFromContext returns the resolved subject, anonymous when none was set.
func SubjectFromContext(ctx context.Context) permissions.Subject {
	if ctx == nil {
		return permissions.Anonymous()
	}
	if v, ok := ctx.Value(ctxSubject).(permissions.Subject); ok {
		return v
	}
	return permissions.Anonymous()
}

// WithSubject injects the permission subject into the context.
func WithSubject(ctx context.Context, subject permissions.Subject) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if info := requestInfoFrom(ctx); info != nil && subject.IsAuthenticated() {
		info.userID = subject.UserID.String()
	}
	return context.WithValue(ctx, ctxSubject, subject)
}

// SessionFromContext returns the visitor session loaded by the Session middleware.
func SessionFromContext(ctx context.Context) *session.Session {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxSession).(*session.Session); ok {
		return v
	}
	return nil
}

// WithSession injects the visitor session into the context.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSession, sess)
}

// AccessIDFromContext returns the jti of the bearer token, if the request carried one.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}

// UserIDFromContext returns the authenticated user id as a string, or "".
func UserIDFromContext(ctx context.Context) string {
	subject := SubjectFromContext(ctx)
	if !subject.IsAuthenticated() {
		return ""
	}
	return subject.UserID.String()
}
