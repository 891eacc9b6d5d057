package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	correlationIDCtxKey contextKey = "correlation_id"
	subjectIDCtxKey     contextKey = "subject_id"
)

// Standard attribute keys used in logs.
const (
	CorrelationIDKey = "correlation_id"
	SubjectIDKey     = "subject_id"
	ErrorKey         = "error"
)

// WithCorrelationID adds a correlation ID to the context.
// If id is empty, a new UUID is generated.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext extracts the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDCtxKey).(string); ok {
		return id
	}
	return ""
}

// WithSubjectID adds a subject ID to the context.
func WithSubjectID(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectIDCtxKey, subjectID)
}

// SubjectIDFromContext extracts the subject ID from context.
func SubjectIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(subjectIDCtxKey).(string); ok {
		return id
	}
	return ""
}
