package services

import "context"

type contextKey string

const (
	presentationIDKey contextKey = "presentation_id"
	jobIDKey          contextKey = "job_id"
	stageKey          contextKey = "stage"
	requestIDKey      contextKey = "request_id"
)

// WithPresentationID annotates context with the presentation identifier.
func WithPresentationID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, presentationIDKey, id)
}

// PresentationIDFromContext extracts the presentation identifier if present.
func PresentationIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(presentationIDKey)
	if v == nil {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// WithJobID annotates context with the generation job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the generation job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(jobIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// WithStage annotates context with the workflow stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext extracts the workflow stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if v == nil {
		return "", false
	}
	stage, ok := v.(string)
	return stage, ok
}

// WithRequestID annotates context with a per-request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation id if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(requestIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
