package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoKnowledgeMatch indicates the knowledge base had no answer for a query
	ErrNoKnowledgeMatch = errors.New("no knowledge base match")
	// ErrLocalModelUnavailable indicates the local model failed its liveness probe
	ErrLocalModelUnavailable = errors.New("local model unavailable")
	// ErrTierUnavailable indicates a resolver tier is not configured
	ErrTierUnavailable = errors.New("tier not configured")
)
