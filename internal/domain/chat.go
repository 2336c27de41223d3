package domain

import "time"

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source identifies which resolver tier produced an assistant answer
type Source string

const (
	SourceOnline   Source = "online"   // remote hosted model
	SourceOffline  Source = "offline"  // local model
	SourceFallback Source = "fallback" // knowledge base or "don't know"
	SourceError    Source = "error"    // resolver crashed
)

// Session represents a conversation between one user and the assistant
type Session struct {
	ID          string     `json:"session_id"`
	UserID      string     `json:"user_id"`
	Language    string     `json:"language"`
	UserContext string     `json:"user_context,omitempty"`
	Messages    []*Message `json:"messages,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Message represents one chat message in a session
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Source    Source    `json:"source,omitempty"` // assistant messages only
	CreatedAt time.Time `json:"timestamp"`
}

// Turn is one user message and the assistant answer to it
type Turn struct {
	UserID           string
	SessionID        string
	Language         string
	UserContext      string
	UserMessage      string
	AssistantMessage string
	Source           Source
}

// ChatRequest is the request to send a chat message
type ChatRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	SessionID   string `json:"session_id,omitempty"`
	Message     string `json:"message" binding:"required"`
	Language    string `json:"language,omitempty"`
	UserContext string `json:"user_context,omitempty"`
}

// ChatResponse is the response from a chat message
type ChatResponse struct {
	SessionID        string `json:"session_id"`
	Answer           string `json:"answer"`
	Source           Source `json:"source"`
	Persisted        bool   `json:"persisted"`
	PersistenceError string `json:"persistence_error,omitempty"`
}

// UsageStats holds aggregate per-user chat counters
type UsageStats struct {
	UserID          string    `json:"user_id"`
	TotalSessions   int       `json:"total_sessions"`
	TotalMessages   int       `json:"total_messages"`
	LastActiveAt    time.Time `json:"last_active_at"`
	QuestionSamples []string  `json:"recent_question_samples"`
}
