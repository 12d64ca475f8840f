package memory

import (
	"strings"
	"time"
)

// Category classifies an entry by retention intent.
type Category string

const (
	CategoryCore         Category = "core"
	CategoryDaily        Category = "daily"
	CategoryConversation Category = "conversation"
)

// ParseCategory maps a raw string onto a known category. Unknown non-empty
// values become custom categories and pass through unchanged.
func ParseCategory(raw string) Category {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "core":
		return CategoryCore
	case "daily":
		return CategoryDaily
	case "conversation":
		return CategoryConversation
	case "":
		return CategoryCore
	default:
		return Category(strings.TrimSpace(raw))
	}
}

// IsCustom reports whether the category is outside the three built-in variants.
func (c Category) IsCustom() bool {
	return c != CategoryCore && c != CategoryDaily && c != CategoryConversation
}

func (c Category) String() string {
	return string(c)
}

// Entry is one stored memory record.
type Entry struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Content   string    `json:"content"`
	Category  Category  `json:"category"`
	SessionID string    `json:"session_id,omitempty"`
	Score     float64   `json:"score,omitempty"` // populated by Recall only, never persisted
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecallOptions configures a Recall call.
type RecallOptions struct {
	Limit     int    `json:"limit"`
	SessionID string `json:"session_id,omitempty"` // empty means no session filter
}

// ListOptions configures a List call.
type ListOptions struct {
	Category  Category `json:"category,omitempty"` // empty means all categories
	SessionID string   `json:"session_id,omitempty"`
}
