package models

import "time"

// CachedAnswer stores one answered question keyed by the hash of its
// normalized text. Expired rows are deleted lazily on read.
type CachedAnswer struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	QuestionHash       string    `gorm:"size:64;uniqueIndex;not null" json:"question_hash"`
	NormalizedQuestion string    `gorm:"type:text;not null" json:"normalized_question"`
	Response           string    `gorm:"type:text" json:"response"`
	Model              string    `gorm:"size:100" json:"model"`
	PromptTokens       int       `json:"prompt_tokens"`
	CompletionTokens   int       `json:"completion_tokens"`
	TotalTokens        int       `json:"total_tokens"`
	FinishReason       string    `gorm:"size:50" json:"finish_reason"`
	Cost               float64   `json:"cost"`
	HitCount           int       `gorm:"default:0" json:"hit_count"`
	ExpiresAt          time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (CachedAnswer) TableName() string { return "cached_answers" }
