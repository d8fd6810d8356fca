package services

import (
	"errors"
	"time"

	"github.com/studymate/backend/internal/models"
	"github.com/studymate/backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultCacheTTL is applied when no per-call TTL is given.
const DefaultCacheTTL = 30 * 24 * time.Hour

// AnswerMetadata describes the completion that produced a cached answer.
type AnswerMetadata struct {
	Model            string  `json:"model"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	FinishReason     string  `json:"finish_reason"`
	Cost             float64 `json:"cost"`
}

// CachedAnswerResult is what Get returns on a cache hit.
type CachedAnswerResult struct {
	Response string
	Metadata AnswerMetadata
}

// AnswerCacheService provides question-hash-based answer dedup with TTL.
// All operations are best-effort: store errors are logged and surface as a
// miss from Get or a no-op from Set, never as a failure to the caller.
type AnswerCacheService struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewAnswerCacheService(db *gorm.DB, ttl time.Duration) *AnswerCacheService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &AnswerCacheService{db: db, ttl: ttl}
}

// Get looks up an unexpired cached answer for the question. An expired row is
// deleted and treated as a miss. On a hit the row's hit count is incremented.
func (s *AnswerCacheService) Get(question string) *CachedAnswerResult {
	hash := QuestionHash(question)

	var entry models.CachedAnswer
	err := s.db.Where("question_hash = ?", hash).First(&entry).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warnf("[AnswerCache] Lookup failed for hash %s...: %v", hash[:8], err)
		}
		return nil
	}

	now := time.Now()
	if entry.ExpiresAt.Before(now) {
		if delErr := s.db.Delete(&models.CachedAnswer{}, entry.ID).Error; delErr != nil {
			logger.Warnf("[AnswerCache] Failed to delete expired entry %d: %v", entry.ID, delErr)
		}
		return nil
	}

	if err := s.db.Model(&models.CachedAnswer{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"hit_count":  gorm.Expr("hit_count + 1"),
			"updated_at": now,
		}).Error; err != nil {
		logger.Warnf("[AnswerCache] Failed to bump hit count for entry %d: %v", entry.ID, err)
	}

	logger.Infof("[AnswerCache] Cache HIT: hash=%s..., hits=%d", hash[:8], entry.HitCount+1)

	return &CachedAnswerResult{
		Response: entry.Response,
		Metadata: AnswerMetadata{
			Model:            entry.Model,
			PromptTokens:     entry.PromptTokens,
			CompletionTokens: entry.CompletionTokens,
			TotalTokens:      entry.TotalTokens,
			FinishReason:     entry.FinishReason,
			Cost:             entry.Cost,
		},
	}
}

// Set upserts a cached answer with a fresh expiry at now + the service TTL.
func (s *AnswerCacheService) Set(question, response string, meta AnswerMetadata) {
	s.SetWithTTL(question, response, meta, s.ttl)
}

// SetWithTTL is Set with an explicit TTL for call sites that cache with a
// shorter lifetime. Hit counts are untouched: new rows start at 0 and updates
// keep the existing count.
func (s *AnswerCacheService) SetWithTTL(question, response string, meta AnswerMetadata, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.ttl
	}

	normalized := NormalizeQuestion(question)
	hash := QuestionHash(question)
	expiresAt := time.Now().Add(ttl)

	entry := models.CachedAnswer{
		QuestionHash:       hash,
		NormalizedQuestion: normalized,
		Response:           response,
		Model:              meta.Model,
		PromptTokens:       meta.PromptTokens,
		CompletionTokens:   meta.CompletionTokens,
		TotalTokens:        meta.TotalTokens,
		FinishReason:       meta.FinishReason,
		Cost:               meta.Cost,
		ExpiresAt:          expiresAt,
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "question_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"normalized_question", "response", "model", "prompt_tokens",
			"completion_tokens", "total_tokens", "finish_reason", "cost",
			"expires_at", "updated_at",
		}),
	}).Create(&entry).Error
	if err != nil {
		logger.Warnf("[AnswerCache] Failed to store answer for hash %s...: %v", hash[:8], err)
		return
	}

	logger.Infof("[AnswerCache] Stored answer: hash=%s..., expires=%s", hash[:8], expiresAt.Format(time.RFC3339))
}

// DeleteExpired removes all rows whose expiry has passed. Used by the
// retention sweeper; lazy expiry on Get covers rows read before the sweep.
func (s *AnswerCacheService) DeleteExpired() (int64, error) {
	result := s.db.Where("expires_at < ?", time.Now()).Delete(&models.CachedAnswer{})
	return result.RowsAffected, result.Error
}
