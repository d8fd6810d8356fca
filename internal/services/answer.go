package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/studymate/backend/internal/config"
	"github.com/studymate/backend/pkg/logger"
	"gorm.io/gorm"
)

// Logical operation names used in usage accounting.
const (
	MethodGenerateAnswer = "generateAnswer"
	MethodAnalyzeAnswer  = "analyzeAnswer"
)

// AnswerRequest is one question from the application.
type AnswerRequest struct {
	Question    string      `json:"question"`
	ImageURLs   []string    `json:"images,omitempty"`
	UserContext UserContext `json:"user_context"`
	Flags       PromptFlags `json:"flags"`
}

// AnswerResponse is the mediated answer, with billing context.
type AnswerResponse struct {
	Answer string     `json:"answer"`
	Model  string     `json:"model"`
	Cached bool       `json:"cached"`
	Usage  TokenUsage `json:"usage"`
	Cost   float64    `json:"cost"`
}

// AnswerAnalysis is the structured assessment of a student's answer.
type AnswerAnalysis struct {
	Correct  bool     `json:"correct"`
	Score    float64  `json:"score"`
	Feedback string   `json:"feedback"`
	Mistakes []string `json:"mistakes"`
	Topics   []string `json:"topics"`
}

// AnswerService orchestrates the full request flow: normalize, cache lookup,
// prompt build, model routing, completion, cost, cache store and usage
// accounting. Cache and accounting failures never fail the request.
type AnswerService struct {
	cache         *AnswerCacheService
	usage         *UsageService
	queue         TaskQueue
	gateway       Completer
	router        *ModelRouter
	calculator    *CostCalculator
	prompts       *PromptBuilder
	configService *SystemConfigService
	aiCfg         *config.AIConfig
	cacheCfg      *config.CacheConfig
	monitoringCfg *config.MonitoringConfig
}

func NewAnswerService(db *gorm.DB, cfg *config.Config, queue TaskQueue) *AnswerService {
	return &AnswerService{
		cache:         NewAnswerCacheService(db, time.Duration(cfg.Cache.TTLSeconds)*time.Second),
		usage:         NewUsageService(db),
		queue:         queue,
		gateway:       NewCompletionGateway(&cfg.AI),
		router:        NewModelRouter(cfg.AI.CheapModel, cfg.AI.DefaultModel),
		calculator:    NewCostCalculator(DefaultPricing()),
		prompts:       NewPromptBuilder(""),
		configService: NewSystemConfigService(db),
		aiCfg:         &cfg.AI,
		cacheCfg:      &cfg.Cache,
		monitoringCfg: &cfg.Monitoring,
	}
}

// Usage returns the underlying usage service, for queue processors and the
// retention sweeper.
func (s *AnswerService) Usage() *UsageService { return s.usage }

// Cache returns the underlying cache service, for the retention sweeper.
func (s *AnswerService) Cache() *AnswerCacheService { return s.cache }

func (s *AnswerService) cacheEnabled() bool {
	return s.cacheCfg.Enabled && s.configService.CacheEnabled()
}

func (s *AnswerService) monitoringEnabled() bool {
	return s.monitoringCfg.Enabled && s.configService.MonitoringEnabled()
}

// answerCacheTTL resolves the answer TTL at store time so runtime changes to
// cache_ttl_seconds apply without a restart.
func (s *AnswerService) answerCacheTTL() time.Duration {
	secs := int64(s.configService.CacheTTLSeconds())
	if secs <= 0 {
		secs = s.cacheCfg.TTLSeconds
	}
	return time.Duration(secs) * time.Second
}

// GenerateAnswer answers a student question, serving from the cache when an
// unexpired answer for the same normalized question exists.
func (s *AnswerService) GenerateAnswer(ctx context.Context, req *AnswerRequest) (*AnswerResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	useCache := s.cacheEnabled() && len(req.ImageURLs) == 0

	if useCache {
		if hit := s.cache.Get(question); hit != nil {
			s.recordUsage(&UsageEvent{
				Model:     hit.Metadata.Model,
				Method:    MethodGenerateAnswer,
				Timestamp: time.Now(),
				Cached:    true,
			})
			return &AnswerResponse{
				Answer: hit.Response,
				Model:  hit.Metadata.Model,
				Cached: true,
				Usage: TokenUsage{
					PromptTokens:     hit.Metadata.PromptTokens,
					CompletionTokens: hit.Metadata.CompletionTokens,
					TotalTokens:      hit.Metadata.TotalTokens,
				},
				Cost: hit.Metadata.Cost,
			}, nil
		}
	}

	systemPrompt := s.prompts.Build(req.UserContext, req.Flags, question)
	model := s.router.SelectModel(question, len(req.ImageURLs) > 0, FormatText)

	completion, err := s.gateway.Complete(ctx, &CompletionRequest{
		SystemPrompt: systemPrompt,
		UserContent:  question,
		ImageURLs:    req.ImageURLs,
		Model:        model,
		Temperature:  s.aiCfg.Temperature,
		MaxTokens:    s.aiCfg.MaxTokens,
		Format:       FormatText,
	})
	if err != nil {
		return nil, err
	}

	cost := s.calculator.Cost(model, completion.Usage.PromptTokens, completion.Usage.CompletionTokens)

	if useCache {
		s.cache.SetWithTTL(question, completion.Content, AnswerMetadata{
			Model:            model,
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
			FinishReason:     completion.FinishReason,
			Cost:             cost,
		}, s.answerCacheTTL())
	}

	s.recordUsage(&UsageEvent{
		Model:            model,
		Method:           MethodGenerateAnswer,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
		TotalTokens:      completion.Usage.TotalTokens,
		EstimatedCost:    cost,
		Timestamp:        time.Now(),
	})

	return &AnswerResponse{
		Answer: completion.Content,
		Model:  model,
		Usage:  completion.Usage,
		Cost:   cost,
	}, nil
}

const analyzePrompt = `You are assessing a student's answer to a question.
Respond with a single JSON object with exactly these fields:
"correct" (boolean), "score" (number 0-100), "feedback" (string),
"mistakes" (array of strings), "topics" (array of strings).
Do not include any text outside the JSON object.`

// Analyze assesses a student's answer to a question and returns a structured
// result. Uses the capable model with JSON output; results are cached with a
// short TTL since answer text varies far more than questions do.
func (s *AnswerService) Analyze(ctx context.Context, question, answer string, userCtx UserContext) (*AnswerAnalysis, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return nil, fmt.Errorf("question and answer are required")
	}

	// Prefix keeps analysis entries from colliding with plain answers.
	cacheKey := "analyze: " + question + " | " + answer
	model := s.router.SelectModel(question, false, FormatJSON)

	if s.cacheEnabled() {
		if hit := s.cache.Get(cacheKey); hit != nil {
			analysis, err := parseAnalysis(hit.Response)
			if err == nil {
				s.recordUsage(&UsageEvent{
					Model:     hit.Metadata.Model,
					Method:    MethodAnalyzeAnswer,
					Timestamp: time.Now(),
					Cached:    true,
				})
				return analysis, nil
			}
			logger.Warnf("[Answer] Cached analysis unparseable, refetching: %v", err)
		}
	}

	userContent := fmt.Sprintf("Question:\n%s\n\nStudent's answer:\n%s", question, answer)
	if userCtx.GradeLevel != "" {
		userContent += fmt.Sprintf("\n\nThe student is at %s level.", userCtx.GradeLevel)
	}

	completion, err := s.gateway.Complete(ctx, &CompletionRequest{
		SystemPrompt: analyzePrompt,
		UserContent:  userContent,
		Model:        model,
		Temperature:  0.2,
		MaxTokens:    s.aiCfg.MaxTokens,
		Format:       FormatJSON,
	})
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysis(completion.Content)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}

	cost := s.calculator.Cost(model, completion.Usage.PromptTokens, completion.Usage.CompletionTokens)

	if s.cacheEnabled() {
		ttl := time.Duration(s.configService.AnalyzeCacheTTLSeconds()) * time.Second
		s.cache.SetWithTTL(cacheKey, completion.Content, AnswerMetadata{
			Model:            model,
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
			FinishReason:     completion.FinishReason,
			Cost:             cost,
		}, ttl)
	}

	s.recordUsage(&UsageEvent{
		Model:            model,
		Method:           MethodAnalyzeAnswer,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
		TotalTokens:      completion.Usage.TotalTokens,
		EstimatedCost:    cost,
		Timestamp:        time.Now(),
	})

	return analysis, nil
}

// parseAnalysis decodes the model's JSON output, tolerating markdown code
// fences some models wrap around JSON despite instructions.
func parseAnalysis(content string) (*AnswerAnalysis, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var analysis AnswerAnalysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// recordUsage hands the event to the task queue. Accounting is best-effort:
// failures are logged and swallowed, never surfaced to the caller.
func (s *AnswerService) recordUsage(event *UsageEvent) {
	if !s.monitoringEnabled() {
		return
	}
	if s.queue == nil {
		if err := s.usage.Record(event); err != nil {
			logger.Warnf("[Answer] Failed to record usage: %v", err)
		}
		return
	}
	if err := s.queue.Enqueue(event); err != nil {
		logger.Warnf("[Answer] Failed to enqueue usage event: %v", err)
	}
}

// GetUsageStats returns the day's bucket; date defaults to today.
func (s *AnswerService) GetUsageStats(date string) (*UsageStats, error) {
	if date == "" {
		date = DayKey(time.Now())
	}
	return s.usage.GetDailyStats(date)
}

// GetMonthlyUsageStats returns the month's bucket; month defaults to the
// current month.
func (s *AnswerService) GetMonthlyUsageStats(month string) (*UsageStats, error) {
	if month == "" {
		month = MonthKey(time.Now())
	}
	return s.usage.GetMonthlyStats(month)
}
