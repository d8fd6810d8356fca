package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/studymate/backend/internal/config"
	"github.com/studymate/backend/internal/models"
	"gorm.io/gorm"
)

type fakeCompleter struct {
	calls   int
	resp    *Completion
	err     error
	lastReq *CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	resp := *f.resp
	resp.Model = req.Model
	return &resp, nil
}

func newTestAnswerService(db *gorm.DB, gateway Completer) *AnswerService {
	cfg := config.DefaultConfig()
	cfg.AI.CheapModel = "cheap"
	cfg.AI.DefaultModel = "capable"

	return &AnswerService{
		cache:         NewAnswerCacheService(db, 0),
		usage:         NewUsageService(db),
		gateway:       gateway,
		router:        NewModelRouter(cfg.AI.CheapModel, cfg.AI.DefaultModel),
		calculator:    NewCostCalculator(DefaultPricing()),
		prompts:       NewPromptBuilder(""),
		configService: NewSystemConfigService(db),
		aiCfg:         &cfg.AI,
		cacheCfg:      &cfg.Cache,
		monitoringCfg: &cfg.Monitoring,
	}
}

func textCompletion(content string, promptTokens, completionTokens int) *Completion {
	return &Completion{
		Content: content,
		Usage: TokenUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
		FinishReason: "stop",
	}
}

func TestGenerateAnswer_MissThenHit(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeCompleter{resp: textCompletion("4", 20, 5)}
	svc := newTestAnswerService(db, fake)

	// Miss: goes to the gateway, stores the answer, accounts one request
	resp, err := svc.GenerateAnswer(context.Background(), &AnswerRequest{Question: "2+2=?"})
	if err != nil {
		t.Fatalf("GenerateAnswer failed: %v", err)
	}
	if resp.Cached {
		t.Error("first request should be a miss")
	}
	if resp.Answer != "4" {
		t.Errorf("Answer = %q, expected %q", resp.Answer, "4")
	}
	if resp.Model != "cheap" {
		t.Errorf("Model = %q, short simple question should route cheap", resp.Model)
	}
	if fake.calls != 1 {
		t.Fatalf("gateway calls = %d, expected 1", fake.calls)
	}

	// Whitespace variant: cache hit, no second gateway call
	resp, err = svc.GenerateAnswer(context.Background(), &AnswerRequest{Question: "  2+2=?  "})
	if err != nil {
		t.Fatalf("GenerateAnswer (hit) failed: %v", err)
	}
	if !resp.Cached {
		t.Error("second identical request should be a cache hit")
	}
	if resp.Answer != "4" {
		t.Errorf("cached Answer = %q, expected %q", resp.Answer, "4")
	}
	if fake.calls != 1 {
		t.Errorf("gateway calls = %d, cache hit must not call the gateway", fake.calls)
	}

	// Accounting: two requests, one cache hit, tokens counted once
	stats, err := svc.GetUsageStats(DayKey(time.Now()))
	if err != nil || stats == nil {
		t.Fatalf("GetUsageStats failed: %v", err)
	}
	if stats.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, expected 2", stats.TotalRequests)
	}
	if stats.CacheHits != 1 {
		t.Errorf("CacheHits = %d, expected 1", stats.CacheHits)
	}
	if stats.TotalTokens != 25 {
		t.Errorf("TotalTokens = %d, expected 25 (hit adds nothing)", stats.TotalTokens)
	}
	if stats.ByMethod[MethodGenerateAnswer].Requests != 1 {
		t.Errorf("byMethod requests = %d, expected 1 non-cached", stats.ByMethod[MethodGenerateAnswer].Requests)
	}
}

func TestGenerateAnswer_ImagesRouteCapableAndSkipCache(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeCompleter{resp: textCompletion("a cat", 100, 20)}
	svc := newTestAnswerService(db, fake)

	resp, err := svc.GenerateAnswer(context.Background(), &AnswerRequest{
		Question:  "hi",
		ImageURLs: []string{"http://x/img.png"},
	})
	if err != nil {
		t.Fatalf("GenerateAnswer failed: %v", err)
	}
	if resp.Model != "capable" {
		t.Errorf("Model = %q, image requests must route capable", resp.Model)
	}
	if len(fake.lastReq.ImageURLs) != 1 {
		t.Error("image URLs should be forwarded to the gateway")
	}

	// Same text again with images: answers depend on the image, so the
	// question-keyed cache is bypassed both ways
	svc.GenerateAnswer(context.Background(), &AnswerRequest{
		Question:  "hi",
		ImageURLs: []string{"http://x/other.png"},
	})
	if fake.calls != 2 {
		t.Errorf("gateway calls = %d, image requests must not be served from cache", fake.calls)
	}
}

func TestGenerateAnswer_EmptyQuestion(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAnswerService(db, &fakeCompleter{resp: textCompletion("x", 1, 1)})

	if _, err := svc.GenerateAnswer(context.Background(), &AnswerRequest{Question: "   "}); err == nil {
		t.Error("empty question should be rejected")
	}
}

func TestGenerateAnswer_UpstreamErrorPropagates(t *testing.T) {
	db := newTestDB(t)
	upstream := &UpstreamError{Provider: "openai", Model: "cheap", Err: errors.New("rate limited")}
	svc := newTestAnswerService(db, &fakeCompleter{err: upstream})

	_, err := svc.GenerateAnswer(context.Background(), &AnswerRequest{Question: "2+2=?"})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Errorf("expected UpstreamError, got %v", err)
	}

	// A failed completion must not leave a cache entry behind
	if svc.cache.Get("2+2=?") != nil {
		t.Error("failed completion should not be cached")
	}
}

func TestGenerateAnswer_CacheDisabled(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeCompleter{resp: textCompletion("4", 20, 5)}
	svc := newTestAnswerService(db, fake)
	svc.cacheCfg.Enabled = false

	svc.GenerateAnswer(context.Background(), &AnswerRequest{Question: "2+2=?"})
	svc.GenerateAnswer(context.Background(), &AnswerRequest{Question: "2+2=?"})

	if fake.calls != 2 {
		t.Errorf("gateway calls = %d, disabled cache must not serve hits", fake.calls)
	}
}

func TestGenerateAnswer_RuntimeCacheToggle(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeCompleter{resp: textCompletion("4", 20, 5)}
	svc := newTestAnswerService(db, fake)

	// Disable via the runtime system config rather than the static config
	svc.configService.Set("cache_enabled", "false")

	svc.GenerateAnswer(context.Background(), &AnswerRequest{Question: "2+2=?"})
	svc.GenerateAnswer(context.Background(), &AnswerRequest{Question: "2+2=?"})
	if fake.calls != 2 {
		t.Errorf("gateway calls = %d, runtime-disabled cache must not serve hits", fake.calls)
	}
}

func TestGenerateAnswer_RuntimeTTLSetting(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeCompleter{resp: textCompletion("4", 20, 5)}
	svc := newTestAnswerService(db, fake)

	// Shorten the TTL via the runtime setting; the stored row must expire
	// in about a minute instead of the 30-day static default
	svc.configService.Set("cache_ttl_seconds", "60")

	before := time.Now()
	if _, err := svc.GenerateAnswer(context.Background(), &AnswerRequest{Question: "2+2=?"}); err != nil {
		t.Fatalf("GenerateAnswer failed: %v", err)
	}

	var row models.CachedAnswer
	if err := db.Where("question_hash = ?", QuestionHash("2+2=?")).First(&row).Error; err != nil {
		t.Fatalf("cached row not found: %v", err)
	}
	if row.ExpiresAt.Before(before.Add(30 * time.Second)) {
		t.Errorf("ExpiresAt = %v, expired too soon for a 60s TTL", row.ExpiresAt)
	}
	if row.ExpiresAt.After(before.Add(2 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, runtime TTL setting was not applied", row.ExpiresAt)
	}
}

func TestAnalyze_StructuredResult(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeCompleter{resp: textCompletion(
		`{"correct": true, "score": 90, "feedback": "well done", "mistakes": [], "topics": ["arithmetic"]}`, 50, 30)}
	svc := newTestAnswerService(db, fake)

	analysis, err := svc.Analyze(context.Background(), "2+2=?", "4", UserContext{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !analysis.Correct || analysis.Score != 90 {
		t.Errorf("unexpected analysis: %+v", analysis)
	}
	if len(analysis.Topics) != 1 || analysis.Topics[0] != "arithmetic" {
		t.Errorf("Topics = %v, expected [arithmetic]", analysis.Topics)
	}
	if fake.lastReq.Format != FormatJSON {
		t.Error("analysis must request JSON output")
	}
	if fake.lastReq.Model != "capable" {
		t.Errorf("Model = %q, JSON output must route capable", fake.lastReq.Model)
	}

	// Second identical analysis comes from the cache
	_, err = svc.Analyze(context.Background(), "2+2=?", "4", UserContext{})
	if err != nil {
		t.Fatalf("Analyze (cached) failed: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("gateway calls = %d, repeated analysis should hit the cache", fake.calls)
	}

	stats, _ := svc.GetUsageStats(DayKey(time.Now()))
	if stats == nil || stats.ByMethod[MethodAnalyzeAnswer].Requests != 1 {
		t.Error("analysis usage should be recorded under analyzeAnswer")
	}
}

func TestAnalyze_MalformedJSON(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeCompleter{resp: textCompletion("sorry, I cannot do that", 10, 10)}
	svc := newTestAnswerService(db, fake)

	_, err := svc.Analyze(context.Background(), "2+2=?", "4", UserContext{})
	var se *SerializationError
	if !errors.As(err, &se) {
		t.Errorf("expected SerializationError, got %v", err)
	}
}

func TestParseAnalysis_CodeFences(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bare json", `{"correct": true, "score": 80, "feedback": "ok"}`},
		{"json fence", "```json\n{\"correct\": true, \"score\": 80, \"feedback\": \"ok\"}\n```"},
		{"plain fence", "```\n{\"correct\": true, \"score\": 80, \"feedback\": \"ok\"}\n```"},
		{"padded", "  \n{\"correct\": true, \"score\": 80, \"feedback\": \"ok\"}\n  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis, err := parseAnalysis(tt.content)
			if err != nil {
				t.Fatalf("parseAnalysis failed: %v", err)
			}
			if !analysis.Correct || analysis.Score != 80 {
				t.Errorf("unexpected analysis: %+v", analysis)
			}
		})
	}
}

func TestGenerateAnswer_MonitoringDisabled(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeCompleter{resp: textCompletion("4", 20, 5)}
	svc := newTestAnswerService(db, fake)
	svc.monitoringCfg.Enabled = false

	svc.GenerateAnswer(context.Background(), &AnswerRequest{Question: "2+2=?"})

	stats, err := svc.GetUsageStats(DayKey(time.Now()))
	if err != nil {
		t.Fatalf("GetUsageStats failed: %v", err)
	}
	if stats != nil {
		t.Errorf("disabled monitoring should record nothing, got %+v", stats)
	}
}
