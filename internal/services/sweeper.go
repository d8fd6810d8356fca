package services

import (
	"github.com/robfig/cron/v3"
	"github.com/studymate/backend/pkg/logger"
)

// SweeperService periodically evicts expired cache rows and usage buckets
// that have aged past their retention window.
type SweeperService struct {
	cache         *AnswerCacheService
	usage         *UsageService
	configService *SystemConfigService
	cronScheduler *cron.Cron
}

func NewSweeperService(cache *AnswerCacheService, usage *UsageService, configService *SystemConfigService) *SweeperService {
	return &SweeperService{
		cache:         cache,
		usage:         usage,
		configService: configService,
	}
}

// StartScheduler runs the sweep once per day shortly after midnight.
func (s *SweeperService) StartScheduler() {
	s.cronScheduler = cron.New()
	if _, err := s.cronScheduler.AddFunc("10 0 * * *", func() {
		s.Sweep()
	}); err != nil {
		logger.Errorf("[Sweeper] Failed to add cron job: %v", err)
		return
	}
	s.cronScheduler.Start()
	logger.Infof("[Sweeper] Scheduled daily at 00:10")
}

func (s *SweeperService) StopScheduler() {
	if s.cronScheduler != nil {
		s.cronScheduler.Stop()
	}
}

// Sweep removes expired cache entries and usage buckets outside the
// configured retention windows. Retention is read at sweep time so config
// changes take effect without a restart.
func (s *SweeperService) Sweep() {
	removed, err := s.cache.DeleteExpired()
	if err != nil {
		logger.Errorf("[Sweeper] Cache sweep failed: %v", err)
	} else if removed > 0 {
		logger.Infof("[Sweeper] Removed %d expired cache entries", removed)
	}

	daily := s.configService.DailyRetentionDays()
	monthly := s.configService.MonthlyRetentionDays()
	removed, err = s.usage.CleanupBuckets(daily, monthly)
	if err != nil {
		logger.Errorf("[Sweeper] Usage bucket sweep failed: %v", err)
	} else if removed > 0 {
		logger.Infof("[Sweeper] Removed %d aged usage buckets", removed)
	}
}
