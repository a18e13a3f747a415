package services

import (
	"os"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// MaintenanceService runs periodic housekeeping. Each run claims a
// scheduler_locks row for its period so a job fires once across replicas.
type MaintenanceService struct {
	db            *gorm.DB
	notifications *NotificationService
	payments      *PaymentService
	rules         *BusinessRules
	cronScheduler *cron.Cron
	instance      string
}

func NewMaintenanceService(db *gorm.DB, notifications *NotificationService, payments *PaymentService, rules *BusinessRules) *MaintenanceService {
	host, _ := os.Hostname()
	return &MaintenanceService{
		db:            db,
		notifications: notifications,
		payments:      payments,
		rules:         rules,
		instance:      host,
	}
}

type maintenanceJob struct {
	name   string
	spec   string
	period func(time.Time) string
	ttl    time.Duration
	run    func() (int64, error)
}

func dailyKey(t time.Time) string  { return t.UTC().Format("2006-01-02") }
func hourlyKey(t time.Time) string { return t.UTC().Format("2006-01-02T15") }

func (s *MaintenanceService) jobs() []maintenanceJob {
	return []maintenanceJob{
		{name: "purge_notifications", spec: "0 3 * * *", period: dailyKey, ttl: 24 * time.Hour, run: s.PurgeNotifications},
		{name: "mark_overdue_invoices", spec: "0 * * * *", period: hourlyKey, ttl: time.Hour, run: s.payments.MarkOverdueInvoices},
		{name: "expire_sessions", spec: "30 3 * * *", period: dailyKey, ttl: 24 * time.Hour, run: s.ExpireSessions},
	}
}

func (s *MaintenanceService) StartScheduler() error {
	s.cronScheduler = cron.New()
	for _, job := range s.jobs() {
		job := job
		if _, err := s.cronScheduler.AddFunc(job.spec, func() { s.runLocked(job, time.Now()) }); err != nil {
			return err
		}
		logger.Infof("[Maintenance] scheduled %s (cron: %s)", job.name, job.spec)
	}
	s.cronScheduler.Start()
	logger.Infof("[Maintenance] Scheduler started")
	return nil
}

func (s *MaintenanceService) StopScheduler() {
	if s.cronScheduler != nil {
		<-s.cronScheduler.Stop().Done()
	}
}

// acquire claims name for the period containing now. It reports false when
// another instance already holds it.
func (s *MaintenanceService) acquire(name, key string, ttl time.Duration, now time.Time) (bool, error) {
	return models.ClaimSchedulerLock(s.db, name, key, s.instance, ttl, now)
}

func (s *MaintenanceService) runLocked(job maintenanceJob, now time.Time) {
	ok, err := s.acquire(job.name, job.period(now), job.ttl, now)
	if err != nil {
		logger.Warnf("[Maintenance] %s lock failed: %v", job.name, err)
		return
	}
	if !ok {
		logger.Debug().Str("job", job.name).Msg("[Maintenance] already claimed for this period")
		return
	}
	n, err := job.run()
	if err != nil {
		logger.Error().Err(err).Str("job", job.name).Msg("[Maintenance] job failed")
		return
	}
	logger.Infof("[Maintenance] %s affected %d rows", job.name, n)
}

// PurgeNotifications removes read notifications past the retention window.
func (s *MaintenanceService) PurgeNotifications() (int64, error) {
	return s.notifications.Purge(s.rules.RetentionDays())
}

// ExpireSessions deactivates sessions whose expiry has passed.
func (s *MaintenanceService) ExpireSessions() (int64, error) {
	res := s.db.Model(&models.UserSession{}).
		Where("is_active = ? AND expires_at < ?", true, time.Now()).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
