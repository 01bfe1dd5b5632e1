package tasks

import (
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"magazyn/internal/models"
	"magazyn/internal/services"
	"magazyn/internal/utils/logger"
)

var log = logger.New("SCHEDULER")

// Scheduler runs the automatic backup job on a cron spec. Channel selection
// and the enabled flag are read from the stored settings at fire time, so
// admins can flip them without a restart.
type Scheduler struct {
	cron    *cron.Cron
	db      *gorm.DB
	backups *services.BackupService
	spec    string
}

func NewScheduler(db *gorm.DB, backups *services.BackupService, spec string) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		db:      db,
		backups: backups,
		spec:    spec,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runBackup); err != nil {
		return log.Error("invalid backup cron spec", err)
	}
	s.cron.Start()
	log.Info("automatic backup scheduled: %s", s.spec)
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runBackup() {
	var settings models.BackupSettings
	if err := s.db.First(&settings).Error; err != nil {
		log.Warn("backup settings not configured, skipping run")
		return
	}
	if !settings.AutoEnabled {
		log.Debug("automatic backups disabled, skipping run")
		return
	}

	entry, err := s.backups.Run(&settings, "system", settings.SendEmail, settings.SendFTP)
	if err != nil {
		_ = log.Error("scheduled backup failed", err)
		return
	}
	if entry.Error != "" {
		log.Warn("scheduled backup completed with delivery errors: %s", entry.Error)
	}
}
