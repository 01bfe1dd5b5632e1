package services

import (
	"gorm.io/gorm"

	"magazyn/internal/models"
	"magazyn/internal/utils/logger"
)

var activityLog = logger.New("ACTIVITY")

// ActivityLogger appends audit records for user-visible state transitions.
// Appends are best effort: the domain mutation is the source of truth and a
// failed append only produces a server-side log line, so the audit trail may
// under-report but never blocks a handler.
type ActivityLogger struct {
	db *gorm.DB
}

func NewActivityLogger(db *gorm.DB) *ActivityLogger {
	return &ActivityLogger{db: db}
}

// Log appends one audit record. deviceSerial may be empty for actions not
// tied to a device.
func (a *ActivityLogger) Log(user *models.User, action models.ActionType, description, deviceSerial string) {
	entry := &models.ActivityLog{
		UserID:       user.UserID,
		UserName:     user.Name,
		ActionType:   action,
		Description:  description,
		DeviceSerial: deviceSerial,
	}
	if err := a.db.Create(entry).Error; err != nil {
		_ = activityLog.Error("failed to append activity log", err)
	}
}
