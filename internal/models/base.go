package models

import (
	"fmt"

	"github.com/google/uuid"
)

// DeviceStatus Status enums
type DeviceStatus string
type TaskStatus string
type TaskPriority string
type UserRole string
type ActionType string

// Device status constants
const (
	DeviceStatusAvailable DeviceStatus = "dostepny"
	DeviceStatusAssigned  DeviceStatus = "przypisany"
	DeviceStatusInstalled DeviceStatus = "zainstalowany"
	DeviceStatusDamaged   DeviceStatus = "uszkodzony"
	DeviceStatusReturned  DeviceStatus = "zwrocony"
)

// Task status constants
const (
	TaskStatusPending    TaskStatus = "oczekujace"
	TaskStatusInProgress TaskStatus = "w_trakcie"
	TaskStatusDone       TaskStatus = "zakonczone"
)

// Task priority constants
const (
	TaskPriorityLow    TaskPriority = "niskie"
	TaskPriorityNormal TaskPriority = "normalne"
	TaskPriorityHigh   TaskPriority = "wysokie"
	TaskPriorityUrgent TaskPriority = "pilne"
)

// User role constants
const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleWorker UserRole = "pracownik"
)

// Activity log action types
const (
	ActionLogin         ActionType = "logowanie"
	ActionDeviceImport  ActionType = "import_urzadzen"
	ActionDeviceAdd     ActionType = "dodanie_urzadzenia"
	ActionDeviceAssign  ActionType = "przypisanie_urzadzenia"
	ActionDeviceRestore ActionType = "przywrocenie_urzadzenia"
	ActionDeviceDamaged ActionType = "uszkodzenie_urzadzenia"
	ActionInstallation  ActionType = "instalacja"
	ActionDeviceReturn  ActionType = "zwrot_urzadzenia"
	ActionBackup        ActionType = "backup"
	ActionPasswordReset ActionType = "reset_hasla"
)

// IsValidUserRole reports whether role is one of the known roles.
func IsValidUserRole(role UserRole) bool {
	return role == UserRoleAdmin || role == UserRoleWorker
}

// shortID mints a prefixed public identifier, e.g. "dev_1f2a9c0b4d6e".
func shortID(prefix string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%x", prefix, id[:6])
}
