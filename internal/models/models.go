package models

import (
	"time"

	"gorm.io/gorm"
)

// Device is a physical unit tracked in the warehouse. Serial uniqueness is
// enforced at insert time by the handlers, not by a storage constraint.
type Device struct {
	DeviceID     string       `gorm:"primaryKey" json:"device_id"`
	Nazwa        string       `gorm:"not null" json:"nazwa"`
	NumerSeryjny string       `gorm:"index;not null" json:"numer_seryjny"`
	KodKreskowy  string       `json:"kod_kreskowy"`
	KodQR        string       `json:"kod_qr"`
	PrzypisanyDo string       `gorm:"index" json:"przypisany_do"`
	Status       DeviceStatus `gorm:"not null;default:'dostepny'" json:"status"`
	Zainstalowal string       `json:"zainstalowal,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"-"`
}

func (d *Device) BeforeCreate(tx *gorm.DB) error {
	if d.DeviceID == "" {
		d.DeviceID = shortID("dev")
	}
	return nil
}

// Installation is an immutable record of a device installed at a customer
// site. The installer identity lives here and in Device.Zainstalowal; the
// device itself is handed back to the admin pool on creation.
type Installation struct {
	InstallationID  string    `gorm:"primaryKey" json:"installation_id"`
	DeviceID        string    `gorm:"index;not null" json:"device_id"`
	UserID          string    `gorm:"index;not null" json:"user_id"`
	NazwaUrzadzenia string    `json:"nazwa_urzadzenia"`
	AdresKlienta    string    `gorm:"not null" json:"adres_klienta"`
	Latitude        float64   `json:"latitude,omitempty"`
	Longitude       float64   `json:"longitude,omitempty"`
	RodzajZlecenia  string    `gorm:"index;default:'instalacja'" json:"rodzaj_zlecenia"`
	DataInstalacji  time.Time `json:"data_instalacji"`
}

func (i *Installation) BeforeCreate(tx *gorm.DB) error {
	if i.InstallationID == "" {
		i.InstallationID = shortID("inst")
	}
	if i.DataInstalacji.IsZero() {
		i.DataInstalacji = time.Now().UTC()
	}
	return nil
}

// Message is a chat entry; never edited or deleted.
type Message struct {
	MessageID      string    `gorm:"primaryKey" json:"message_id"`
	SenderID       string    `gorm:"index;not null" json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Content        string    `json:"content"`
	Attachment     string    `json:"attachment,omitempty"`
	AttachmentType string    `json:"attachment_type,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.MessageID == "" {
		m.MessageID = shortID("msg")
	}
	return nil
}

// Task is a planner entry assigned by an admin to a worker.
type Task struct {
	TaskID           string       `gorm:"primaryKey" json:"task_id"`
	Title            string       `gorm:"not null" json:"title"`
	Description      string       `json:"description"`
	AssignedTo       string       `gorm:"index;not null" json:"assigned_to"`
	AssignedBy       string       `gorm:"not null" json:"assigned_by"`
	DueDate          time.Time    `gorm:"index" json:"due_date"`
	Status           TaskStatus   `gorm:"not null;default:'oczekujace'" json:"status"`
	Priority         TaskPriority `gorm:"not null;default:'normalne'" json:"priority"`
	CompletionPhotos []string     `gorm:"serializer:json" json:"completion_photos,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	CompletedBy      string       `json:"completed_by,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"-"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.TaskID == "" {
		t.TaskID = shortID("task")
	}
	return nil
}

// DeviceReturn is a warehouse-return queue entry. At most one active
// (non-returned) entry may exist per serial.
type DeviceReturn struct {
	ReturnID            string     `gorm:"primaryKey" json:"return_id"`
	DeviceSerial        string     `gorm:"index;not null" json:"device_serial"`
	DeviceType          string     `json:"device_type"`
	DeviceStatus        string     `json:"device_status"`
	ReturnedToWarehouse bool       `gorm:"index;default:false" json:"returned_to_warehouse"`
	ReturnedAt          *time.Time `json:"returned_at,omitempty"`
	AddedBy             string     `json:"added_by"`
	CreatedAt           time.Time  `json:"created_at"`
}

func (r *DeviceReturn) BeforeCreate(tx *gorm.DB) error {
	if r.ReturnID == "" {
		r.ReturnID = shortID("ret")
	}
	return nil
}

// ActivityLog is an append-only audit record. Writes are best effort: a
// failed append never fails the mutation it describes.
type ActivityLog struct {
	LogID        string     `gorm:"primaryKey" json:"log_id"`
	UserID       string     `gorm:"index" json:"user_id"`
	UserName     string     `json:"user_name"`
	ActionType   ActionType `gorm:"index" json:"action_type"`
	Description  string     `json:"description"`
	DeviceSerial string     `gorm:"index" json:"device_serial,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.LogID == "" {
		a.LogID = shortID("log")
	}
	return nil
}

// BackupSettings is a singleton document holding delivery credentials for
// scheduled backups. Secrets are masked in read responses and preserved on
// partial updates.
type BackupSettings struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	SMTPHost     string    `json:"smtp_host"`
	SMTPPort     int       `json:"smtp_port"`
	SMTPUsername string    `json:"smtp_username"`
	SMTPPassword string    `json:"smtp_password"`
	SMTPFrom     string    `json:"smtp_from"`
	SMTPTo       string    `json:"smtp_to"`
	SMTPUseTLS   bool      `json:"smtp_use_tls"`
	FTPHost      string    `json:"ftp_host"`
	FTPPort      int       `json:"ftp_port"`
	FTPUsername  string    `json:"ftp_username"`
	FTPPassword  string    `json:"ftp_password"`
	FTPDirectory string    `json:"ftp_directory"`
	AutoEnabled  bool      `json:"auto_enabled"`
	SendEmail    bool      `json:"send_email"`
	SendFTP      bool      `json:"send_ftp"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BackupLog records one backup attempt, successful or not.
type BackupLog struct {
	BackupID  string    `gorm:"primaryKey" json:"backup_id"`
	CreatedBy string    `json:"created_by"`
	SizeBytes int64     `json:"size_bytes"`
	EmailSent bool      `json:"email_sent"`
	FTPSent   bool      `json:"ftp_sent"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (b *BackupLog) BeforeCreate(tx *gorm.DB) error {
	if b.BackupID == "" {
		b.BackupID = shortID("bak")
	}
	return nil
}
