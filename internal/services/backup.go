package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jlaffaye/ftp"
	"gorm.io/gorm"

	"magazyn/internal/models"
	"magazyn/internal/utils/logger"
)

var backupLog = logger.New("BACKUP")

// BackupVersion is the format version stamped into every snapshot.
const BackupVersion = "1.0"

// BackupData is a point-in-time JSON export of the tracked collections.
// Password hashes are never serialized (json:"-" on the model) and message
// attachments are stripped before the snapshot is taken.
type BackupData struct {
	CreatedAt time.Time         `json:"created_at"`
	Version   string            `json:"version"`
	Data      BackupCollections `json:"data"`
}

type BackupCollections struct {
	Users         []models.User         `json:"users"`
	Devices       []models.Device       `json:"devices"`
	Installations []models.Installation `json:"installations"`
	Tasks         []models.Task         `json:"tasks"`
	Messages      []models.Message      `json:"messages"`
}

// BackupService serializes the database and delivers snapshots by email
// and/or FTP. A failed delivery channel is recorded in the backup log but
// never fails the backup itself.
type BackupService struct {
	db *gorm.DB
}

func NewBackupService(db *gorm.DB) *BackupService {
	return &BackupService{db: db}
}

// CreateBackupData snapshots users, devices, installations, tasks and
// messages into one document.
func (s *BackupService) CreateBackupData() (*BackupData, error) {
	data := &BackupData{
		CreatedAt: time.Now().UTC(),
		Version:   BackupVersion,
	}

	if err := s.db.Find(&data.Data.Users).Error; err != nil {
		return nil, fmt.Errorf("users snapshot: %w", err)
	}
	if err := s.db.Find(&data.Data.Devices).Error; err != nil {
		return nil, fmt.Errorf("devices snapshot: %w", err)
	}
	if err := s.db.Find(&data.Data.Installations).Error; err != nil {
		return nil, fmt.Errorf("installations snapshot: %w", err)
	}
	if err := s.db.Find(&data.Data.Tasks).Error; err != nil {
		return nil, fmt.Errorf("tasks snapshot: %w", err)
	}
	if err := s.db.Find(&data.Data.Messages).Error; err != nil {
		return nil, fmt.Errorf("messages snapshot: %w", err)
	}

	// Attachments are base64 blobs; they do not belong in a backup mail.
	for i := range data.Data.Messages {
		data.Data.Messages[i].Attachment = ""
	}

	return data, nil
}

// Serialize renders the snapshot as indented JSON.
func (s *BackupService) Serialize(data *BackupData) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

// Filename returns the canonical attachment name for a snapshot.
func Filename(createdAt time.Time) string {
	return fmt.Sprintf("magazyn_backup_%s.json", createdAt.Format("2006-01-02_150405"))
}

// Run creates a snapshot, optionally delivers it, and always records a
// BackupLog entry capturing size and per-channel outcome.
func (s *BackupService) Run(settings *models.BackupSettings, createdBy string, sendEmail, sendFTP bool) (*models.BackupLog, error) {
	data, err := s.CreateBackupData()
	if err != nil {
		return nil, err
	}

	payload, err := s.Serialize(data)
	if err != nil {
		return nil, err
	}

	filename := Filename(data.CreatedAt)
	entry := &models.BackupLog{
		CreatedBy: createdBy,
		SizeBytes: int64(len(payload)),
	}

	var errs []string
	if sendEmail {
		if err := s.SendEmail(settings, payload, filename); err != nil {
			errs = append(errs, fmt.Sprintf("email: %v", err))
			_ = backupLog.Error("backup email delivery failed", err)
		} else {
			entry.EmailSent = true
		}
	}
	if sendFTP {
		if err := s.SendFTP(settings, payload, filename); err != nil {
			errs = append(errs, fmt.Sprintf("ftp: %v", err))
			_ = backupLog.Error("backup ftp delivery failed", err)
		} else {
			entry.FTPSent = true
		}
	}
	entry.Error = strings.Join(errs, "; ")

	if err := s.db.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record backup log: %w", err)
	}

	backupLog.Success("backup complete: %d bytes, email=%t ftp=%t", entry.SizeBytes, entry.EmailSent, entry.FTPSent)
	return entry, nil
}

// SendEmail mails the snapshot as a JSON attachment. SMTPUseTLS selects
// implicit TLS; otherwise STARTTLS is negotiated when the server offers it.
func (s *BackupService) SendEmail(settings *models.BackupSettings, payload []byte, filename string) error {
	if settings.SMTPHost == "" || settings.SMTPTo == "" {
		return fmt.Errorf("konfiguracja SMTP jest niekompletna")
	}

	msg, err := buildBackupMail(settings.SMTPFrom, settings.SMTPTo, filename, payload)
	if err != nil {
		return err
	}

	auth := sasl.NewPlainClient("", settings.SMTPUsername, settings.SMTPPassword)
	addr := fmt.Sprintf("%s:%d", settings.SMTPHost, settings.SMTPPort)
	recipients := []string{settings.SMTPTo}

	if settings.SMTPUseTLS {
		return smtp.SendMailTLS(addr, auth, settings.SMTPFrom, recipients, bytes.NewReader(msg))
	}
	return smtp.SendMail(addr, auth, settings.SMTPFrom, recipients, bytes.NewReader(msg))
}

// SendFTP uploads the snapshot, creating the remote directory when missing.
func (s *BackupService) SendFTP(settings *models.BackupSettings, payload []byte, filename string) error {
	if settings.FTPHost == "" {
		return fmt.Errorf("konfiguracja FTP jest niekompletna")
	}

	conn, err := ftp.Dial(
		fmt.Sprintf("%s:%d", settings.FTPHost, settings.FTPPort),
		ftp.DialWithTimeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(settings.FTPUsername, settings.FTPPassword); err != nil {
		return fmt.Errorf("ftp login: %w", err)
	}

	remote := filename
	if settings.FTPDirectory != "" {
		if err := conn.ChangeDir(settings.FTPDirectory); err != nil {
			if err := conn.MakeDir(settings.FTPDirectory); err != nil {
				return fmt.Errorf("ftp mkdir: %w", err)
			}
			if err := conn.ChangeDir(settings.FTPDirectory); err != nil {
				return fmt.Errorf("ftp chdir: %w", err)
			}
		}
	}

	if err := conn.Stor(remote, bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("ftp upload: %w", err)
	}
	return nil
}

// TestEmail sends a short probe message with the given settings.
func (s *BackupService) TestEmail(settings *models.BackupSettings) error {
	body := []byte("Test konfiguracji email - Magazyn\r\n")
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Test backupu Magazyn\r\n\r\n%s",
		settings.SMTPFrom, settings.SMTPTo, body))

	auth := sasl.NewPlainClient("", settings.SMTPUsername, settings.SMTPPassword)
	addr := fmt.Sprintf("%s:%d", settings.SMTPHost, settings.SMTPPort)

	if settings.SMTPUseTLS {
		return smtp.SendMailTLS(addr, auth, settings.SMTPFrom, []string{settings.SMTPTo}, bytes.NewReader(msg))
	}
	return smtp.SendMail(addr, auth, settings.SMTPFrom, []string{settings.SMTPTo}, bytes.NewReader(msg))
}

// TestFTP verifies that the FTP server accepts the stored credentials.
func (s *BackupService) TestFTP(settings *models.BackupSettings) error {
	conn, err := ftp.Dial(
		fmt.Sprintf("%s:%d", settings.FTPHost, settings.FTPPort),
		ftp.DialWithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(settings.FTPUsername, settings.FTPPassword); err != nil {
		return fmt.Errorf("ftp login: %w", err)
	}
	return nil
}

// buildBackupMail renders a multipart MIME message carrying the snapshot as
// a base64 attachment.
func buildBackupMail(from, to, filename string, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: Backup bazy danych Magazyn\r\n")
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", writer.Boundary())

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	textPart, err := writer.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(textPart, "Automatyczny backup bazy danych Magazyn.\r\nPlik: %s\r\n", filename)

	attachHeader := textproto.MIMEHeader{}
	attachHeader.Set("Content-Type", "application/json")
	attachHeader.Set("Content-Transfer-Encoding", "base64")
	attachHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	attachPart, err := writer.CreatePart(attachHeader)
	if err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(payload)
	for len(encoded) > 0 {
		n := 76
		if len(encoded) < n {
			n = len(encoded)
		}
		if _, err := fmt.Fprintf(attachPart, "%s\r\n", encoded[:n]); err != nil {
			return nil, err
		}
		encoded = encoded[n:]
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
