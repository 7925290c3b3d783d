package worker

import (
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	imapserver "github.com/emersion/go-imap/server"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"supportmail/config"
	"supportmail/mailbox"
	"supportmail/models"
	"supportmail/utils"
)

func newWorkerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newWorkerTestPipeline(t *testing.T, db *gorm.DB) *mailbox.IntakePipeline {
	t.Helper()
	policy, err := mailbox.NewSenderPolicy(`(?i)^notifications@`)
	if err != nil {
		t.Fatalf("NewSenderPolicy() error = %v", err)
	}
	return mailbox.NewIntakePipeline(
		db,
		mailbox.NewChannelResolver(db, nil),
		mailbox.NewThreadKeyExtractor(mailbox.InReplyToStrategy{}),
		policy,
		mailbox.NewMailPresenter(),
		log.New(io.Discard, "", 0),
	)
}

// startTestIMAPServer serves go-imap's memory backend on a loopback port. The
// backend ships with one already-seen message; the returned backend lets tests
// append unseen ones.
func startTestIMAPServer(t *testing.T) (*memory.Backend, int) {
	t.Helper()
	be := memory.New()
	s := imapserver.New(be)
	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go s.Serve(l)
	t.Cleanup(func() { s.Close() })

	return be, l.Addr().(*net.TCPAddr).Port
}

func appendUnseenMessage(t *testing.T, be *memory.Backend, raw string) {
	t.Helper()
	user, err := be.Login(nil, "username", "password")
	if err != nil {
		t.Fatalf("backend login failed: %v", err)
	}
	mbox, err := user.GetMailbox("INBOX")
	if err != nil {
		t.Fatalf("failed to open backend INBOX: %v", err)
	}
	if err := mbox.CreateMessage(nil, time.Now(), strings.NewReader(raw)); err != nil {
		t.Fatalf("failed to append message: %v", err)
	}
}

// Full sweep against a live IMAP server: only unseen mail is fetched, the
// pipeline stores it, and processed messages are flagged seen by UID so the
// next sweep finds nothing.
func TestFetchFromIMAPProcessesUnseenAndMarksSeen(t *testing.T) {
	db := newWorkerTestDB(t)

	account := models.Account{Name: "Acme", Active: true}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	inbox := models.Inbox{AccountID: account.ID, Name: "Support"}
	if err := db.Create(&inbox).Error; err != nil {
		t.Fatalf("failed to seed inbox: %v", err)
	}

	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"
	encrypted, err := utils.Encrypt("password")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	be, port := startTestIMAPServer(t)
	appendUnseenMessage(t, be, strings.Join([]string{
		"From: Dana Smith <dana@example.com>",
		"To: support@acme.test",
		"Subject: Order question",
		"Message-Id: <msg1@example.com>",
		"Content-Type: text/plain",
		"",
		"Hello, where is my order?",
	}, "\r\n")+"\r\n")

	channel := models.Channel{
		AccountID:      account.ID,
		InboxID:        inbox.ID,
		Email:          "support@acme.test",
		IMAPEnabled:    true,
		IMAPHost:       "127.0.0.1",
		IMAPPort:       port,
		IMAPUsername:   "username",
		IMAPPassword:   encrypted,
		IMAPEncryption: "NONE",
		IMAPMailbox:    "INBOX",
	}
	if err := db.Create(&channel).Error; err != nil {
		t.Fatalf("failed to seed channel: %v", err)
	}

	worker := NewIntakeWorker(db, newWorkerTestPipeline(t, db), log.New(io.Discard, "", 0), time.Minute)

	if err := worker.fetchFromIMAP(&channel); err != nil {
		t.Fatalf("fetchFromIMAP() error = %v", err)
	}

	var messages int64
	if err := db.Model(&models.Message{}).Count(&messages).Error; err != nil {
		t.Fatalf("failed to count messages: %v", err)
	}
	if messages != 1 {
		t.Fatalf("messages = %d, want 1 (the backend's pre-seen message must stay untouched)", messages)
	}

	var stored models.Message
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("failed to load message: %v", err)
	}
	if stored.SourceID != "msg1@example.com" {
		t.Errorf("SourceID = %q", stored.SourceID)
	}

	// The processed message is now flagged seen; a second sweep is a no-op.
	if err := worker.fetchFromIMAP(&channel); err != nil {
		t.Fatalf("fetchFromIMAP() second sweep error = %v", err)
	}
	if err := db.Model(&models.Message{}).Count(&messages).Error; err != nil {
		t.Fatalf("failed to count messages: %v", err)
	}
	if messages != 1 {
		t.Errorf("messages after second sweep = %d, want 1", messages)
	}
}
