package worker

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"gorm.io/gorm"

	"supportmail/mailbox"
	"supportmail/models"
	"supportmail/utils"
)

// IntakeWorker sweeps every IMAP-enabled channel on a ticker and runs each
// unseen message through the intake pipeline. Messages are only marked seen
// after the pipeline commits (or deliberately skips), so a failed transaction
// is retried on the next sweep.
type IntakeWorker struct {
	db       *gorm.DB
	pipeline *mailbox.IntakePipeline
	logger   *log.Logger
	interval time.Duration
}

func NewIntakeWorker(db *gorm.DB, pipeline *mailbox.IntakePipeline, logger *log.Logger, interval time.Duration) *IntakeWorker {
	return &IntakeWorker{
		db:       db,
		pipeline: pipeline,
		logger:   logger,
		interval: interval,
	}
}

func (iw *IntakeWorker) Start(ctx context.Context) {
	iw.logger.Println("Starting intake worker...")
	ticker := time.NewTicker(iw.interval)

	for {
		select {
		case <-ticker.C:
			iw.sweepChannels()
		case <-ctx.Done():
			iw.logger.Println("Stopping intake worker...")
			ticker.Stop()
			return
		}
	}
}

func (iw *IntakeWorker) sweepChannels() {
	var channels []models.Channel
	if err := iw.db.Where("imap_enabled = ? AND imap_host <> ''", true).Find(&channels).Error; err != nil {
		iw.logger.Printf("Failed to fetch channels: %v", err)
		return
	}

	for _, channel := range channels {
		if err := iw.fetchFromIMAP(&channel); err != nil {
			iw.logger.Printf("Failed to fetch mail for channel %d (%s): %v", channel.ID, channel.Email, err)
			utils.LogError("imap_fetch_failed", err, map[string]interface{}{
				"channel_id": channel.ID,
				"email":      channel.Email,
			})
			continue
		}
	}
}

func (iw *IntakeWorker) fetchFromIMAP(channel *models.Channel) error {
	password, err := utils.Decrypt(channel.IMAPPassword)
	if err != nil {
		return fmt.Errorf("failed to decrypt IMAP password: %v", err)
	}

	var imapClient *client.Client
	imapAddr := fmt.Sprintf("%s:%d", channel.IMAPHost, channel.IMAPPort)

	switch strings.ToUpper(channel.IMAPEncryption) {
	case "SSL", "TLS":
		imapClient, err = client.DialTLS(imapAddr, &tls.Config{
			InsecureSkipVerify: false,
			ServerName:         channel.IMAPHost,
		})
	case "STARTTLS":
		imapClient, err = client.Dial(imapAddr)
		if err == nil {
			err = imapClient.StartTLS(&tls.Config{
				InsecureSkipVerify: false,
				ServerName:         channel.IMAPHost,
			})
		}
	default:
		imapClient, err = client.Dial(imapAddr)
	}

	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %v", err)
	}
	defer imapClient.Logout()

	if err := imapClient.Login(channel.IMAPUsername, password); err != nil {
		return fmt.Errorf("failed to login to IMAP server: %v", err)
	}

	mbox := "INBOX"
	if channel.IMAPMailbox != "" {
		mbox = channel.IMAPMailbox
	}

	if _, err := imapClient.Select(mbox, false); err != nil {
		return fmt.Errorf("failed to select mailbox: %v", err)
	}

	// UID commands throughout: sequence numbers shift when another client
	// expunges between search and store, UIDs do not.
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{"\\Seen"}
	uids, err := imapClient.UidSearch(criteria)
	if err != nil {
		return fmt.Errorf("failed to search messages: %v", err)
	}

	if len(uids) == 0 {
		return nil
	}

	uidset := new(imap.SeqSet)
	uidset.AddNum(uids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	// BODY.PEEK keeps messages unseen until the pipeline commits.
	go func() {
		done <- imapClient.UidFetch(uidset, []imap.FetchItem{imap.FetchUid, imap.FetchItem("BODY.PEEK[]")}, messages)
	}()

	handled := new(imap.SeqSet)
	for msg := range messages {
		if err := iw.processMessage(msg); err != nil {
			iw.logger.Printf("Failed to process message %d on channel %d: %v", msg.Uid, channel.ID, err)
			continue
		}
		handled.AddNum(msg.Uid)
	}

	if err := <-done; err != nil {
		return fmt.Errorf("error during fetch: %v", err)
	}

	if !handled.Empty() {
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := imapClient.UidStore(handled, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			return fmt.Errorf("failed to mark messages seen: %v", err)
		}
	}

	return nil
}

func (iw *IntakeWorker) processMessage(msg *imap.Message) error {
	section := &imap.BodySectionName{Peek: true}
	literal := msg.GetBody(section)
	if literal == nil {
		return fmt.Errorf("message body not found")
	}

	raw, err := io.ReadAll(literal)
	if err != nil {
		return fmt.Errorf("failed to read message body: %v", err)
	}

	result, err := iw.pipeline.ProcessRaw(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	if result.Outcome == mailbox.OutcomeSkipped {
		iw.logger.Printf("Message %d skipped: %s", msg.Uid, result.SkipReason)
	}
	return nil
}
