package mailbox

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"

	"supportmail/utils"
)

// MailAttachment is one file extracted from a raw message, ready for storage.
type MailAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ProcessedMail is the normalized, read-only view of one inbound message that
// the pipeline consumes. Addresses are lower-cased; headers the grouping
// strategies care about are pre-extracted.
type ProcessedMail struct {
	MessageID      string
	To             []string
	From           []string
	SenderName     string
	OriginalSender string // primary sender address
	Subject        string
	InReplyTo      string // verbatim header value
	ReplyTo        string
	TextBody       string
	HTMLBody       string
	Attachments    []MailAttachment
}

// MailPresenter turns a raw RFC822 message into a ProcessedMail.
type MailPresenter interface {
	Process(raw io.Reader) (*ProcessedMail, error)
}

type messagePresenter struct{}

// NewMailPresenter returns the default presenter backed by go-message.
func NewMailPresenter() MailPresenter {
	return &messagePresenter{}
}

func (p *messagePresenter) Process(raw io.Reader) (*ProcessedMail, error) {
	mr, err := mail.CreateReader(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create message reader: %v", err)
	}

	pm := &ProcessedMail{
		MessageID: strings.Trim(mr.Header.Get("Message-Id"), "<> "),
		InReplyTo: strings.TrimSpace(mr.Header.Get("In-Reply-To")),
	}

	if subject, err := mr.Header.Subject(); err == nil {
		pm.Subject = subject
	}

	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		for _, addr := range from {
			pm.From = append(pm.From, utils.NormalizeAddress(addr.Address))
		}
		pm.SenderName = strings.TrimSpace(from[0].Name)
		pm.OriginalSender = utils.NormalizeAddress(from[0].Address)
	}

	for _, key := range []string{"To", "Cc"} {
		if list, err := mr.Header.AddressList(key); err == nil {
			for _, addr := range list {
				pm.To = append(pm.To, utils.NormalizeAddress(addr.Address))
			}
		}
	}

	if replyTo, err := mr.Header.AddressList("Reply-To"); err == nil && len(replyTo) > 0 {
		pm.ReplyTo = utils.NormalizeAddress(replyTo[0].Address)
	}

	// Process each message part
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to read next part: %v", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read part body: %v", err)
			}
			if strings.HasPrefix(contentType, "text/html") {
				pm.HTMLBody = string(body)
			} else {
				pm.TextBody = string(body)
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			content, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read attachment %s: %v", filename, err)
			}
			pm.Attachments = append(pm.Attachments, MailAttachment{
				Filename:    filename,
				ContentType: contentType,
				Content:     content,
			})
		}
	}

	return pm, nil
}
