package mailman

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// Message is the parsed form of a held message's raw RFC 2822 text.
type Message struct {
	Subject string

	// From is the bare sender address; FromName its display name, if any.
	From     string
	FromName string

	Date        time.Time
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Attachment holds metadata about a message attachment.
type Attachment struct {
	Filename string
	Size     int64
	MIMEType string
}

// ParseMessage parses the raw message text Mailman returns in a held
// message's "msg" field, extracting the headers shown to moderators, the
// text/plain and text/html bodies, and attachment metadata.
func ParseMessage(raw string) (Message, error) {
	// An unknown charset still yields a usable reader.
	mr, err := mail.CreateReader(bytes.NewReader([]byte(raw)))
	if mr == nil {
		return Message{}, fmt.Errorf("parsing held message: %w", err)
	}
	defer mr.Close()

	var msg Message
	msg.Subject, _ = mr.Header.Subject()
	msg.Date, _ = mr.Header.Date()
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
		msg.FromName = from[0].Name
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case contentType == "" || strings.HasPrefix(contentType, "text/plain"):
				if msg.TextBody == "" {
					msg.TextBody = string(body)
				}
			case strings.HasPrefix(contentType, "text/html"):
				if msg.HTMLBody == "" {
					msg.HTMLBody = string(body)
				}
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			// Read to get size without storing content
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			msg.Attachments = append(msg.Attachments, Attachment{
				Filename: filename,
				Size:     int64(len(body)),
				MIMEType: contentType,
			})
		}
	}

	return msg, nil
}

// Sender renders the sender as "Name <address>", or the bare address when
// the message carries no display name.
func (m Message) Sender() string {
	if m.FromName == "" {
		return m.From
	}
	return m.FromName + " <" + m.From + ">"
}
