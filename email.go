package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

// emailExtractor pulls invoice attachments out of a company's mail inbox:
// connect over TLS, filter by date window, walk each multipart message, and
// save the non-text attachment parts under <output>/<YYYY-MM>/.
type emailExtractor struct {
	company   CompanyConfig
	outputDir string
	daysBack  int
	log       *zap.SugaredLogger
}

func newEmailExtractor(cfg *Config, company CompanyConfig, log *zap.SugaredLogger) *emailExtractor {
	return &emailExtractor{
		company:   company,
		outputDir: cfg.OutputDir(company),
		daysBack:  cfg.EmailDaysBack,
		log:       log,
	}
}

// Run processes the inbox and returns the number of attachments saved.
func (e *emailExtractor) Run() (int, error) {
	emailCfg := e.company.Email
	addr := fmt.Sprintf("%s:%d", emailCfg.IMAPServer, emailCfg.IMAPPort)
	fmt.Printf("📧 Connecting to %s...\n", addr)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to mail server: %w", err)
	}
	defer func() {
		// Best-effort teardown; servers drop dead connections anyway.
		_ = c.Logout()
	}()

	if err := c.Login(emailCfg.Address, emailCfg.Password); err != nil {
		return 0, fmt.Errorf("mail login failed: %w", err)
	}

	if _, err := c.Select("INBOX", true); err != nil {
		return 0, fmt.Errorf("failed to open INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().AddDate(0, 0, -e.daysBack)
	ids, err := c.Search(criteria)
	if err != nil {
		return 0, fmt.Errorf("mail search failed: %w", err)
	}
	if len(ids) == 0 {
		fmt.Printf("   No messages in the last %d days\n", e.daysBack)
		return 0, nil
	}
	fmt.Printf("   %d messages in the last %d days\n", len(ids), e.daysBack)

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	saved := 0
	for msg := range messages {
		n, err := e.saveAttachments(msg, section)
		if err != nil {
			e.log.Debugw("message skipped", "error", err)
			continue
		}
		saved += n
	}
	if err := <-done; err != nil {
		return saved, fmt.Errorf("mail fetch failed: %w", err)
	}
	return saved, nil
}

func (e *emailExtractor) saveAttachments(msg *imap.Message, section *imap.BodySectionName) (int, error) {
	body := msg.GetBody(section)
	if body == nil {
		return 0, fmt.Errorf("message has no body section")
	}
	mr, err := mail.CreateReader(body)
	if err != nil {
		return 0, fmt.Errorf("unparseable message: %w", err)
	}

	received := time.Now()
	if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
		received = date
	} else if msg.Envelope != nil && !msg.Envelope.Date.IsZero() {
		received = msg.Envelope.Date
	}

	saved := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed part should not lose the rest of the message.
			e.log.Debugw("malformed message part", "error", err)
			break
		}

		header, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, err := header.Filename()
		if err != nil || filename == "" {
			continue
		}

		path, err := e.saveAttachment(part.Body, filename, received)
		if err != nil {
			e.log.Warnw("failed to save attachment", "filename", filename, "error", err)
			continue
		}
		fmt.Printf("   💾 Saved attachment %s\n", path)
		saved++
	}
	return saved, nil
}

// saveAttachment writes one attachment into the month directory, renaming
// with a numeric suffix on filename collision.
func (e *emailExtractor) saveAttachment(r io.Reader, filename string, received time.Time) (string, error) {
	dir := filepath.Join(e.outputDir, received.Format("2006-01"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	path := uniquePath(dir, sanitizeFilename(filename))
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(path)
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return path, nil
}
