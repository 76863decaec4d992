package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ledgerlane/invoicer/internal/jobs"
)

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, msg SendEmailPayload) error
}

// SMTPMailer sends plain text mail through an unauthenticated relay such as
// Mailpit or a local MTA.
type SMTPMailer struct {
	addr  string
	from  string
	clock func() time.Time
	send  func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer targets host:port and sends as from.
func NewSMTPMailer(host string, port int, from string) *SMTPMailer {
	return &SMTPMailer{
		addr:  net.JoinHostPort(host, strconv.Itoa(port)),
		from:  from,
		clock: time.Now,
		send:  smtp.SendMail,
	}
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, msg SendEmailPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.send(m.addr, nil, m.from, []string{msg.To}, m.compose(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) compose(msg SendEmailPayload) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.ReplaceAll(msg.Subject, "\n", " "))
	fmt.Fprintf(&b, "Date: %s\r\n", m.clock().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// MailJob processes TaskSendEmail tasks.
type MailJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle implements asynq.HandlerFunc.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("mail: handler not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode mail payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.To) == "" {
		return fmt.Errorf("mail without recipient: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskSendEmail)
	defer func() { err = tracker.End(err) }()

	if err := j.Mailer.Send(ctx, payload); err != nil {
		loggerOrDefault(j.Logger).Warn("send email", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	j.Metrics.AddItems(TaskSendEmail, 1)
	return nil
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
