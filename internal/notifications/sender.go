package notifications

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/gomail.v2"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/config"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers mail through gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender builds a gomail-backed sender.
func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("mail from address required")
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender only logs messages. Used when mail is disabled.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"to": msg.To, "subject": msg.Subject})
		s.logg.Info(logCtx, "mail disabled, message dropped")
	}
	return nil
}

// NewSender picks the SMTP sender when mail is enabled.
func NewSender(cfg config.MailConfig, logg *logger.Logger) (Sender, error) {
	if !cfg.Enabled {
		return NewLogSender(logg), nil
	}
	return NewSMTPSender(cfg)
}

// Dispatcher sends mail in the background. Delivery failures are logged and
// never reach the caller.
type Dispatcher struct {
	sender  Sender
	logg    *logger.Logger
	wg      sync.WaitGroup
	pending atomic.Int64
}

// NewDispatcher wraps a sender for fire-and-forget delivery.
func NewDispatcher(sender Sender, logg *logger.Logger) (*Dispatcher, error) {
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{sender: sender, logg: logg}, nil
}

// Notify queues msg and returns immediately.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	if strings.TrimSpace(msg.To) == "" {
		return
	}
	bg := context.WithoutCancel(ctx)
	d.wg.Add(1)
	d.pending.Add(1)
	go d.deliver(bg, msg)
}

// Drain blocks until every queued message has been handed to the sender or
// ctx is done. Call it before the process exits.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logCtx := d.logg.WithFields(ctx, map[string]any{"pending": d.pending.Load()})
		d.logg.Warn(logCtx, "notification drain timed out, undelivered messages dropped")
		return fmt.Errorf("drain notifications: %w", ctx.Err())
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	defer func() {
		d.pending.Add(-1)
		d.wg.Done()
	}()
	if err := d.sender.Send(ctx, msg); err != nil {
		logCtx := d.logg.WithFields(ctx, map[string]any{"to": msg.To, "subject": msg.Subject})
		d.logg.Error(logCtx, "notification delivery failed", err)
	}
}
