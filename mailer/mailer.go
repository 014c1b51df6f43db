package mailer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Message is one rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender is the delivery transport (SMTP, an API client, a queue producer).
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// WriterSender writes messages to w in a readable form.
type WriterSender struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{w: w}
}

func (s *WriterSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "To: %s\nSubject: %s\n\n%s\n\n", msg.To, msg.Subject, msg.Body)
	return err
}

// Config tunes the mailer. Zero values fall back to defaults.
type Config struct {
	SupportEmail string
	Activation   Template
	Reset        Template
	QueueSize    int
	SendTimeout  time.Duration
	Now          func() time.Time
}

// Mailer queues account emails for asynchronous delivery through a Sender.
type Mailer struct {
	sender    Sender
	logger    *slog.Logger
	cfg       Config
	queue     chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts the delivery worker. Close must be called to flush it.
func New(sender Sender, logger *slog.Logger, cfg Config) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.Activation == (Template{}) {
		cfg.Activation = DefaultActivationTemplate
	}
	if cfg.Reset == (Template{}) {
		cfg.Reset = DefaultResetTemplate
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Mailer{
		sender: sender,
		logger: logger,
		cfg:    cfg,
		queue:  make(chan Message, cfg.QueueSize),
		done:   make(chan struct{}),
	}

	m.wg.Add(1)
	go m.run()

	return m
}

func (m *Mailer) run() {
	defer m.wg.Done()

	for {
		select {
		case msg := <-m.queue:
			m.deliver(msg)
		case <-m.done:
			for {
				select {
				case msg := <-m.queue:
					m.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (m *Mailer) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SendTimeout)
	defer cancel()

	if err := m.sender.Send(ctx, msg); err != nil {
		m.logger.Error("email delivery failed",
			"to", msg.To,
			"subject", msg.Subject,
			"error", err,
		)
		return
	}
	m.logger.Info("email delivered", "to", msg.To, "subject", msg.Subject)
}

// SendActivation queues the account activation email.
func (m *Mailer) SendActivation(ctx context.Context, to, activationLink string) error {
	return m.enqueue(ctx, m.render(m.cfg.Activation, to, map[string]string{
		"activationLink": activationLink,
	}))
}

// SendPasswordReset queues the password reset email.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, resetLink string) error {
	return m.enqueue(ctx, m.render(m.cfg.Reset, to, map[string]string{
		"resetLink": resetLink,
	}))
}

func (m *Mailer) render(tpl Template, to string, vars map[string]string) Message {
	vars["supportEmail"] = m.cfg.SupportEmail
	vars["currentYear"] = strconv.Itoa(m.cfg.Now().Year())
	return Message{
		To:      to,
		Subject: Render(tpl.Subject, vars),
		Body:    Render(tpl.Body, vars),
	}
}

func (m *Mailer) enqueue(ctx context.Context, msg Message) error {
	select {
	case m.queue <- msg:
		return nil
	case <-m.done:
		return fmt.Errorf("mailer closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new messages, delivers what is queued, and waits for
// the worker to exit.
func (m *Mailer) Close() {
	if m == nil {
		return
	}
	m.closeOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
	})
}
