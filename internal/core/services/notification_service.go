package services

import (
	"bytes"
	"context"
	"html/template"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mortgageos/internal/adapters/mail"
	"mortgageos/internal/core/domain"
	"mortgageos/internal/pkg/metrics"
)

// ============================================================
// Dispatcher: bounded queue + worker pool
// ============================================================

// DispatcherConfig sizes the worker pool
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	RatePerSec  float64
	SendTimeout time.Duration
}

// Dispatcher delivers mail in the background. Enqueue never blocks the caller
// and delivery failures are logged, never returned.
type Dispatcher struct {
	mailer  mail.Mailer
	cfg     DispatcherConfig
	limiter *rate.Limiter
	metrics *metrics.Metrics

	queue   chan mail.Message
	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher; call Start to launch workers
func NewDispatcher(mailer mail.Mailer, cfg DispatcherConfig, m *metrics.Metrics) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 100
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}

	limit := rate.Inf
	burst := cfg.Workers
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
	}

	return &Dispatcher{
		mailer:  mailer,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		metrics: m,
		queue:   make(chan mail.Message, cfg.QueueSize),
	}
}

// Start launches the workers
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	log.Printf("🚀 Notification dispatcher started (%d workers, queue %d)", d.cfg.Workers, d.cfg.QueueSize)
}

// Enqueue hands msg to the workers. It reports false when the queue is full
// or the dispatcher is stopped; the message is dropped in that case.
func (d *Dispatcher) Enqueue(msg mail.Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		log.Printf("⚠️ Notification to %s dropped: dispatcher stopped", msg.To)
		d.metrics.Notification("dropped")
		return false
	}

	select {
	case d.queue <- msg:
		return true
	default:
		log.Printf("⚠️ Notification to %s dropped: queue full", msg.To)
		d.metrics.Notification("dropped")
		return false
	}
}

// Stop stops accepting messages and waits for queued ones to be delivered
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		// Nobody will drain the queue; deliver inline
		d.wg.Add(1)
		d.worker()
	}
	d.wg.Wait()
	log.Println("🛑 Notification dispatcher stopped")
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg mail.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	if err := d.limiter.Wait(ctx); err != nil {
		log.Printf("❌ Notification to %s not sent: %v", msg.To, err)
		d.metrics.Notification("failed")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Notification to %s panicked: %v", msg.To, r)
			d.metrics.Notification("failed")
		}
	}()

	if err := d.mailer.Send(ctx, msg); err != nil {
		log.Printf("❌ Failed to send email to %s: %v", msg.To, err)
		d.metrics.Notification("failed")
		return
	}
	d.metrics.Notification("sent")
}

// ============================================================
// Loan status emails
// ============================================================

// Recipient identifies who receives a notification
type Recipient struct {
	Email     string
	FirstName string
}

// LoanNotifier is told about borrower-visible status changes
type LoanNotifier interface {
	StatusChanged(to Recipient, loanID string, status domain.LoanStatus)
}

var statusMessages = map[domain.LoanStatus]string{
	domain.LoanProcessing:          "We have begun processing your file.",
	domain.LoanUnderwriting:        "Your loan is now being reviewed by an underwriter.",
	domain.LoanApprovedConditional: "Great news! Your loan is conditionally approved.",
	domain.LoanClearToClose:        "Congratulations! We are ready to schedule your closing.",
	domain.LoanClosed:              "Your loan has been funded. Welcome home!",
	domain.LoanRejected:            "An update regarding your application decision is available.",
}

const defaultStatusMessage = "There has been an update to your application."

var statusEmailTemplate = template.Must(template.New("status").Parse(`<div style="font-family: sans-serif; color: #333;">
  <h2>Hello {{.FirstName}},</h2>
  <p>There has been a status update on your mortgage application.</p>
  <div style="background: #f4f4f4; padding: 15px; border-left: 4px solid #2563eb; margin: 20px 0;">
    <strong>New Status: {{.Status}}</strong>
    <p>{{.Message}}</p>
  </div>
  <p>Please log in to your dashboard to view details or upload any required documents.</p>
  <a href="{{.DashboardURL}}" style="background: #2563eb; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Go to Dashboard</a>
</div>`))

// StatusEmailNotifier renders status emails and queues them on a Dispatcher
type StatusEmailNotifier struct {
	dispatcher *Dispatcher
	baseURL    string
}

// NewStatusEmailNotifier creates a notifier linking to baseURL
func NewStatusEmailNotifier(d *Dispatcher, baseURL string) *StatusEmailNotifier {
	return &StatusEmailNotifier{dispatcher: d, baseURL: strings.TrimRight(baseURL, "/")}
}

// StatusChanged enqueues the email; it never blocks or fails the caller
func (n *StatusEmailNotifier) StatusChanged(to Recipient, loanID string, status domain.LoanStatus) {
	if to.Email == "" {
		return
	}
	msg, err := RenderStatusEmail(to, status, n.baseURL)
	if err != nil {
		log.Printf("❌ Render status email for loan %s: %v", loanID, err)
		return
	}
	n.dispatcher.Enqueue(msg)
}

// RenderStatusEmail builds the status update message for to
func RenderStatusEmail(to Recipient, status domain.LoanStatus, baseURL string) (mail.Message, error) {
	text, ok := statusMessages[status]
	if !ok {
		text = defaultStatusMessage
	}

	var buf bytes.Buffer
	err := statusEmailTemplate.Execute(&buf, struct {
		FirstName    string
		Status       string
		Message      string
		DashboardURL string
	}{
		FirstName:    to.FirstName,
		Status:       status.Label(),
		Message:      text,
		DashboardURL: strings.TrimRight(baseURL, "/") + "/dashboard/borrower",
	})
	if err != nil {
		return mail.Message{}, err
	}

	return mail.Message{
		To:      to.Email,
		Subject: "Loan Update: " + status.Label(),
		HTML:    buf.String(),
	}, nil
}
