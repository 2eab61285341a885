package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortgageos/internal/adapters/mail"
	"mortgageos/internal/core/domain"
)

type fakeMailer struct {
	mu    sync.Mutex
	sent  []mail.Message
	err   error
	block chan struct{}
}

func (m *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestDispatcher_DeliversAndDrainsOnStop(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewDispatcher(mailer, DispatcherConfig{Workers: 2, QueueSize: 10}, nil)
	d.Start()

	for i := 0; i < 5; i++ {
		require.True(t, d.Enqueue(mail.Message{To: "a@b.co", Subject: "hi"}))
	}
	d.Stop()
	assert.Equal(t, 5, mailer.count())

	assert.False(t, d.Enqueue(mail.Message{To: "late@b.co"}))
	d.Stop()
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	mailer := &fakeMailer{block: make(chan struct{})}
	d := NewDispatcher(mailer, DispatcherConfig{Workers: 1, QueueSize: 1}, nil)
	d.Start()

	// The first message occupies the worker, the second fills the queue
	require.True(t, d.Enqueue(mail.Message{To: "one@b.co"}))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.True(t, d.Enqueue(mail.Message{To: "two@b.co"}))

	start := time.Now()
	assert.False(t, d.Enqueue(mail.Message{To: "three@b.co"}))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(mailer.block)
	d.Stop()
	assert.Equal(t, 2, mailer.count())
}

func TestDispatcher_FailuresAreSwallowed(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	d := NewDispatcher(mailer, DispatcherConfig{}, nil)

	// Never started: Stop delivers inline
	assert.True(t, d.Enqueue(mail.Message{To: "a@b.co"}))
	d.Stop()
	assert.Zero(t, mailer.count())
}

func TestRenderStatusEmail(t *testing.T) {
	msg, err := RenderStatusEmail(Recipient{Email: "b@x.com", FirstName: "<Bob>"}, domain.LoanClearToClose, "https://portal.example.com/")
	require.NoError(t, err)

	assert.Equal(t, "b@x.com", msg.To)
	assert.Equal(t, "Loan Update: CLEAR TO CLOSE", msg.Subject)
	assert.Contains(t, msg.HTML, "Hello &lt;Bob&gt;,")
	assert.Contains(t, msg.HTML, "ready to schedule your closing")
	assert.Contains(t, msg.HTML, `href="https://portal.example.com/dashboard/borrower"`)

	msg, err = RenderStatusEmail(Recipient{Email: "b@x.com"}, domain.LoanSubmitted, "")
	require.NoError(t, err)
	assert.True(t, strings.Contains(msg.HTML, defaultStatusMessage))
}

func TestStatusEmailNotifier(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewDispatcher(mailer, DispatcherConfig{}, nil)
	n := NewStatusEmailNotifier(d, "http://localhost:3000")

	n.StatusChanged(Recipient{}, "loan-1", domain.LoanClosed)
	n.StatusChanged(Recipient{Email: "b@x.com", FirstName: "Bea"}, "loan-1", domain.LoanClosed)
	d.Stop()

	require.Equal(t, 1, mailer.count())
	assert.Equal(t, "Loan Update: CLOSED", mailer.sent[0].Subject)
}
