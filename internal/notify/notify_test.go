package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/metrics"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(Product{Name: "Task Manager", Link: "https://taskmanagelink.com"})
	require.NoError(t, err)
	return r
}

// recordingSender captures sent messages and optionally fails or blocks.
type recordingSender struct {
	mu      sync.Mutex
	sent    []*Message
	err     error
	release chan struct{}
	gotCtx  context.Context
}

func (s *recordingSender) Name() string { return "recording" }

func (s *recordingSender) Send(ctx context.Context, msg *Message) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	s.gotCtx = ctx
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// ============================================================================
// Messages and rendering
// ============================================================================

func TestEmailVerification_Content(t *testing.T) {
	msg := EmailVerification("alice@x.com", "alice", "https://api/verify/abc")

	assert.Equal(t, KindEmailVerification, msg.Kind)
	assert.Equal(t, "alice@x.com", msg.To)
	assert.Equal(t, "alice", msg.Content.Name)
	assert.Equal(t, "https://api/verify/abc", msg.Content.Link)
	assert.Equal(t, "Verify your email", msg.Content.ButtonText)
	assert.Equal(t, "#22BC66", msg.Content.ButtonColor)
}

func TestPasswordReset_Content(t *testing.T) {
	msg := PasswordReset("alice@x.com", "alice", "https://app/reset/abc")

	assert.Equal(t, KindPasswordReset, msg.Kind)
	assert.Equal(t, "Reset your password", msg.Content.ButtonText)
	assert.Contains(t, msg.Content.Instruction, "reset your password")
}

func TestRenderer_Render(t *testing.T) {
	r := newTestRenderer(t)
	msg := EmailVerification("alice@x.com", "alice", "https://api/verify/abc")

	html, text, err := r.Render(msg.Content)
	require.NoError(t, err)

	assert.Contains(t, html, `href="https://api/verify/abc"`)
	assert.Contains(t, html, "Hi alice,")
	assert.Contains(t, html, "Task Manager")
	assert.Contains(t, text, "https://api/verify/abc")
	assert.Contains(t, text, "To verify your email please click on the following button")
}

func TestRenderer_EscapesHTML(t *testing.T) {
	r := newTestRenderer(t)

	html, text, err := r.Render(Content{Name: "<script>alert(1)</script>", Link: "https://x"})
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, text, "<script>", "plain text is not escaped")
}

// ============================================================================
// Dispatcher
// ============================================================================

func TestDispatcher_DeliversInBackground(t *testing.T) {
	sender := &recordingSender{release: make(chan struct{})}
	d := NewDispatcher(sender, time.Second, newTestLogger())

	d.Dispatch(context.Background(), EmailVerification("alice@x.com", "alice", "l"))
	assert.Equal(t, 0, sender.count(), "Dispatch must not wait for the send")

	close(sender.release)
	require.NoError(t, d.Wait(context.Background()))
	assert.Equal(t, 1, sender.count())
}

func TestDispatcher_SurvivesCallerCancellation(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, time.Second, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	d.Dispatch(ctx, PasswordReset("alice@x.com", "alice", "l"))
	cancel()

	require.NoError(t, d.Wait(context.Background()))
	require.Equal(t, 1, sender.count())
	_, hasDeadline := sender.gotCtx.Deadline()
	assert.True(t, hasDeadline, "send context carries the dispatcher timeout")
}

func TestDispatcher_FailureIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sender := &recordingSender{err: errors.New("relay down")}
	d := NewDispatcher(sender, time.Second, logger)

	before := testutil.ToFloat64(metrics.NotificationsSent.WithLabelValues("recording", metrics.OutcomeFailure))
	d.Dispatch(context.Background(), EmailVerification("alice@x.com", "alice", "l"))
	require.NoError(t, d.Wait(context.Background()))

	assert.Contains(t, buf.String(), "notification delivery failed")
	assert.Contains(t, buf.String(), "DELIVERY_FAILURE")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.NotificationsSent.WithLabelValues("recording", metrics.OutcomeFailure)))
}

func TestDispatcher_WaitHonorsContext(t *testing.T) {
	sender := &recordingSender{release: make(chan struct{})}
	d := NewDispatcher(sender, time.Second, newTestLogger())
	d.Dispatch(context.Background(), EmailVerification("alice@x.com", "alice", "l"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	close(sender.release)
	assert.NoError(t, d.Wait(context.Background()))
}

// ============================================================================
// Senders
// ============================================================================

func TestLogSender_Send(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))

	err := s.Send(context.Background(), EmailVerification("alice@x.com", "alice", "https://api/verify/abc"))
	require.NoError(t, err)
	assert.Equal(t, "log", s.Name())
	assert.Contains(t, buf.String(), "alice@x.com")
	assert.Contains(t, buf.String(), "https://api/verify/abc")
}

type fakeDeliverer struct {
	msgs []*mail.Msg
	err  error
}

func (f *fakeDeliverer) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	f.msgs = append(f.msgs, messages...)
	return f.err
}

func TestSMTPSender_Send(t *testing.T) {
	client := &fakeDeliverer{}
	s := newSMTPSender("mail.taskmanager@example.com", newTestRenderer(t), client, newTestLogger())

	err := s.Send(context.Background(), EmailVerification("alice@x.com", "alice", "https://api/verify/abc"))
	require.NoError(t, err)
	require.Len(t, client.msgs, 1)

	m := client.msgs[0]
	rcpts, err := m.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@x.com"}, rcpts)
	assert.Equal(t, []string{"Please verify your email"}, m.GetGenHeader(mail.HeaderSubject))

	var raw bytes.Buffer
	_, err = m.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "text/plain")
	assert.Contains(t, raw.String(), "text/html")
}

func TestSMTPSender_InvalidRecipient(t *testing.T) {
	client := &fakeDeliverer{}
	s := newSMTPSender("mail.taskmanager@example.com", newTestRenderer(t), client, newTestLogger())

	err := s.Send(context.Background(), EmailVerification("not an address", "alice", "l"))
	require.Error(t, err)
	assert.Empty(t, client.msgs)
}

func TestSMTPSender_RelayFailure(t *testing.T) {
	client := &fakeDeliverer{err: errors.New("dial tcp: connection refused")}
	s := newSMTPSender("mail.taskmanager@example.com", newTestRenderer(t), client, newTestLogger())

	err := s.Send(context.Background(), EmailVerification("alice@x.com", "alice", "l"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "connection refused"))
	assert.Equal(t, "smtp", s.Name())
}
