package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/notify"
	pkgkafka "github.com/Ritik272004/PROJMANAGEMENT/pkg/kafka"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, evt *pkgkafka.Event) error {
	args := m.Called(ctx, topic, evt)
	return args.Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Name() string { return "mock" }

func (m *mockSender) Send(ctx context.Context, msg *notify.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotificationPublisher_Send(t *testing.T) {
	pub := new(mockPublisher)
	p := NewNotificationPublisher(pub)
	msg := notify.EmailVerification("alice@x.com", "alice", "https://api/verify/abc")
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")

	pub.On("Publish", ctx, TopicNotificationRequested, mock.MatchedBy(func(evt *pkgkafka.Event) bool {
		var got notify.Message
		if err := evt.UnmarshalData(&got); err != nil {
			return false
		}
		return evt.AggregateID == "alice@x.com" &&
			evt.Source == Source &&
			evt.CorrelationID == "corr-1" &&
			got.Content.Link == "https://api/verify/abc"
	})).Return(nil)

	require.NoError(t, p.Send(ctx, msg))
	assert.Equal(t, "kafka", p.Name())
	pub.AssertExpectations(t)
}

func TestNotificationPublisher_PublishError(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, TopicNotificationRequested, mock.Anything).Return(errors.New("broker down"))

	err := NewNotificationPublisher(pub).Send(context.Background(), notify.PasswordReset("a@x.com", "a", "l"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNotificationHandler_Delivers(t *testing.T) {
	sender := new(mockSender)
	msg := notify.PasswordReset("alice@x.com", "alice", "https://app/reset/abc")
	evt, err := pkgkafka.NewEvent(TopicNotificationRequested, msg.To, "notification", Source, msg)
	require.NoError(t, err)
	evt.WithCorrelationID("corr-9")

	sender.On("Send", mock.MatchedBy(func(ctx context.Context) bool {
		return logger.CorrelationIDFromContext(ctx) == "corr-9"
	}), mock.MatchedBy(func(m *notify.Message) bool {
		return m.To == "alice@x.com" && m.Kind == notify.KindPasswordReset
	})).Return(nil)

	handler := NotificationHandler(sender, newTestLogger())
	require.NoError(t, handler(context.Background(), evt))
	sender.AssertExpectations(t)
}

func TestNotificationHandler_SendFailureIsRetryable(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("relay down"))

	evt, err := pkgkafka.NewEvent(TopicNotificationRequested, "a@x.com", "notification", Source,
		notify.EmailVerification("a@x.com", "a", "l"))
	require.NoError(t, err)

	err = NotificationHandler(sender, newTestLogger())(context.Background(), evt)
	assert.Error(t, err)
}

func TestNotificationHandler_RejectsMissingRecipient(t *testing.T) {
	sender := new(mockSender)
	evt, err := pkgkafka.NewEvent(TopicNotificationRequested, "", "notification", Source, notify.Message{})
	require.NoError(t, err)

	err = NotificationHandler(sender, newTestLogger())(context.Background(), evt)
	assert.Error(t, err)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestNotificationHandler_IgnoresUnknownType(t *testing.T) {
	sender := new(mockSender)
	evt, err := pkgkafka.NewEvent("projmanagement.auth.user.deleted", "u-1", "user", Source, map[string]string{})
	require.NoError(t, err)

	assert.NoError(t, NotificationHandler(sender, newTestLogger())(context.Background(), evt))
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
