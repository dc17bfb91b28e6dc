package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/Ritik272004/PROJMANAGEMENT/pkg/breaker"
)

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type mailDeliverer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPSender renders messages and delivers them through an SMTP relay. A
// circuit breaker stops dialing a relay that keeps failing; rejections of a
// single recipient do not count against it.
type SMTPSender struct {
	from     string
	renderer *Renderer
	client   mailDeliverer
	breaker  *breaker.Breaker[struct{}]
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(cfg SMTPConfig, renderer *Renderer, logger *slog.Logger) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return newSMTPSender(cfg.From, renderer, client, logger), nil
}

func newSMTPSender(from string, renderer *Renderer, client mailDeliverer, logger *slog.Logger) *SMTPSender {
	cbCfg := breaker.DefaultConfig("smtp")
	cbCfg.IsSuccessful = func(err error) bool {
		return err == nil || isPermanent(err)
	}
	return &SMTPSender{
		from:     from,
		renderer: renderer,
		client:   client,
		breaker:  breaker.New[struct{}](cbCfg, logger),
	}
}

// Name returns the transport name.
func (s *SMTPSender) Name() string {
	return "smtp"
}

// Send renders msg and delivers it.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	_, err = s.breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.client.DialAndSendWithContext(ctx, m)
	})
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (s *SMTPSender) build(msg *Message) (*mail.Msg, error) {
	html, text, err := s.renderer.Render(msg.Content)
	if err != nil {
		return nil, err
	}

	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, text)
	m.AddAlternativeString(mail.TypeTextHTML, html)
	return m, nil
}

// isPermanent reports whether the relay rejected this particular message
// rather than failing as a whole.
func isPermanent(err error) bool {
	var sendErr *mail.SendError
	return errors.As(err, &sendErr) && !sendErr.IsTemp()
}
