package notify

import "context"

const defaultButtonColor = "#22BC66"

// Content is the body of a transactional mail: a greeting, an intro, one
// call-to-action button and an outro.
type Content struct {
	Name        string `json:"name"`
	Intro       string `json:"intro"`
	Instruction string `json:"instruction"`
	ButtonText  string `json:"button_text"`
	ButtonColor string `json:"button_color"`
	Link        string `json:"link"`
	Outro       string `json:"outro"`
}

// Message is one outbound notification.
type Message struct {
	Kind    string  `json:"kind"`
	To      string  `json:"to"`
	Subject string  `json:"subject"`
	Content Content `json:"content"`
}

// Message kinds.
const (
	KindEmailVerification = "email_verification"
	KindPasswordReset     = "password_reset"
)

// Sender delivers a message over one transport.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}

const (
	welcomeIntro = "Welcome to our App! We're very excited to have you on board."
	helpOutro    = "Need help, or have questions? Just reply to this email, we'd love to help."
)

// EmailVerification builds the mail carrying an email verification link.
func EmailVerification(to, username, link string) *Message {
	return &Message{
		Kind:    KindEmailVerification,
		To:      to,
		Subject: "Please verify your email",
		Content: Content{
			Name:        username,
			Intro:       welcomeIntro,
			Instruction: "To verify your email please click on the following button",
			ButtonText:  "Verify your email",
			ButtonColor: defaultButtonColor,
			Link:        link,
			Outro:       helpOutro,
		},
	}
}

// PasswordReset builds the mail carrying a password reset link.
func PasswordReset(to, username, link string) *Message {
	return &Message{
		Kind:    KindPasswordReset,
		To:      to,
		Subject: "Password reset request",
		Content: Content{
			Name:        username,
			Intro:       "We received a request to reset the password for your account.",
			Instruction: "To reset your password please click on the following button",
			ButtonText:  "Reset your password",
			ButtonColor: defaultButtonColor,
			Link:        link,
			Outro:       helpOutro,
		},
	}
}
