package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/wneessen/go-mail"

	"github.com/redmonkez12/taskmanager-auth/internal/config"
	"github.com/redmonkez12/taskmanager-auth/internal/logging"
)

// content is the data behind both the HTML and the plain text body.
type content struct {
	ProductName  string
	ProductLink  string
	Name         string
	Intro        string
	Instructions string
	ButtonText   string
	ButtonColor  string
	Link         string
	Outro        string
}

// Service sends transactional email over SMTP.
type Service struct {
	cfg    config.EmailConfig
	logger *logging.Logger
	send   func(ctx context.Context, msg *mail.Msg) error
}

func NewService(cfg config.EmailConfig, logger *logging.Logger) *Service {
	s := &Service{cfg: cfg, logger: logger}
	s.send = s.dialAndSend
	return s
}

// SendVerificationEmail sends an email verification link to the user
// This method is designed to be called in a goroutine
func (s *Service) SendVerificationEmail(ctx context.Context, to, username, link string) error {
	return s.deliver(ctx, to, "Please verify your email", content{
		Name:         username,
		Intro:        "Welcome to " + s.cfg.ProductName + "! We're very excited to have you on board.",
		Instructions: "To verify your email, please click on the button below:",
		ButtonText:   "Verify email",
		ButtonColor:  "#22BC66",
		Link:         link,
		Outro:        "Need help, or have questions? Just reply to this email, we'd love to help.",
	})
}

// SendPasswordResetEmail sends a password reset link to the user
// This method is designed to be called in a goroutine
func (s *Service) SendPasswordResetEmail(ctx context.Context, to, username, link string) error {
	return s.deliver(ctx, to, "Password reset request", content{
		Name:         username,
		Intro:        "We got a request to reset the password of your account.",
		Instructions: "To reset your password click on the following button or link:",
		ButtonText:   "Reset password",
		ButtonColor:  "#22BC66",
		Link:         link,
		Outro:        "If you did not request a password reset, you can safely ignore this email.",
	})
}

func (s *Service) deliver(ctx context.Context, to, subject string, c content) error {
	c.ProductName = s.cfg.ProductName
	c.ProductLink = s.cfg.ProductLink

	msg, err := s.buildMessage(to, subject, c)
	if err != nil {
		return err
	}

	if err := s.send(ctx, msg); err != nil {
		s.logger.Error("failed to send email", "subject", subject, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("email sent", "subject", subject)
	return nil
}

func (s *Service) buildMessage(to, subject string, c content) (*mail.Msg, error) {
	textBody, htmlBody, err := render(c)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)

	return msg, nil
}

func (s *Service) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.SMTPUser),
			mail.WithPassword(s.cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(s.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	return client.DialAndSendWithContext(ctx, msg)
}

func render(c content) (string, string, error) {
	var text, html bytes.Buffer
	if err := textTemplate.Execute(&text, c); err != nil {
		return "", "", fmt.Errorf("render text template: %w", err)
	}
	if err := htmlTemplate.Execute(&html, c); err != nil {
		return "", "", fmt.Errorf("render html template: %w", err)
	}
	return text.String(), html.String(), nil
}

var textTemplate = texttemplate.Must(texttemplate.New("text").Parse(`Hi {{.Name}},

{{.Intro}}

{{.Instructions}}
{{.Link}}

{{.Outro}}

Yours truly,
{{.ProductName}}
`))

var htmlTemplate = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 5px;
        }
        .button {
            display: inline-block;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
            text-align: center;
        }
    </style>
</head>
<body>
    <div class="content">
        <h2>Hi {{.Name}},</h2>
        <p>{{.Intro}}</p>
        <p>{{.Instructions}}</p>
        <a href="{{.Link}}" class="button" style="background-color: {{.ButtonColor}};">{{.ButtonText}}</a>
        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all;">{{.Link}}</p>
        <p>{{.Outro}}</p>
    </div>
    <div class="footer">
        <p><a href="{{.ProductLink}}">{{.ProductName}}</a></p>
    </div>
</body>
</html>
`))
