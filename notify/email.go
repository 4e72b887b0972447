package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"
)

type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
	TLS  bool
}

// EmailNotifier mails the batch summary to the album's notification address
type EmailNotifier struct {
	cfg  SMTPConfig
	send func(e *email.Email) error
	log  *zap.Logger
}

func NewEmailNotifier(cfg SMTPConfig, log *zap.Logger) *EmailNotifier {
	n := &EmailNotifier{cfg: cfg, log: log}
	n.send = n.smtpSend
	return n
}

func (n *EmailNotifier) NotifyBatch(ctx context.Context, batch Batch) error {
	if batch.Album.NotificationEmail == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e := n.compose(batch)
	if err := n.send(e); err != nil {
		n.log.Warn("notification email failed", zap.String("to", batch.Album.NotificationEmail), zap.Error(err))
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (n *EmailNotifier) compose(batch Batch) *email.Email {
	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = []string{batch.Album.NotificationEmail}
	e.Subject = batch.Title() + ": " + batch.Summary()

	var text, body strings.Builder
	body.WriteString("<h2>" + html.EscapeString(batch.Summary()) + "</h2><ul>")
	for _, item := range batch.Items {
		name := item.Name
		if item.SubLabel != "" {
			name = item.SubLabel + "/" + name
		}
		text.WriteString("- " + name + "\n")
		body.WriteString("<li>" + html.EscapeString(name) + "</li>")
	}
	body.WriteString("</ul>")
	e.Text = []byte(batch.Summary() + "\n\n" + text.String())
	e.HTML = []byte(body.String())
	return e
}

func (n *EmailNotifier) smtpSend(e *email.Email) error {
	if n.cfg.Host == "" || n.cfg.Port == "" || n.cfg.From == "" {
		return errors.New("smtp config missing")
	}
	addr := n.cfg.Host + ":" + n.cfg.Port
	var auth smtp.Auth
	if n.cfg.User != "" {
		auth = smtp.PlainAuth("", n.cfg.User, n.cfg.Pass, n.cfg.Host)
	}
	if n.cfg.TLS || n.cfg.Port == "465" {
		return e.SendWithTLS(addr, auth, &tls.Config{ServerName: n.cfg.Host})
	}
	return e.Send(addr, auth)
}
