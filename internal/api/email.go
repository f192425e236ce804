package api

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"time"

	"evently/internal/models"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// MailSender is satisfied by *gomail.Dialer.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer renders and sends the reminder, announcement and test mails.
type Mailer struct {
	cfg    SMTPConfig
	appURL string
	sender MailSender
	log    *logrus.Entry
}

func NewMailer(cfg SMTPConfig, appURL string) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.Port == 465
	if cfg.UseTLS {
		d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	}
	return NewMailerWithSender(cfg, appURL, d)
}

// NewMailerWithSender is NewMailer with the transport swapped out.
func NewMailerWithSender(cfg SMTPConfig, appURL string, sender MailSender) *Mailer {
	if cfg.From == "" {
		cfg.From = "noreply@evently.app"
	}
	return &Mailer{
		cfg:    cfg,
		appURL: appURL,
		sender: sender,
		log:    logrus.WithField("component", "mailer"),
	}
}

// Enabled reports whether mail can be sent. A nil Mailer is disabled.
func (m *Mailer) Enabled() bool {
	return m != nil && m.cfg.Host != "" && m.sender != nil
}

var errMailDisabled = errors.New("SMTP not configured")

var (
	reminderTmpl = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<h2>{{.Event.Name}}</h2>
<p>Date: {{.Event.Date}} at {{.Event.Time}}</p>
{{if .Event.Location}}<p>Location: {{.Event.Location}}</p>{{end}}
{{if .Event.Description}}<p>{{.Event.Description}}</p>{{end}}
<p><a href="{{.AppURL}}">Open Evently</a></p>
<p style="color:#888">&copy; {{.Year}} Evently</p>
</body></html>`))

	announcementTmpl = template.Must(template.New("announcement").Parse(`<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<h2>{{.Title}}</h2>
<p>{{.Content}}</p>
<p><a href="{{.AppURL}}">Open Evently</a></p>
</body></html>`))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s mail: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func (m *Mailer) message(to, subject, plain, html string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", plain)
	msg.AddAlternative("text/html", html)
	return msg
}

// SendEventReminder mails the owner of ev that it happens tomorrow.
func (m *Mailer) SendEventReminder(to string, ev models.Event) error {
	if !m.Enabled() {
		return errMailDisabled
	}
	html, err := render(reminderTmpl, struct {
		Event  models.Event
		AppURL string
		Year   int
	}{ev, m.appURL, time.Now().Year()})
	if err != nil {
		return err
	}
	plain := fmt.Sprintf("%s\nDate: %s at %s\nLocation: %s\n\n%s\n", ev.Name, ev.Date, ev.Time, ev.Location, ev.Description)
	subject := fmt.Sprintf("Reminder: %s is happening tomorrow", ev.Name)

	m.log.WithFields(logrus.Fields{"to": to, "event_id": ev.ID}).Info("sending event reminder")
	return m.sender.DialAndSend(m.message(to, subject, plain, html))
}

// SendAnnouncement mails every recipient. Failures for single recipients do
// not stop the rest; they are joined into the returned error.
func (m *Mailer) SendAnnouncement(recipients []string, title, content string) error {
	if !m.Enabled() {
		return errMailDisabled
	}
	html, err := render(announcementTmpl, struct {
		Title, Content, AppURL string
	}{title, content, m.appURL})
	if err != nil {
		return err
	}

	var errs []error
	for _, to := range recipients {
		if err := m.sender.DialAndSend(m.message(to, "Announcement: "+title, content, html)); err != nil {
			m.log.WithError(err).WithField("to", to).Warn("announcement mail failed")
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
		}
	}
	m.log.WithFields(logrus.Fields{"recipients": len(recipients), "failed": len(errs)}).Info("announcement mailed")
	return errors.Join(errs...)
}

func (m *Mailer) SendTestEmail(to, username string) error {
	if !m.Enabled() {
		return errMailDisabled
	}
	ev := models.Event{
		Name:        "Test reminder",
		Description: fmt.Sprintf("Hi %s, if you can read this your Evently email reminders are working.", username),
		Date:        time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
		Time:        "09:00",
	}
	return m.SendEventReminder(to, ev)
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

func isValidEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email)
}
