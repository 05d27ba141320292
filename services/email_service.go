package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/aasen99/pro11/config"
)

type EmailService struct {
	cfg *config.Config
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{cfg: cfg}
}

func (s *EmailService) SendEmail(to []string, subject string, body string) error {
	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)

	msg := []byte("To: " + to[0] + "\r\n" +
		"From: " + s.cfg.SMTPFrom + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		body + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	tlsconfig := &tls.Config{
		ServerName: s.cfg.SMTPHost,
	}

	var client *smtp.Client
	if s.cfg.SMTPPort == 465 {
		conn, err := tls.Dial("tcp", addr, tlsconfig)
		if err != nil {
			return fmt.Errorf("smtp tls dial failed: %w", err)
		}
		defer conn.Close()
		client, err = smtp.NewClient(conn, s.cfg.SMTPHost)
		if err != nil {
			return fmt.Errorf("smtp client failed: %w", err)
		}
	} else {
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("smtp dial failed: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("smtp starttls failed: %w", err)
		}
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth failed: %w", err)
	}
	if err := client.Mail(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("smtp mail from failed: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt failed: %w", err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write failed: %w", err)
	}
	return w.Close()
}

var registrationEmailTemplate = template.Must(template.New("registration").Parse(`
<h2>Påmelding mottatt</h2>
<p>Laget <strong>{{.TeamName}}</strong> er påmeldt {{.TournamentName}}.</p>
{{if .EntryFee}}<p>Deltakeravgift: {{.EntryFee}} kr. Betalingsreferanse: {{.PaymentRef}}</p>{{end}}
<p>Dere får en ny e-post når laget er godkjent.</p>
`))

func (s *EmailService) SendRegistrationConfirmation(to, teamName, tournamentName, paymentRef string, entryFee int) error {
	var body bytes.Buffer
	err := registrationEmailTemplate.Execute(&body, map[string]interface{}{
		"TeamName":       teamName,
		"TournamentName": tournamentName,
		"EntryFee":       entryFee,
		"PaymentRef":     paymentRef,
	})
	if err != nil {
		return fmt.Errorf("failed to render registration email: %w", err)
	}
	return s.SendEmail([]string{to}, "Påmelding mottatt: "+tournamentName, body.String())
}

var paymentEmailTemplate = template.Must(template.New("payment").Parse(`
<h2>Betaling registrert</h2>
<p>Betalingen for laget <strong>{{.TeamName}}</strong> er registrert. Vi sees på banen!</p>
`))

func (s *EmailService) SendPaymentConfirmation(to, teamName string) error {
	var body bytes.Buffer
	if err := paymentEmailTemplate.Execute(&body, map[string]interface{}{"TeamName": teamName}); err != nil {
		return fmt.Errorf("failed to render payment email: %w", err)
	}
	return s.SendEmail([]string{to}, "Betaling registrert", body.String())
}
