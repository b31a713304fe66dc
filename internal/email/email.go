package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/teamcruz/academia/internal/config"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Mensagem é um e-mail transacional simples.
type Mensagem struct {
	Para     string
	NomePara string
	Assunto  string
	Texto    string
	HTML     string
}

// Mailer envia mensagens transacionais (convites, avisos).
type Mailer interface {
	Enviar(ctx context.Context, msg Mensagem) error
}

// NewMailer escolhe a implementação: SendGrid quando há API key, console caso contrário.
func NewMailer(cfg config.Config, logger zerolog.Logger) Mailer {
	if cfg.SendGridAPIKey == "" {
		logger.Warn().Msg("email: SENDGRID_API_KEY ausente, usando saída em console")
		return &consoleMailer{logger: logger}
	}
	return &sendgridMailer{
		key:  cfg.SendGridAPIKey,
		from: sgmail.NewEmail(cfg.EmailFromName, cfg.EmailFrom),
	}
}

type sendgridMailer struct {
	key  string
	from *sgmail.Email
}

func (m *sendgridMailer) Enviar(ctx context.Context, msg Mensagem) error {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Assunto
	p.AddTos(sgmail.NewEmail(msg.NomePara, msg.Para))

	mail := sgmail.NewV3Mail()
	mail.SetFrom(m.from)
	mail.AddPersonalizations(p)
	mail.AddContent(sgmail.NewContent("text/plain", msg.Texto))
	if msg.HTML != "" {
		mail.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}

	req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(mail)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid respondeu %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// consoleMailer registra o e-mail no log, útil em desenvolvimento.
type consoleMailer struct {
	logger zerolog.Logger
}

func (m *consoleMailer) Enviar(_ context.Context, msg Mensagem) error {
	m.logger.Info().
		Str("para", msg.Para).
		Str("assunto", msg.Assunto).
		Str("texto", msg.Texto).
		Msg("email: mensagem simulada")
	return nil
}
