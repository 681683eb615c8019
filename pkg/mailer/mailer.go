// Package mailer delivers plain notification emails to portal users.
package mailer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"anoa.com/schoolportal/pkg/apperror"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type sendgridMailer struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	breaker    *gobreaker.CircuitBreaker
	log        *zap.Logger
}

// New returns a SendGrid mailer, or a logging mailer when no API key is set.
func New(apiKey, appName, fromEmail string, log *zap.Logger) Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	if apiKey == "" {
		return &logMailer{log: log}
	}
	return &sendgridMailer{
		key:        apiKey,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
		breaker:    newBreaker("sendgrid", log),
		log:        log,
	}
}

func newBreaker(name string, log *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

func (m *sendgridMailer) build(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToEmail))

	mail := sgmail.NewV3Mail()
	mail.SetFrom(m.from)
	mail.AddPersonalizations(p)

	html := msg.HTML
	if html == "" {
		html = "<p>" + msg.Text + "</p>"
	}
	mail.AddContent(
		sgmail.NewContent("text/plain", msg.Text),
		sgmail.NewContent("text/html", html),
	)
	return mail
}

func (m *sendgridMailer) Send(ctx context.Context, msg Message) error {
	if msg.ToEmail == "" {
		return errors.New("mailer: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := m.breaker.Execute(func() (any, error) {
		req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
		req.Method = http.MethodPost
		req.Body = sgmail.GetRequestBody(m.build(msg))

		res, err := sendgrid.API(req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode >= http.StatusBadRequest {
			return nil, errors.New("sendgrid: " + http.StatusText(res.StatusCode))
		}
		return nil, nil
	})
	if err != nil {
		return errors.Join(apperror.ErrDependency, err)
	}
	return nil
}

type logMailer struct {
	log *zap.Logger
}

func (m *logMailer) Send(_ context.Context, msg Message) error {
	m.log.Info("email not sent, mailer disabled",
		zap.String("to", msg.ToEmail),
		zap.String("subject", msg.Subject),
	)
	return nil
}
