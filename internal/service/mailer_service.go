package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akhilpenumudy/biodataahub/pkg/jobs"
)

// verificationMail is the payload carried by queued verification jobs.
type verificationMail struct {
	Email    string
	FullName string
	Token    string
}

// MailerConfig configures verification mail dispatch.
type MailerConfig struct {
	BaseURL    string
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// MailerService delivers account verification mail through a background
// queue. The development delivery path logs the verification link instead
// of talking to an SMTP relay.
type MailerService struct {
	queue   *jobs.Queue[verificationMail]
	logger  *zap.Logger
	baseURL string
}

// NewMailerService constructs the mailer and its worker queue.
func NewMailerService(cfg MailerConfig, logger *zap.Logger) *MailerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MailerService{logger: logger, baseURL: cfg.BaseURL}
	s.queue = jobs.NewQueue("verification-mail", s.deliver, jobs.Config{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the mail workers.
func (s *MailerService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the mail workers.
func (s *MailerService) Stop() {
	s.queue.Stop()
}

// SendVerification enqueues a verification mail for the given account.
func (s *MailerService) SendVerification(email, fullName, token string) error {
	return s.queue.Enqueue(jobs.Job[verificationMail]{
		ID:      uuid.NewString(),
		Payload: verificationMail{Email: email, FullName: fullName, Token: token},
	})
}

func (s *MailerService) deliver(ctx context.Context, job jobs.Job[verificationMail]) error {
	mail := job.Payload
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", s.baseURL, url.QueryEscape(mail.Token))
	s.logger.Info("verification mail dispatched",
		zap.String("email", mail.Email),
		zap.String("full_name", mail.FullName),
		zap.String("link", link),
	)
	return nil
}
