package notify

import (
	"context"
	"sync"

	"invoicedash/internal/log"
)

// LogMailer logs messages instead of sending them.
type LogMailer struct {
	logger *log.Logger

	mu   sync.Mutex
	sent []Message
}

func NewLogMailer(logger *log.Logger) *LogMailer {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogMailer{logger: logger.WithComponent(log.ComponentNotify)}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "Email not sent, no SMTP host configured",
		log.FieldRecipient, msg.To,
		"subject", msg.Subject,
		log.FieldOperation, log.OpSend)
	return nil
}

// Sent returns a copy of every message handed to the mailer.
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
