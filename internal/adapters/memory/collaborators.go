package memory

import (
	"context"
	"sync"

	"github.com/eleven-am/verdict/internal/ports"
)

// Publisher collects published messages in memory. Tests use SetError to
// simulate a broker outage.
type Publisher struct {
	mu       sync.Mutex
	messages []PublishedMessage
	err      error
}

type PublishedMessage struct {
	Topic   string
	Message ports.Message
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(ctx context.Context, topic string, message ports.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}

	p.messages = append(p.messages, PublishedMessage{Topic: topic, Message: message})
	return nil
}

// SetError makes every subsequent publish fail with err; nil restores
// normal operation.
func (p *Publisher) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *Publisher) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// AuditSink appends records in memory for test inspection.
type AuditSink struct {
	mu      sync.Mutex
	records []ports.AuditRecord
}

func NewAuditSink() *AuditSink {
	return &AuditSink{}
}

func (s *AuditSink) Record(ctx context.Context, record ports.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	return nil
}

func (s *AuditSink) Records() []ports.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ports.AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}

var (
	_ ports.Publisher = (*Publisher)(nil)
	_ ports.AuditSink = (*AuditSink)(nil)
)
