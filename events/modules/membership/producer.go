package membership

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/paycheck/paycheck-backend/internal/workflow"
	"github.com/segmentio/kafka-go"
)

// MembershipProducer publishes workflow transitions to Kafka. It satisfies
// workflow.Publisher.
type MembershipProducer struct {
	Writer *kafka.Writer
}

// NewMembershipProducer initializes a Kafka writer for membership events.
// transport may be nil for an unauthenticated local broker.
func NewMembershipProducer(brokers []string, topic string, transport kafka.RoundTripper) *MembershipProducer {
	return &MembershipProducer{
		Writer: &kafka.Writer{
			Addr:      kafka.TCP(brokers...),
			Topic:     topic,
			Balancer:  &kafka.Hash{},
			Transport: transport,
		},
	}
}

// NewMembershipEvent builds the event contract for a transition.
func NewMembershipEvent(t workflow.Transition) MembershipEvent {
	return MembershipEvent{
		EventType:              string(t.Kind),
		EventID:                uuid.New().String(),
		EventTime:              t.At,
		SchemaVersion:          SchemaVersion,
		OrganizationID:         t.OrganizationID,
		OrganizationName:       t.OrganizationName,
		UserID:                 t.UserID,
		Username:               t.Username,
		PreviousOrganizationID: t.PreviousOrganizationID,
		Comment:                t.Comment,
	}
}

// Publish sends the transition to the events topic. Messages are keyed by
// organization so one organization's events stay ordered.
func (p *MembershipProducer) Publish(ctx context.Context, t workflow.Transition) error {
	payload, err := json.Marshal(NewMembershipEvent(t))
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(t.OrganizationID),
		Value: payload,
	})
}

// Close cleans up the Kafka writer
func (p *MembershipProducer) Close() error {
	return p.Writer.Close()
}
