// Package events publishes the lifecycle events of the scheduling core to
// the message bus and runs post-commit side effects.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event types emitted on the bus.
const (
	VacancyCreated         = "VACANCY_CREATED"
	VacancyConfirmed       = "VACANCY_CONFIRMED"
	VacancyReconfirmed     = "VACANCY_RECONFIRMED"
	VacancyDeleted         = "VACANCY_DELETED"
	VacancyRefused         = "VACANCY_REFUSED"
	EmployeeVacancyDeleted = "EMPLOYEE_VACANCY_DELETED"
	RequestApproveTasks    = "REQUEST_APPROVE_WITH_TASKS"
	Approve                = "APPROVE"
	ApprovedNotFirst       = "APPROVED_NOT_FIRST"
)

// Publisher is what mutation code needs from the bus.
type Publisher interface {
	Publish(eventType string, payload interface{}) error
}

type envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Bus is a Kafka-backed Publisher.
type Bus struct {
	sp     sarama.SyncProducer
	topic  string
	source string
	log    *logrus.Logger
}

func NewBus(brokers []string, topic, clientID string, log *logrus.Logger) (*Bus, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	return &Bus{sp: sp, topic: topic, source: clientID, log: log}, nil
}

func (b *Bus) Close() error {
	if b == nil || b.sp == nil {
		return nil
	}
	return b.sp.Close()
}

func (b *Bus) Publish(eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	env := envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(env.ID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(eventType)},
			{Key: []byte("source"), Value: []byte(b.source)},
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
	}

	partition, offset, err := b.sp.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send %s: %w", eventType, err)
	}

	b.log.WithFields(logrus.Fields{
		"type":      eventType,
		"partition": partition,
		"offset":    offset,
	}).Debug("Event published")
	return nil
}

// VacancyEventPayload is the body of the VACANCY_* events.
type VacancyEventPayload struct {
	VacancyID  int64    `json:"vacancy_id"`
	EmployeeID *int64   `json:"employee_id,omitempty"`
	ShopCode   string   `json:"shop_code"`
	Username   string   `json:"username,omitempty"`
	Dt         string   `json:"dt"`
	WorkTypes  []string `json:"work_types,omitempty"`
}

// ApprovePayload is the body of the APPROVE events.
type ApprovePayload struct {
	ShopID       int64  `json:"shop_id"`
	DtFrom       string `json:"dt_from"`
	DtTo         string `json:"dt_to"`
	IsFact       bool   `json:"is_fact"`
	CellsChanged int    `json:"cells_changed"`
	ApprovedBy   string `json:"approved_by,omitempty"`
}

// NopPublisher discards events; used in tests and tools.
type NopPublisher struct{}

func (NopPublisher) Publish(string, interface{}) error { return nil }
