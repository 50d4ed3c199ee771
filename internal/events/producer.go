// Package events publica eventos de dominio en Kafka. El producer es
// opcional: un *Producer nil es un no-op seguro, igual que cuando el broker
// no está configurado.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

type Producer struct {
	writer *kafka.Writer
}

type Config struct {
	Broker   string
	Topic    string
	Username string
	Password string
}

func NewProducer(cfg Config) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Broker),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: 10 * time.Second,
	}
	if cfg.Username != "" {
		w.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.Username, Password: cfg.Password},
		}
	}
	return &Producer{writer: w}
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

type userVerifiedEvent struct {
	Event      string `json:"event"`
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	At         string `json:"at"`
}

type reconcileCompletedEvent struct {
	Event         string `json:"event"`
	TargetGuildID string `json:"target_guild_id"`
	Requested     int    `json:"requested"`
	Succeeded     int    `json:"succeeded"`
	Failed        int    `json:"failed"`
	Skipped       int    `json:"skipped"`
	At            string `json:"at"`
}

// UserVerified publica un evento user.verified. Un fallo de publish se
// loguea y se descarta: la verificación ya quedó persistida.
func (p *Producer) UserVerified(ctx context.Context, externalID, username string) {
	p.publish(ctx, externalID, userVerifiedEvent{
		Event:      "user.verified",
		ExternalID: externalID,
		Username:   username,
		At:         time.Now().UTC().Format(time.RFC3339),
	})
}

// ReconcileCompleted publica un evento reconciliation.completed.
func (p *Producer) ReconcileCompleted(ctx context.Context, guildID string, requested, succeeded, failed, skipped int) {
	p.publish(ctx, guildID, reconcileCompletedEvent{
		Event:         "reconciliation.completed",
		TargetGuildID: guildID,
		Requested:     requested,
		Succeeded:     succeeded,
		Failed:        failed,
		Skipped:       skipped,
		At:            time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Producer) publish(ctx context.Context, key string, v any) {
	if p == nil || p.writer == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(wctx, kafka.Message{
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	}); err != nil {
		logger.From(ctx).Warn("kafka publish failed", logger.Err(err))
	}
}
