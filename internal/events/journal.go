// Package events appends domain events to a durable journal table. The
// journal is an audit trail, not a delivery mechanism; consumers poll it
// offline.
package events

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/printworks/storefront-api/internal/store"
)

// Topics emitted by the storefront.
const (
	TopicOrderPaid       = "order.paid"
	TopicLoyaltyAdjusted = "loyalty.adjusted"
)

type eventWriter interface {
	InsertDomainEvent(ctx context.Context, arg store.InsertDomainEventParams) error
}

// Journal writes domain events.
type Journal struct {
	Q   eventWriter
	Log zerolog.Logger
}

// NewJournal constructs a Journal over the query layer.
func NewJournal(q *store.Queries, log zerolog.Logger) *Journal {
	return &Journal{Q: q, Log: log}
}

// Emit appends one event. Emission is best-effort relative to the caller's
// main work: a journal failure is logged, never propagated.
func (j *Journal) Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) {
	if j == nil || j.Q == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		j.Log.Error().Err(err).Str("topic", topic).Msg("event payload marshal failed")
		return
	}
	if err := j.Q.InsertDomainEvent(ctx, store.InsertDomainEventParams{
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     body,
	}); err != nil {
		j.Log.Error().Err(err).Str("topic", topic).Msg("event journal write failed")
	}
}
