package loyalty

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/printworks/storefront-api/internal/store"
)

// TaskAccrue is the queue task type for post-order point accrual.
const TaskAccrue = "loyalty:accrue"

// AccruePayload is the body of a TaskAccrue task.
type AccruePayload struct {
	CustomerID  string `json:"customerId"`
	OrderID     string `json:"orderId"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
}

// NewAccrueTask builds the queue task enqueued after order finalization.
func NewAccrueTask(p AccruePayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccrue, body, asynq.MaxRetry(5)), nil
}

// AccrueHandler processes TaskAccrue tasks on the worker.
type AccrueHandler struct {
	Svc *Service
	Log zerolog.Logger
}

// ProcessTask earns points for a paid order. Zero-point orders are dropped
// without touching the wallet.
func (h *AccrueHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p AccruePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("accrue payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.CustomerID == "" {
		return fmt.Errorf("accrue without customer: %w", asynq.SkipRetry)
	}

	points := h.Svc.Cfg.Earn(p.AmountCents)
	if points == 0 {
		return nil
	}
	note := fmt.Sprintf("order %s", p.OrderID)
	var orderID pgtype.UUID
	if p.OrderID != "" {
		orderID = store.ToUUID(p.OrderID)
	}
	if _, err := h.Svc.Adjust(ctx, p.CustomerID, points, store.LoyaltyTxnEarn, note, orderID); err != nil {
		return err
	}
	h.Log.Info().
		Str("customer_id", p.CustomerID).
		Str("order_id", p.OrderID).
		Int64("points", points).
		Msg("loyalty accrued")
	return nil
}
