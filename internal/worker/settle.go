package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/gateway"
	"github.com/shaiso/Relay/internal/telemetry"
)

// SettleHandler проводит ожидающие платежи.
//
// Каждый платёж проводится в собственной транзакции хранилища:
// ошибка одного не откатывает и не блокирует остальные. Отказ
// по нехватке средств — валидный терминальный исход, не ошибка.
// Уведомление получателя — best-effort после коммита: сбой доставки
// не влияет на финансовое состояние.
type SettleHandler struct {
	payments PaymentStore
	gateway  gateway.Gateway
	logger   *slog.Logger
}

// NewSettleHandler создаёт обработчик settle-payments.
func NewSettleHandler(payments PaymentStore, gw gateway.Gateway, logger *slog.Logger) *SettleHandler {
	return &SettleHandler{payments: payments, gateway: gw, logger: logger}
}

// Kind возвращает kind обработчика.
func (h *SettleHandler) Kind() domain.JobKind {
	return domain.KindSettlePayments
}

// Execute проводит все ожидающие платежи.
func (h *SettleHandler) Execute(ctx context.Context, job *domain.Job) error {
	pending, err := h.payments.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending payments: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	var lastErr error
	var failed int

	for _, payment := range pending {
		outcome, err := h.payments.Settle(ctx, payment.ID)
		if err != nil {
			// Транзакция откатилась, платёж остался PENDING —
			// он будет подхвачен следующим тиком.
			h.logger.Error("settlement failed",
				"payment_id", payment.ID,
				"error", err,
			)
			lastErr = err
			failed++
			continue
		}

		telemetry.PaymentsSettled.WithLabelValues(string(outcome.Result)).Inc()

		switch outcome.Result {
		case domain.SettlementDeclined:
			h.logger.Info("payment declined",
				"payment_id", payment.ID,
				"amount", payment.Amount,
			)

		case domain.SettlementCompleted:
			h.logger.Info("payment completed",
				"payment_id", payment.ID,
				"amount", payment.Amount,
			)
			h.notifyBeneficiary(ctx, outcome)
		}
	}

	if lastErr != nil {
		return fmt.Errorf("settled %d of %d payments, last error: %w",
			len(pending)-failed, len(pending), lastErr)
	}
	return nil
}

// notifyBeneficiary отправляет best-effort уведомление получателю.
func (h *SettleHandler) notifyBeneficiary(ctx context.Context, outcome *domain.SettlementOutcome) {
	if outcome.BeneficiaryPushToken == "" {
		return
	}

	push := gateway.Push{
		Token: outcome.BeneficiaryPushToken,
		Title: "Payment received",
		Body:  outcome.Payment.Description,
		Data: map[string]string{
			"payment_id": outcome.Payment.ID.String(),
		},
	}

	if err := h.gateway.Send(ctx, push); err != nil {
		// Деньги уже переведены; потерянное уведомление не причина
		// для retry всего job.
		h.logger.Warn("beneficiary notification failed",
			"payment_id", outcome.Payment.ID,
			"error", err,
		)
	}
}
