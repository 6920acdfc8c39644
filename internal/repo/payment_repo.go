package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relay/internal/domain"
)

// PaymentRepo — репозиторий для платежей и кошельков.
//
// Settlement — единственное место, где кошельки мутируются, поэтому
// логика транзакции живёт здесь: чтение обоих кошельков, решение,
// списание/зачисление и смена статуса платежа коммитятся вместе.
type PaymentRepo struct {
	pool *pgxpool.Pool
}

// NewPaymentRepo создаёт новый PaymentRepo.
func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, payer_wallet_id, beneficiary_wallet_id, amount,
	       description, status, completed_at, created_at`

// ListPending возвращает платежи в статусе PENDING.
func (r *PaymentRepo) ListPending(ctx context.Context) ([]domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		payment, err := scanPaymentFrom(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	return payments, rows.Err()
}

// Settle проводит один платёж в собственной транзакции.
//
// Внутри транзакции:
//  1. Платёж блокируется и перепроверяется (PENDING) — защита от
//     двойного проведения после таймаута выполнения.
//  2. Оба кошелька блокируются в детерминированном порядке (по id),
//     чтобы встречные платежи одной пары не взаимоблокировались.
//  3. При нехватке доступных средств платёж помечается DECLINED —
//     это тоже коммит, балансы не меняются.
//  4. Иначе списание у плательщика, зачисление получателю и статус
//     COMPLETED коммитятся вместе. Частичное применение невозможно:
//     любая ошибка до Commit откатывает все четыре мутации, и платёж
//     остаётся PENDING до следующего тика.
//
// Платежи нельзя объединять в одну транзакцию: ошибка одного
// откатила бы чужие переводы.
func (r *PaymentRepo) Settle(ctx context.Context, paymentID uuid.UUID) (*domain.SettlementOutcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin settlement tx: %w", err)
	}
	defer tx.Rollback(ctx)

	payment, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, fmt.Errorf("%w: payment %s is %s", ErrInvalidState, payment.ID, payment.Status)
	}

	payer, beneficiary, err := lockWalletPair(ctx, tx, payment.PayerWalletID, payment.BeneficiaryWalletID)
	if err != nil {
		return nil, err
	}

	outcome := &domain.SettlementOutcome{}
	outcome.Result = payment.ApplySettlement(payer, beneficiary)

	switch outcome.Result {
	case domain.SettlementDeclined:
		// Бизнес-отказ, не ошибка: фиксируем DECLINED и коммитим,
		// балансы не трогаем.
		if _, err := tx.Exec(ctx, `
			UPDATE payments SET status = 'DECLINED' WHERE id = $1
		`, payment.ID); err != nil {
			return nil, fmt.Errorf("decline payment: %w", err)
		}

	case domain.SettlementCompleted:
		if _, err := tx.Exec(ctx, `
			UPDATE wallets SET balance = $2, available = $3 WHERE id = $1
		`, payer.ID, payer.Balance, payer.Available); err != nil {
			return nil, fmt.Errorf("debit payer: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE wallets SET balance = $2, available = $3 WHERE id = $1
		`, beneficiary.ID, beneficiary.Balance, beneficiary.Available); err != nil {
			return nil, fmt.Errorf("credit beneficiary: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE payments SET status = 'COMPLETED', completed_at = $2 WHERE id = $1
		`, payment.ID, payment.CompletedAt); err != nil {
			return nil, fmt.Errorf("complete payment: %w", err)
		}

		// Push-адрес получателя читаем в той же транзакции; сама отправка
		// уведомления происходит уже после коммита и на деньги не влияет.
		var token *string
		err := tx.QueryRow(ctx, `
			SELECT m.push_token
			FROM members m
			JOIN wallets w ON w.owner_id = m.id
			WHERE w.id = $1
		`, beneficiary.ID).Scan(&token)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("load beneficiary push token: %w", err)
		}
		if token != nil {
			outcome.BeneficiaryPushToken = *token
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit settlement: %w", err)
	}

	outcome.Payment = *payment
	return outcome, nil
}

// --- Helpers ---

func lockPayment(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	payment, err := scanPaymentFrom(tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment %s", ErrNotFound, id)
	}
	return payment, err
}

// lockWalletPair блокирует оба кошелька платежа в порядке возрастания id.
func lockWalletPair(ctx context.Context, tx pgx.Tx, payerID, beneficiaryID uuid.UUID) (payer, beneficiary *domain.Wallet, err error) {
	query := `
		SELECT id, owner_id, balance, available
		FROM wallets
		WHERE id = ANY($1)
		ORDER BY id ASC
		FOR UPDATE
	`
	rows, err := tx.Query(ctx, query, []uuid.UUID{payerID, beneficiaryID})
	if err != nil {
		return nil, nil, fmt.Errorf("lock wallets: %w", err)
	}
	defer rows.Close()

	wallets := make(map[uuid.UUID]*domain.Wallet, 2)
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.Balance, &w.Available); err != nil {
			return nil, nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets[w.ID] = &w
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("lock wallets: %w", err)
	}

	payer, ok := wallets[payerID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: payer wallet %s", ErrNotFound, payerID)
	}
	beneficiary, ok = wallets[beneficiaryID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: beneficiary wallet %s", ErrNotFound, beneficiaryID)
	}
	return payer, beneficiary, nil
}

func scanPaymentFrom(row pgx.Row) (*domain.Payment, error) {
	var payment domain.Payment
	var description *string

	err := row.Scan(
		&payment.ID,
		&payment.PayerWalletID,
		&payment.BeneficiaryWalletID,
		&payment.Amount,
		&description,
		&payment.Status,
		&payment.CompletedAt,
		&payment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	if description != nil {
		payment.Description = *description
	}
	return &payment, nil
}
