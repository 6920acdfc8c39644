package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet — кошелёк участника или клуба.
//
// Суммы хранятся в минимальных единицах валюты (копейки/центы),
// чтобы settlement точно сохранял суммарную стоимость.
type Wallet struct {
	// ID — уникальный идентификатор кошелька.
	ID uuid.UUID `json:"id"`

	// OwnerID — владелец (участник или клуб).
	OwnerID uuid.UUID `json:"owner_id"`

	// Balance — общий баланс.
	Balance int64 `json:"balance"`

	// Available — доступный к списанию остаток.
	// Settlement проверяет именно Available.
	Available int64 `json:"available"`
}

// Payment — платёж между двумя кошельками.
//
// Плательщик, получатель и сумма неизменяемы после создания;
// мутируется только статус (и CompletedAt при успехе).
type Payment struct {
	// ID — уникальный идентификатор платежа.
	ID uuid.UUID `json:"id"`

	// PayerWalletID — кошелёк плательщика.
	PayerWalletID uuid.UUID `json:"payer_wallet_id"`

	// BeneficiaryWalletID — кошелёк получателя.
	BeneficiaryWalletID uuid.UUID `json:"beneficiary_wallet_id"`

	// Amount — сумма в минимальных единицах. Всегда > 0.
	Amount int64 `json:"amount"`

	// Description — назначение платежа (попадает в уведомление получателю).
	Description string `json:"description,omitempty"`

	// Status — PENDING / COMPLETED / DECLINED.
	Status PaymentStatus `json:"status"`

	// CompletedAt — время проведения (только для COMPLETED).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CreatedAt — время создания платежа.
	CreatedAt time.Time `json:"created_at"`
}

// SettlementResult — исход settlement одного платежа.
type SettlementResult string

const (
	// SettlementCompleted — деньги переведены, платёж COMPLETED.
	SettlementCompleted SettlementResult = "COMPLETED"

	// SettlementDeclined — недостаточно средств, платёж DECLINED.
	// Балансы не изменены.
	SettlementDeclined SettlementResult = "DECLINED"
)

// ApplySettlement применяет платёж к паре кошельков.
//
// При нехватке доступных средств ничего не мутирует и возвращает
// SettlementDeclined. Иначе списывает у плательщика, зачисляет
// получателю и помечает платёж COMPLETED. Суммарная стоимость пары
// кошельков не меняется.
//
// Функция чистая относительно хранилища: транзакционные границы
// (блокировки, commit/rollback) — забота репозитория.
func (p *Payment) ApplySettlement(payer, beneficiary *Wallet) SettlementResult {
	if payer.Available < p.Amount {
		p.Status = PaymentStatusDeclined
		return SettlementDeclined
	}

	payer.Balance -= p.Amount
	payer.Available -= p.Amount
	beneficiary.Balance += p.Amount
	beneficiary.Available += p.Amount

	now := time.Now().UTC()
	p.Status = PaymentStatusCompleted
	p.CompletedAt = &now
	return SettlementCompleted
}

// SettlementOutcome — результат проведения одного платежа.
type SettlementOutcome struct {
	// Result — итог: COMPLETED или DECLINED.
	Result SettlementResult

	// Payment — платёж после транзакции.
	Payment Payment

	// BeneficiaryPushToken — push-адрес владельца кошелька получателя.
	// Пустая строка, если адрес не зарегистрирован.
	BeneficiaryPushToken string
}
