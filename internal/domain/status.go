package domain

import "fmt"

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	QUEUED → RUNNING → DONE
//	                 ↘ QUEUED (retry с новым run_at)
//	                 ↘ FAILED (после исчерпания попыток)
type JobStatus string

const (
	// JobStatusQueued — job в очереди, ожидает claim.
	JobStatusQueued JobStatus = "QUEUED"

	// JobStatusRunning — job захвачен воркером и выполняется.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusDone — job успешно завершён.
	JobStatusDone JobStatus = "DONE"

	// JobStatusFailed — job завершился с ошибкой после всех retry.
	// Автоматических повторов больше не будет — только ручное вмешательство.
	JobStatusFailed JobStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusDone, JobStatusFailed:
		return true
	default:
		return false
	}
}

// ParseJobStatus парсит строку в JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobStatusQueued, JobStatusRunning, JobStatusDone, JobStatusFailed:
		return JobStatus(s), nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

// PaymentStatus — статус платежа.
//
// Жизненный цикл:
//
//	PENDING → COMPLETED (списание + зачисление прошли)
//	        ↘ DECLINED  (недостаточно средств; терминальный, без retry)
type PaymentStatus string

const (
	// PaymentStatusPending — платёж ожидает settlement.
	PaymentStatusPending PaymentStatus = "PENDING"

	// PaymentStatusCompleted — платёж проведён.
	PaymentStatusCompleted PaymentStatus = "COMPLETED"

	// PaymentStatusDeclined — платёж отклонён (недостаточно средств).
	// Это валидный бизнес-итог, а не ошибка.
	PaymentStatusDeclined PaymentStatus = "DECLINED"
)

// IsTerminal возвращает true, если платёж больше не изменится.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusDeclined:
		return true
	default:
		return false
	}
}

// EventStatus — статус события календаря.
type EventStatus string

const (
	// EventStatusScheduled — событие запланировано.
	EventStatusScheduled EventStatus = "SCHEDULED"

	// EventStatusCancelled — событие отменено. Напоминания не рассылаются.
	EventStatusCancelled EventStatus = "CANCELLED"
)
