package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnknownJobKind — нет обработчика для данного kind.
	ErrUnknownJobKind = errors.New("unknown job kind")

	// ErrExecutionTimeout — выполнение job превысило таймаут.
	// Обработчик мог доработать в фоне; job уходит в retry.
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrEventGone — событие из payload больше не существует.
	// Условие не самоизлечивается: job исчерпает попытки и уйдёт в FAILED.
	ErrEventGone = errors.New("referenced event no longer exists")
)
