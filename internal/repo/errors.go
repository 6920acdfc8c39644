package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState — операция невозможна в текущем состоянии.
	// Например, settlement платежа, который уже не PENDING.
	ErrInvalidState = errors.New("invalid state")
)
