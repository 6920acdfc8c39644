package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Relay/internal/domain"
)

// Handler — обработчик jobs одного kind.
type Handler interface {
	// Kind возвращает тип job, который обрабатывает handler.
	Kind() domain.JobKind

	// Execute выполняет job. Обработчик обязан быть идемпотентным:
	// после таймаута или сбоя job будет выполнен повторно.
	Execute(ctx context.Context, job *domain.Job) error
}

// Registry — реестр обработчиков по kind.
//
// Закрытая таблица диспетчеризации вместо цепочки условий:
// неизвестный kind — ошибка, а не тихий проход мимо обработчика.
// Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.JobKind]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[domain.JobKind]Handler),
	}
}

// Register регистрирует обработчик.
// Если обработчик для этого kind уже есть, он будет перезаписан.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Kind()] = h
}

// Get возвращает обработчик по kind.
// Возвращает ErrUnknownJobKind, если обработчик не зарегистрирован.
func (r *Registry) Get(kind domain.JobKind) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.handlers[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobKind, kind)
	}
	return h, nil
}

// Has проверяет, зарегистрирован ли обработчик.
func (r *Registry) Has(kind domain.JobKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[kind]
	return exists
}

// Kinds возвращает все зарегистрированные kinds.
func (r *Registry) Kinds() []domain.JobKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]domain.JobKind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Count возвращает количество зарегистрированных обработчиков.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
