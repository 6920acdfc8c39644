package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobKind — тип фонового job.
//
// Закрытое множество: диспетчеризация идёт через реестр обработчиков,
// неизвестный kind — ошибка, а не тихий проход мимо обработчика.
type JobKind string

const (
	// KindExpandSeries — разворачивание повторяющейся серии событий.
	KindExpandSeries JobKind = "expand-series"

	// KindNotifyEvent — рассылка push-уведомлений по событию.
	KindNotifyEvent JobKind = "notify"

	// KindSettlePayments — проведение ожидающих платежей между кошельками.
	KindSettlePayments JobKind = "settle-payments"
)

// Kinds возвращает все известные типы jobs.
func Kinds() []JobKind {
	return []JobKind{KindExpandSeries, KindNotifyEvent, KindSettlePayments}
}

// ParseJobKind парсит строку в JobKind.
func ParseJobKind(s string) (JobKind, error) {
	switch JobKind(s) {
	case KindExpandSeries, KindNotifyEvent, KindSettlePayments:
		return JobKind(s), nil
	default:
		return "", fmt.Errorf("unknown job kind %q", s)
	}
}

// Job — единица отложенной работы в очереди.
//
// Job создаётся продюсером (API-хендлером или CLI) и выполняется воркером.
// Единственная точка координации между продюсерами и воркерами — таблица jobs;
// брокер сообщений в этом пути не участвует.
//
// Jobs никогда не удаляются: завершённые записи остаются как audit trail.
type Job struct {
	// ID — уникальный идентификатор job. Неизменяем.
	ID uuid.UUID `json:"id"`

	// Kind — тип job, ключ диспетчеризации.
	Kind JobKind `json:"kind"`

	// Payload — параметры, специфичные для Kind.
	// Декодируется через типизированные Decode*Payload хелперы.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Status — текущий статус job.
	Status JobStatus `json:"status"`

	// Attempts — номер попытки. Увеличивается при каждом claim
	// и никогда не уменьшается.
	Attempts int `json:"attempts"`

	// RunAt — самое раннее время, когда job можно захватить.
	// Используется и для первичного планирования, и для backoff при retry.
	RunAt time.Time `json:"run_at"`

	// LastError — текст последней ошибки. Очищается при успехе.
	LastError string `json:"last_error,omitempty"`

	// CreatedAt — время создания job.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// ExpandSeriesPayload — параметры job разворачивания серии.
type ExpandSeriesPayload struct {
	// SeriesID — серия, которую нужно развернуть.
	SeriesID uuid.UUID `json:"series_id"`

	// BaseEventID — исходное событие серии (occurrence_index = 0).
	BaseEventID uuid.UUID `json:"base_event_id"`

	// Repeats — каденция повторения (daily/weekly/monthly).
	Repeats Repeat `json:"repeats"`

	// Until — граница серии. Даты строго раньше Until.
	Until time.Time `json:"until"`
}

// NotifyEventPayload — параметры job рассылки по событию.
type NotifyEventPayload struct {
	// EventID — событие, о котором уведомляем.
	EventID uuid.UUID `json:"event_id"`
}

// NewJob создаёт job в статусе QUEUED с attempts=0.
// payload маршалится в JSON; runAt — "сейчас" либо будущее время.
func NewJob(kind JobKind, payload any, runAt time.Time) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New(),
		Kind:      kind,
		Payload:   raw,
		Status:    JobStatusQueued,
		Attempts:  0,
		RunAt:     runAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DecodeExpandSeriesPayload декодирует payload job типа expand-series.
func (j *Job) DecodeExpandSeriesPayload() (*ExpandSeriesPayload, error) {
	if j.Kind != KindExpandSeries {
		return nil, fmt.Errorf("job %s has kind %s, not %s", j.ID, j.Kind, KindExpandSeries)
	}
	var p ExpandSeriesPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal expand-series payload: %w", err)
	}
	return &p, nil
}

// DecodeNotifyEventPayload декодирует payload job типа notify.
func (j *Job) DecodeNotifyEventPayload() (*NotifyEventPayload, error) {
	if j.Kind != KindNotifyEvent {
		return nil, fmt.Errorf("job %s has kind %s, not %s", j.ID, j.Kind, KindNotifyEvent)
	}
	var p NotifyEventPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal notify payload: %w", err)
	}
	return &p, nil
}

// CanRetry проверяет, остались ли попытки.
func (j *Job) CanRetry(maxAttempts int) bool {
	return j.Attempts < maxAttempts
}
