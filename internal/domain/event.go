package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreatorRole — роль создателя события.
// От роли зависит множество получателей уведомлений.
type CreatorRole string

const (
	// RoleCoach — тренер команды.
	RoleCoach CreatorRole = "COACH"

	// RoleClub — аккаунт клуба.
	RoleClub CreatorRole = "CLUB"

	// RoleMember — обычный участник.
	RoleMember CreatorRole = "MEMBER"
)

// Event — одно конкретное событие календаря (occurrence).
//
// Повторяющееся событие хранится как серия occurrences с общим SeriesID.
// Исходное событие имеет OccurrenceIndex = 0, сгенерированные — 1..N.
//
// Пара (SeriesID, OccurrenceIndex) глобально уникальна — это ключ
// идемпотентности, благодаря которому повторный запуск разворачивания
// серии безопасен.
type Event struct {
	// ID — уникальный идентификатор события.
	ID uuid.UUID `json:"id"`

	// SeriesID — общий идентификатор всех occurrences одной серии.
	SeriesID uuid.UUID `json:"series_id"`

	// OccurrenceIndex — позиция в серии (0 — исходное событие).
	OccurrenceIndex int `json:"occurrence_index"`

	// TeamID — команда, к которой относится событие.
	TeamID uuid.UUID `json:"team_id"`

	// ClubID — клуб, которому принадлежит команда.
	ClubID uuid.UUID `json:"club_id"`

	// CreatedBy — участник, создавший событие.
	CreatedBy uuid.UUID `json:"created_by"`

	// CreatorRole — роль создателя на момент создания.
	CreatorRole CreatorRole `json:"creator_role"`

	// Title — название события.
	Title string `json:"title"`

	// Date — дата события (время суток в StartsAt/EndsAt).
	Date time.Time `json:"date"`

	// StartsAt — время начала (дата + время суток).
	StartsAt time.Time `json:"starts_at"`

	// EndsAt — время окончания.
	EndsAt time.Time `json:"ends_at"`

	// Status — SCHEDULED или CANCELLED.
	Status EventStatus `json:"status"`

	// Repeats — каденция повторения исходного события.
	Repeats Repeat `json:"repeats,omitempty"`

	// RepeatUntil — граница серии (только у исходного события).
	RepeatUntil *time.Time `json:"repeat_until,omitempty"`

	// ReminderSent — флаг идемпотентности pre-event напоминания.
	// После установки событие больше никогда не попадает в выборку sweep'а.
	ReminderSent bool `json:"reminder_sent"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// ShiftTo возвращает копию события, сдвинутую на новую дату
// с тем же временем суток, с заданным индексом в серии.
// Команда, клуб, создатель и статус переносятся из базового события.
func (e *Event) ShiftTo(date time.Time, index int) Event {
	next := *e
	next.ID = uuid.New()
	next.OccurrenceIndex = index
	next.Date = date
	next.StartsAt = atTimeOfDay(date, e.StartsAt)
	next.EndsAt = atTimeOfDay(date, e.EndsAt)
	next.Repeats = RepeatNone
	next.RepeatUntil = nil
	next.ReminderSent = false
	next.CreatedAt = time.Now().UTC()
	return next
}

// atTimeOfDay собирает timestamp из даты date и времени суток из tod.
func atTimeOfDay(date, tod time.Time) time.Time {
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), 0,
		tod.Location(),
	)
}
