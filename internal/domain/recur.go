package domain

import (
	"errors"
	"fmt"
	"time"
)

// Repeat — каденция повторения события.
type Repeat string

const (
	// RepeatNone — без повторения.
	RepeatNone Repeat = ""

	// RepeatDaily — каждый день.
	RepeatDaily Repeat = "DAILY"

	// RepeatWeekly — каждую неделю.
	RepeatWeekly Repeat = "WEEKLY"

	// RepeatMonthly — каждый календарный месяц.
	// Требует базовый день месяца 1–28: иначе добавление месяца
	// давало бы несуществующие даты (31 января + месяц).
	RepeatMonthly Repeat = "MONTHLY"
)

// Ошибки рекуррентности.
var (
	// ErrUnknownRepeat — неизвестная каденция.
	ErrUnknownRepeat = errors.New("unknown repeat cadence")

	// ErrUnsafeMonthlyDay — базовая дата месячной серии выпадает на 29–31 число.
	// Такие серии должны отсекаться при создании события; если job с такой
	// датой всё же дошёл до воркера — это нарушение инварианта, не повод
	// тихо сдвигать месяцы.
	ErrUnsafeMonthlyDay = errors.New("monthly series requires base day of month 1-28")
)

// ParseRepeat парсит строку в Repeat.
func ParseRepeat(s string) (Repeat, error) {
	switch Repeat(s) {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly:
		return Repeat(s), nil
	default:
		return RepeatNone, fmt.Errorf("%w: %q", ErrUnknownRepeat, s)
	}
}

// NextDate возвращает следующую дату серии после prev.
func (r Repeat) NextDate(prev time.Time) (time.Time, error) {
	switch r {
	case RepeatDaily:
		return prev.AddDate(0, 0, 1), nil
	case RepeatWeekly:
		return prev.AddDate(0, 0, 7), nil
	case RepeatMonthly:
		if prev.Day() > 28 {
			return time.Time{}, fmt.Errorf("%w: got day %d", ErrUnsafeMonthlyDay, prev.Day())
		}
		next := prev.AddDate(0, 1, 0)
		// AddDate нормализует несуществующие даты (31 янв → 3 мар);
		// при дне 1–28 нормализация невозможна, расхождение — баг.
		if next.Day() != prev.Day() {
			return time.Time{}, fmt.Errorf("%w: day shifted from %d to %d", ErrUnsafeMonthlyDay, prev.Day(), next.Day())
		}
		return next, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownRepeat, r)
	}
}

// SeriesDates вычисляет все даты серии после базовой, строго раньше until.
//
// Возвращаемый срез не включает base; i-я дата соответствует
// occurrence_index = i+1.
func SeriesDates(base time.Time, repeats Repeat, until time.Time) ([]time.Time, error) {
	var dates []time.Time

	current := base
	for {
		next, err := repeats.NextDate(current)
		if err != nil {
			return nil, err
		}
		if !next.Before(until) {
			return dates, nil
		}
		dates = append(dates, next)
		current = next
	}
}
