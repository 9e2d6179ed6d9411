package models

import (
	"fmt"
	"time"
)

// intervalIDLayout даёт лексикографически сортируемый идентификатор.
const intervalIDLayout = "20060102T150405Z"

// Interval — одно плановое окно обработки [Start, End) в UTC.
// Идентичность окна выводится из логической даты, а не из времени запуска,
// поэтому повтор того же окна получает тот же ключ объекта.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval строит окно длиной period, выровненное по period и содержащее t.
func NewInterval(t time.Time, period time.Duration) Interval {
	start := t.UTC().Truncate(period)
	return Interval{Start: start, End: start.Add(period)}
}

// LastCompleted возвращает последнее завершённое к моменту now окно.
func LastCompleted(now time.Time, period time.Duration) Interval {
	cur := NewInterval(now, period)
	return Interval{Start: cur.Start.Add(-period), End: cur.Start}
}

// ParseLogicalDate разбирает логическую дату (YYYY-MM-DD или RFC3339)
// и возвращает окно длиной period, содержащее её.
func ParseLogicalDate(s string, period time.Duration) (Interval, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return NewInterval(t, period), nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid logical date %q: want YYYY-MM-DD or RFC3339", s)
	}

	return NewInterval(t, period), nil
}

// ID — идентификатор окна для ключей объектов и логов.
func (i Interval) ID() string {
	return i.Start.UTC().Format(intervalIDLayout)
}

// String — человекочитаемое представление окна.
func (i Interval) String() string {
	return i.Start.UTC().Format(time.RFC3339) + "/" + i.End.UTC().Format(time.RFC3339)
}

// StagedObject — объект, выложенный в хранилище как точка передачи между выгрузкой и загрузкой.
type StagedObject struct {
	Key    string
	Size   int64
	Format string
	Rows   int
}
