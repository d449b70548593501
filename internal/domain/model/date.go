// Пакет model — доменные сущности SIGESCON.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout — формат календарной даты в API и БД.
const DateLayout = "2006-01-02"

// Date — календарная дата без времени (DATE в PostgreSQL).
// В JSON сериализуется как "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate создаёт дату в UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf возвращает календарную дату момента t в его часовом поясе.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate разбирает дату в формате YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("некорректная дата %q, ожидается формат YYYY-MM-DD", s)
	}
	return Date{Time: t}, nil
}

// FirstOfMonth возвращает первое число месяца даты.
func (d Date) FirstOfMonth() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// DaysUntil возвращает число календарных дней от d до other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

// String возвращает дату в формате YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON реализует json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON реализует json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("дата должна быть строкой YYYY-MM-DD")
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DatePtr преобразует nullable DATE из БД в *Date.
func DatePtr(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	d := DateOf(*t)
	return &d
}

// TimePtr преобразует *Date в параметр запроса.
func (d *Date) TimePtr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
