package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/benvon/taskboard/internal/models"
)

// nullDate scans a DATE column into an optional calendar date
type nullDate struct {
	Date  civil.Date
	Valid bool
}

func (n *nullDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Valid = false
		return nil
	case time.Time:
		n.Date, n.Valid = civil.DateOf(v), true
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into date", src)
	}
}

func (n *nullDate) parse(s string) error {
	d, err := civil.ParseDate(s)
	if err != nil {
		return fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	n.Date, n.Valid = d, true
	return nil
}

func (n nullDate) ptr() *civil.Date {
	if !n.Valid {
		return nil
	}
	d := n.Date
	return &d
}

// nullTimeOfDay scans a TIME column into an optional time of day
type nullTimeOfDay struct {
	Time  civil.Time
	Valid bool
}

func (n *nullTimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Valid = false
		return nil
	case time.Time:
		n.Time, n.Valid = civil.TimeOf(v), true
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into time of day", src)
	}
}

func (n *nullTimeOfDay) parse(s string) error {
	t, err := civil.ParseTime(s)
	if err != nil {
		return fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	n.Time, n.Valid = t, true
	return nil
}

func (n nullTimeOfDay) ptr() *civil.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// dateValue renders an optional date as a query argument
func dateValue(d *civil.Date) driver.Value {
	if d == nil {
		return nil
	}
	return d.String()
}

// timeOfDayValue renders an optional time of day as a query argument
func timeOfDayValue(t *civil.Time) driver.Value {
	if t == nil {
		return nil
	}
	return t.String()
}

// recurrenceJSON reads and writes the recurrence_pattern JSONB column
type recurrenceJSON struct {
	Pattern *models.RecurrencePattern
}

func (r *recurrenceJSON) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		r.Pattern = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into recurrence pattern", src)
	}
	var p models.RecurrencePattern
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("failed to decode recurrence pattern: %w", err)
	}
	r.Pattern = &p
	return nil
}

func (r recurrenceJSON) Value() (driver.Value, error) {
	if r.Pattern == nil {
		return nil, nil
	}
	b, err := json.Marshal(r.Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recurrence pattern: %w", err)
	}
	return b, nil
}
