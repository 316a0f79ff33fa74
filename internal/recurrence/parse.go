package recurrence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/mo"
)

// wireDescriptor is the stored JSON shape. Every field is optional on the
// wire; which ones matter depends on kind.
type wireDescriptor struct {
	Kind           string          `json:"kind,omitempty"`
	StartDate      string          `json:"startDate,omitempty"`
	EndDate        string          `json:"endDate,omitempty"`
	Weekdays       []bool          `json:"weekdays,omitempty"`
	CustomInterval json.RawMessage `json:"customInterval,omitempty"`
	CustomUnit     string          `json:"customUnit,omitempty"`
	TimeOfDay      string          `json:"timeOfDay,omitempty"`
	Dates          []string        `json:"dates,omitempty"`
}

// Parse decodes a stored descriptor blob. It never fails; anything that does
// not parse and validate comes back as Invalid.
func Parse(raw []byte) Descriptor {
	d, err := ParseStrict(raw)
	if err != nil {
		return Invalid{Err: err}
	}
	return d
}

// ParseString is Parse for the string column the blob is stored in.
func ParseString(raw string) Descriptor {
	return Parse([]byte(raw))
}

// ParseStrict decodes and validates a stored descriptor blob.
//
// Accepted shapes:
//   - the structured descriptor {"kind": ..., "startDate": ..., ...}
//   - the legacy {"dates": [...]} object
//   - a bare JSON array of dates (also legacy)
//   - any of the above double-encoded as a JSON string
func ParseStrict(raw []byte) (Descriptor, error) {
	return parseStrict(raw, true)
}

func parseStrict(raw []byte, allowWrapped bool) (Descriptor, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmpty
	}

	switch trimmed[0] {
	case '"':
		if !allowWrapped {
			return nil, fmt.Errorf("recurrence: nested string encoding")
		}
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("recurrence: decode wrapped descriptor: %w", err)
		}
		return parseStrict([]byte(inner), false)
	case '[':
		var dates []string
		if err := json.Unmarshal(trimmed, &dates); err != nil {
			return nil, fmt.Errorf("recurrence: decode legacy dates: %w", err)
		}
		return Legacy{Dates: dates}, nil
	}

	var w wireDescriptor
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, fmt.Errorf("recurrence: decode descriptor: %w", err)
	}
	if w.Kind == "" && w.StartDate == "" && w.Dates != nil {
		return Legacy{Dates: w.Dates}, nil
	}

	d, err := w.descriptor()
	if err != nil {
		return nil, err
	}
	if err := Validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (w wireDescriptor) descriptor() (Descriptor, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(w.Kind)))
	switch kind {
	case KindOnce, KindDaily, KindWeekly, KindCustom:
	case "":
		return nil, fmt.Errorf("%w: missing kind", ErrUnknownKind)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, w.Kind)
	}

	start, err := ParseDate(w.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingStart, err)
	}

	end := mo.None[Date]()
	if strings.TrimSpace(w.EndDate) != "" {
		e, err := ParseDate(w.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadEnd, err)
		}
		end = mo.Some(e)
	}

	tod := mo.None[TimeOfDay]()
	if strings.TrimSpace(w.TimeOfDay) != "" {
		t, err := ParseTimeOfDay(w.TimeOfDay)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadTimeOfDay, err)
		}
		tod = mo.Some(t)
	}

	switch kind {
	case KindOnce:
		return Once{Start: start}, nil
	case KindDaily:
		return Daily{Start: start, End: end, TimeOfDay: tod}, nil
	case KindWeekly:
		if w.Weekdays == nil {
			return nil, ErrNoWeekdays
		}
		if len(w.Weekdays) != 7 {
			return nil, fmt.Errorf("%w: got %d", ErrBadWeekdays, len(w.Weekdays))
		}
		var set WeekdaySet
		copy(set[:], w.Weekdays)
		return Weekly{Start: start, End: end, Weekdays: set, TimeOfDay: tod}, nil
	default:
		interval, err := parseInterval(w.CustomInterval)
		if err != nil {
			return nil, err
		}
		unit, ok := parseUnit(w.CustomUnit)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBadUnit, w.CustomUnit)
		}
		return Custom{Start: start, End: end, Interval: interval, Unit: unit, TimeOfDay: tod}, nil
	}
}

// parseInterval accepts a JSON number or a numeric string; form inputs
// sometimes store the latter.
func parseInterval(raw json.RawMessage) (int, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return 0, fmt.Errorf("%w: missing", ErrBadInterval)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadInterval, s)
	}
	return n, nil
}

// Validate reports why a descriptor would expand to nothing. Callers run it
// before persisting a descriptor; expansion itself only degrades.
func Validate(d Descriptor) error {
	switch v := d.(type) {
	case nil:
		return ErrEmpty
	case Once:
		if v.Start.IsZero() {
			return ErrMissingStart
		}
	case Daily:
		return checkSpan(v.Start, v.End)
	case Weekly:
		if err := checkSpan(v.Start, v.End); err != nil {
			return err
		}
		if v.Weekdays.Empty() {
			return ErrNoWeekdays
		}
	case Custom:
		if err := checkSpan(v.Start, v.End); err != nil {
			return err
		}
		if v.Interval <= 0 {
			return ErrBadInterval
		}
		if _, ok := parseUnit(string(v.Unit)); !ok {
			return ErrBadUnit
		}
	case Legacy:
	case Invalid:
		if v.Err != nil {
			return v.Err
		}
		return ErrUnknownKind
	}
	return nil
}

func checkSpan(start Date, end mo.Option[Date]) error {
	if start.IsZero() {
		return ErrMissingStart
	}
	if e, ok := end.Get(); ok && e.Before(start) {
		return ErrEndBeforeStart
	}
	return nil
}

// Marshal encodes a descriptor in the stored wire shape.
func Marshal(d Descriptor) ([]byte, error) {
	var w wireDescriptor
	switch v := d.(type) {
	case Once:
		w = wireDescriptor{Kind: string(KindOnce), StartDate: v.Start.String()}
	case Daily:
		w = wireDescriptor{Kind: string(KindDaily), StartDate: v.Start.String()}
		w.setOptional(v.End, v.TimeOfDay)
	case Weekly:
		w = wireDescriptor{Kind: string(KindWeekly), StartDate: v.Start.String(), Weekdays: v.Weekdays[:]}
		w.setOptional(v.End, v.TimeOfDay)
	case Custom:
		w = wireDescriptor{
			Kind:           string(KindCustom),
			StartDate:      v.Start.String(),
			CustomInterval: json.RawMessage(strconv.Itoa(v.Interval)),
			CustomUnit:     string(v.Unit),
		}
		w.setOptional(v.End, v.TimeOfDay)
	case Legacy:
		dates := v.Dates
		if dates == nil {
			dates = []string{}
		}
		return json.Marshal(struct {
			Dates []string `json:"dates"`
		}{dates})
	case Invalid:
		return nil, fmt.Errorf("recurrence: cannot marshal invalid descriptor: %w", Validate(v))
	default:
		return nil, errors.New("recurrence: cannot marshal nil descriptor")
	}
	return json.Marshal(w)
}

func (w *wireDescriptor) setOptional(end mo.Option[Date], tod mo.Option[TimeOfDay]) {
	if e, ok := end.Get(); ok {
		w.EndDate = e.String()
	}
	if t, ok := tod.Get(); ok {
		w.TimeOfDay = t.String()
	}
}
