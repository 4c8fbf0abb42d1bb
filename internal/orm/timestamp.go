package orm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTimestamp is the column default used for timestamps
const DefaultTimestamp = "1970-01-01 00:00:00"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp is a UTC time column that tracks whether it changed since it was loaded.
// Unset and NULL values read as the unix epoch.
type Timestamp struct {
	value    time.Time
	original time.Time
	embedded bool
}

// NewTimestamp parses v into a timestamp. See Set for accepted values.
func NewTimestamp(v any) (Timestamp, error) {
	var t Timestamp
	err := t.Set(v)
	return t, err
}

// Now returns the current time as a changed timestamp
func Now() Timestamp {
	return Timestamp{value: time.Now().UTC()}
}

// Set assigns a time.Time, a string in one of the supported layouts, unix seconds
// or nil.
func (t *Timestamp) Set(v any) error {
	parsed, err := parseTimestamp(v)
	if err != nil {
		return err
	}
	t.value = parsed
	return nil
}

// Time returns the value in UTC
func (t Timestamp) Time() time.Time {
	return orEpoch(t.value)
}

func orEpoch(v time.Time) time.Time {
	if v.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return v
}

// In returns the value in loc
func (t Timestamp) In(loc *time.Location) time.Time {
	return t.Time().In(loc)
}

// Unix returns the value in unix seconds
func (t Timestamp) Unix() int64 {
	return t.Time().Unix()
}

// HasUpdates reports whether the value differs from the one loaded or flushed last
func (t Timestamp) HasUpdates() bool {
	return t.embedded || !t.Time().Equal(orEpoch(t.original))
}

// FlushUpdates marks the current value as persisted
func (t *Timestamp) FlushUpdates() {
	t.original = t.value
}

// Embed returns a copy that always reports updates, for timestamps stored inside
// serialized documents that are rewritten as a whole.
func (t Timestamp) Embed() Timestamp {
	t.embedded = true
	return t
}

// DefaultValue returns the column default for the given dialect
func (Timestamp) DefaultValue(dialect string) string {
	return DefaultTimestamp
}

// GormDataType maps the column onto gorm's time type
func (Timestamp) GormDataType() string {
	return "time"
}

// Scan implements sql.Scanner. Scanned values are not treated as updates.
func (t *Timestamp) Scan(src any) error {
	parsed, err := parseTimestamp(src)
	if err != nil {
		return err
	}
	t.value = parsed
	t.original = parsed
	return nil
}

// Value implements driver.Valuer
func (t Timestamp) Value() (driver.Value, error) {
	return t.Time(), nil
}

func (t Timestamp) String() string {
	return t.Time().Format(DefaultTimestampLayout)
}

// DefaultTimestampLayout renders timestamps the way the database stores them
const DefaultTimestampLayout = "2006-01-02 15:04:05"

// MarshalJSON encodes the timestamp as RFC 3339
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time().Format(time.RFC3339))
}

// UnmarshalJSON accepts every format Set does
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if f, ok := v.(float64); ok {
		v = int64(f)
	}
	return t.Set(v)
}

func parseTimestamp(v any) (time.Time, error) {
	switch value := v.(type) {
	case nil:
		return time.Unix(0, 0).UTC(), nil
	case time.Time:
		return value.UTC(), nil
	case *time.Time:
		if value == nil {
			return time.Unix(0, 0).UTC(), nil
		}
		return value.UTC(), nil
	case Timestamp:
		return value.Time(), nil
	case int:
		return time.Unix(int64(value), 0).UTC(), nil
	case int64:
		return time.Unix(value, 0).UTC(), nil
	case []byte:
		return parseTimestampString(string(value))
	case string:
		return parseTimestampString(value)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to timestamp", v)
	}
}

func parseTimestampString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
