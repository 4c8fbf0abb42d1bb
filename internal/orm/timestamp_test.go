package orm

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_Set(t *testing.T) {
	want := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	moscow := time.FixedZone("MSK", 3*3600)

	tests := []struct {
		name  string
		input any
		want  time.Time
	}{
		{"time", want.In(moscow), want},
		{"datetime string", "2024-05-06 07:08:09", want},
		{"rfc3339", "2024-05-06T10:08:09+03:00", want},
		{"bytes", []byte("2024-05-06 07:08:09"), want},
		{"unix int", int(want.Unix()), want},
		{"unix int64", want.Unix(), want},
		{"unix string", "1714979289", want},
		{"date only", "2024-05-06", time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)},
		{"nil", nil, time.Unix(0, 0).UTC()},
		{"empty", "", time.Unix(0, 0).UTC()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := NewTimestamp(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ts.Time()), "got %s", ts.Time())
			assert.Equal(t, time.UTC, ts.Time().Location())
		})
	}

	_, err := NewTimestamp("yesterday")
	assert.Error(t, err)
	_, err = NewTimestamp(3.14)
	assert.Error(t, err)
}

func TestTimestamp_Updates(t *testing.T) {
	var ts Timestamp
	assert.False(t, ts.HasUpdates())
	assert.Equal(t, int64(0), ts.Unix())

	require.NoError(t, ts.Scan("2024-01-01 00:00:00"))
	assert.False(t, ts.HasUpdates())

	require.NoError(t, ts.Set(time.Now()))
	assert.True(t, ts.HasUpdates())

	ts.FlushUpdates()
	assert.False(t, ts.HasUpdates())

	embedded := ts.Embed()
	embedded.FlushUpdates()
	assert.True(t, embedded.HasUpdates())
	assert.False(t, ts.HasUpdates())

	assert.True(t, Now().HasUpdates())
}

func TestTimestamp_SetSameValue(t *testing.T) {
	loaded := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input any
		want  bool
	}{
		{"same time", loaded, false},
		{"same instant in another zone", loaded.In(time.FixedZone("MSK", 3*3600)), false},
		{"same value as string", "2024-01-01 00:00:00", false},
		{"other value", loaded.Add(time.Second), true},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, ts.Scan(loaded))
			require.NoError(t, ts.Set(tt.input))
			assert.Equal(t, tt.want, ts.HasUpdates())
		})
	}

	var ts Timestamp
	require.NoError(t, ts.Scan(loaded))
	require.NoError(t, ts.Set(loaded.Add(time.Hour)))
	require.NoError(t, ts.Set(loaded))
	assert.False(t, ts.HasUpdates(), "reverting to the loaded value is not an update")
}

func TestTimestamp_Formatting(t *testing.T) {
	ts, err := NewTimestamp("2024-05-06 07:08:09")
	require.NoError(t, err)

	assert.Equal(t, "2024-05-06 07:08:09", ts.String())
	assert.Equal(t, "1970-01-01 00:00:00", ts.DefaultValue("postgres"))

	value, err := ts.Value()
	require.NoError(t, err)
	assert.Equal(t, ts.Time(), value)

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-05-06T07:08:09Z"`, string(data))

	var decoded Timestamp
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, ts.Time().Equal(decoded.Time()))

	require.NoError(t, json.Unmarshal([]byte(`1714979289`), &decoded))
	assert.True(t, ts.Time().Equal(decoded.Time()))
}
