package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWindowIndex(t *testing.T) {
	tests := []struct {
		name    string
		start   time.Time
		today   time.Time
		days    int
		wantErr bool
	}{
		{name: "single day", start: day(1), today: day(1), days: 28},
		{name: "default window", start: DefaultEpidemicStart, today: day(60), days: DefaultActiveWindowDays},
		{name: "zero window", start: day(1), today: day(10), days: 0, wantErr: true},
		{name: "negative window", start: day(1), today: day(10), days: -3, wantErr: true},
		{name: "today before start", start: day(10), today: day(1), days: 28, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWindowIndex(tt.start, tt.today, tt.days)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, w)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.days, w.Days())
		})
	}
}

func TestWindowIndex_ActiveEndDate(t *testing.T) {
	w, err := NewWindowIndex(DefaultEpidemicStart, day(60), DefaultActiveWindowDays)
	require.NoError(t, err)

	first, last := w.Span()
	assert.Equal(t, DefaultEpidemicStart, first)
	assert.Equal(t, day(60), last)

	t.Run("every day in span", func(t *testing.T) {
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			end, err := w.ActiveEndDate(d)
			require.NoError(t, err, d.Format(DateLayout))
			assert.Equal(t, d.AddDate(0, 0, DefaultActiveWindowDays), end)
		}
	})

	t.Run("ignores time of day", func(t *testing.T) {
		end, err := w.ActiveEndDate(day(5).Add(17 * time.Hour))
		require.NoError(t, err)
		assert.Equal(t, day(5).AddDate(0, 0, 28), end)
	})

	t.Run("before start", func(t *testing.T) {
		_, err := w.ActiveEndDate(first.AddDate(0, 0, -1))
		assert.ErrorIs(t, err, ErrOutOfRange)
	})

	t.Run("after today", func(t *testing.T) {
		_, err := w.ActiveEndDate(last.AddDate(0, 0, 1))
		assert.ErrorIs(t, err, ErrOutOfRange)
	})
}

func TestWindowIndex_Contains(t *testing.T) {
	w, err := NewWindowIndex(day(1), day(60), DefaultActiveWindowDays)
	require.NoError(t, err)

	assert.True(t, w.Contains(day(1)))
	assert.True(t, w.Contains(day(60).Add(23*time.Hour)))
	assert.False(t, w.Contains(day(0)))
	assert.False(t, w.Contains(day(61)))
}
