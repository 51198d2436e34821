package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCategoryValid(t *testing.T) {
	t.Parallel()

	assert.True(t, CategoryUrgentCare.Valid())
	assert.True(t, CategoryEmergency.Valid())
	assert.False(t, Category("pharmacy").Valid())
	assert.False(t, Category("").Valid())
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 5, hour, minute, 0, 0, time.UTC)
}

func TestHoursIsOpenAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		hours *Hours
		t     time.Time
		want  bool
	}{
		{"nil hours always open", nil, at(3, 0), true},
		{"inside window", &Hours{Open: "08:00", Close: "20:00"}, at(12, 0), true},
		{"at open", &Hours{Open: "08:00", Close: "20:00"}, at(8, 0), true},
		{"at close", &Hours{Open: "08:00", Close: "20:00"}, at(20, 0), false},
		{"before open", &Hours{Open: "08:00", Close: "20:00"}, at(7, 59), false},
		{"after close", &Hours{Open: "08:00", Close: "20:00"}, at(22, 0), false},
		{"overnight late evening", &Hours{Open: "18:00", Close: "02:00"}, at(23, 30), true},
		{"overnight early morning", &Hours{Open: "18:00", Close: "02:00"}, at(1, 30), true},
		{"overnight midday closed", &Hours{Open: "18:00", Close: "02:00"}, at(12, 0), false},
		{"degenerate window always open", &Hours{Open: "09:00", Close: "09:00"}, at(3, 0), true},
		{"unparsable treated as open", &Hours{Open: "9am", Close: "20:00"}, at(3, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.hours.IsOpenAt(tt.t))
		})
	}
}

func TestWaitTimeRecordAge(t *testing.T) {
	t.Parallel()

	now := at(12, 0)
	rec := WaitTimeRecord{UpdatedAt: at(11, 40)}
	assert.Equal(t, 20*time.Minute, rec.Age(now))
}
