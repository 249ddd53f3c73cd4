package tender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestDaysUntilDeadline(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no deadline", func(t *testing.T) {
		tn := Tender{}
		_, ok := tn.DaysUntilDeadline(now)
		assert.False(t, ok)
	})

	t.Run("future deadline", func(t *testing.T) {
		deadline := now.Add(10*24*time.Hour + time.Hour)
		tn := Tender{Deadline: &deadline}
		days, ok := tn.DaysUntilDeadline(now)
		assert.True(t, ok)
		assert.Equal(t, 10, days)
	})

	t.Run("past deadline is negative", func(t *testing.T) {
		deadline := now.Add(-3 * 24 * time.Hour)
		tn := Tender{Deadline: &deadline}
		days, ok := tn.DaysUntilDeadline(now)
		assert.True(t, ok)
		assert.Equal(t, -3, days)
	})
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, (&Tender{}).IsExpired(now))
	assert.True(t, (&Tender{Deadline: &past}).IsExpired(now))
	assert.False(t, (&Tender{Deadline: &future}).IsExpired(now))
}

func TestFormattedValue(t *testing.T) {
	assert.Equal(t, "", (&Tender{}).FormattedValue())

	tn := Tender{EstimatedValue: floatPtr(250000), Currency: "EUR"}
	assert.Equal(t, "250,000.00 EUR", tn.FormattedValue())

	noCurrency := Tender{EstimatedValue: floatPtr(1500.5)}
	assert.Equal(t, "1,500.50 EUR", noCurrency.FormattedValue())
}

func TestFilterValidate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{"empty", Filter{}, false},
		{"valid range", Filter{MinValue: floatPtr(100), MaxValue: floatPtr(200)}, false},
		{"negative min", Filter{MinValue: floatPtr(-1)}, true},
		{"negative max", Filter{MaxValue: floatPtr(-1)}, true},
		{"min above max", Filter{MinValue: floatPtr(200), MaxValue: floatPtr(100)}, true},
		{"negative days", Filter{DaysRemaining: intPtr(-1)}, true},
		{"zero days", Filter{DaysRemaining: intPtr(0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPagePages(t *testing.T) {
	assert.Equal(t, 0, (&Page{Total: 10, Limit: 0}).Pages())
	assert.Equal(t, 1, (&Page{Total: 10, Limit: 20}).Pages())
	assert.Equal(t, 5, (&Page{Total: 100, Limit: 20}).Pages())
	assert.Equal(t, 6, (&Page{Total: 101, Limit: 20}).Pages())
}
