package tender

import "fmt"

// Filter narrows repository queries. All set fields are combined with AND.
type Filter struct {
	// Country is an exact buyer-country match (ISO alpha-3, e.g. "FRA").
	Country string
	// CPV matches tenders whose classification list contains the code.
	CPV string
	MinValue *float64
	MaxValue *float64
	// DaysRemaining, when set, restricts results to tenders whose deadline
	// has not elapsed. The actual day count is not compared; see the
	// repository for details.
	DaysRemaining *int
	// SearchText is a case-insensitive substring match on title or description.
	SearchText string
}

// Validate rejects inconsistent filters before any query is built.
func (f Filter) Validate() error {
	if f.MinValue != nil && *f.MinValue < 0 {
		return fmt.Errorf("min_value must not be negative")
	}
	if f.MaxValue != nil && *f.MaxValue < 0 {
		return fmt.Errorf("max_value must not be negative")
	}
	if f.MinValue != nil && f.MaxValue != nil && *f.MinValue > *f.MaxValue {
		return fmt.Errorf("min_value cannot be greater than max_value")
	}
	if f.DaysRemaining != nil && *f.DaysRemaining < 0 {
		return fmt.Errorf("days_remaining must not be negative")
	}
	return nil
}
