package tender

import (
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Sentinel values applied when the upstream notice omits a required field.
const (
	FallbackTitle   = "No title"
	FallbackBuyer   = "Unknown"
	FallbackCountry = "UNKNOWN"
)

// Tender represents one canonical procurement notice.
type Tender struct {
	NoticeID           string     `json:"notice_id"`
	Title              string     `json:"title"`
	Description        *string    `json:"description,omitempty"`
	BuyerName          string     `json:"buyer_name"`
	BuyerCountry       string     `json:"buyer_country"`
	EstimatedValue     *float64   `json:"estimated_value,omitempty"`
	Currency           string     `json:"currency,omitempty"`
	Deadline           *time.Time `json:"deadline,omitempty"`
	PublicationDate    time.Time  `json:"publication_date"`
	CPVCodes           []string   `json:"cpv_codes"`
	ProcedureType      *string    `json:"procedure_type,omitempty"`
	PlaceOfPerformance *string    `json:"place_of_performance,omitempty"`
	URL                string     `json:"url"`
	CreatedAt          time.Time  `json:"-"`
	UpdatedAt          time.Time  `json:"-"`
}

var valuePrinter = message.NewPrinter(language.English)

// DaysUntilDeadline returns the number of whole days between now and the
// deadline. The second return is false when the tender has no deadline.
// The count is negative once the deadline has passed.
func (t *Tender) DaysUntilDeadline(now time.Time) (int, bool) {
	if t.Deadline == nil {
		return 0, false
	}
	return int(math.Floor(t.Deadline.Sub(now).Hours() / 24)), true
}

// IsExpired reports whether the submission deadline is in the past.
// Tenders without a deadline never expire.
func (t *Tender) IsExpired(now time.Time) bool {
	if t.Deadline == nil {
		return false
	}
	return now.After(*t.Deadline)
}

// FormattedValue renders the estimated value with its currency for display,
// e.g. "250,000.00 EUR". Returns "" when no value is known.
func (t *Tender) FormattedValue() string {
	if t.EstimatedValue == nil {
		return ""
	}
	currency := t.Currency
	if currency == "" {
		currency = "EUR"
	}
	return valuePrinter.Sprintf("%v %s", number.Decimal(*t.EstimatedValue, number.Scale(2)), currency)
}
