package tender

import (
	"context"
	"time"
)

// Page is one page of a filtered tender listing.
type Page struct {
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
	Items []*Tender `json:"items"`
}

// Pages returns the total page count for the listing.
func (p *Page) Pages() int {
	if p.Limit == 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// Stats aggregates the stored tender set. Value sums ignore tenders
// without an estimated value.
type Stats struct {
	Total        int            `json:"total"`
	Active       int            `json:"active"`
	ByCountry    map[string]int `json:"by_country"`
	TotalValue   float64        `json:"total_value"`
	AverageValue float64        `json:"average_value"`
}

// Repository defines the operations for persisting and querying tenders.
type Repository interface {
	// Upsert inserts or fully overwrites tenders keyed by notice ID and
	// reports how many rows were newly inserted vs. updated.
	Upsert(ctx context.Context, tenders []*Tender) (inserted, updated int, err error)
	// List returns one page of tenders matching the filter, ordered by
	// publication date descending, then deadline ascending.
	List(ctx context.Context, filter Filter, page, limit int) (*Page, error)
	GetByID(ctx context.Context, noticeID string) (*Tender, error)
	// ListExpiring returns tenders whose deadline falls within the next
	// `days` days (inclusive), soonest first.
	ListExpiring(ctx context.Context, days int) ([]*Tender, error)
	// ListCreatedSince returns tenders first stored after the given time,
	// newest first.
	ListCreatedSince(ctx context.Context, since time.Time) ([]*Tender, error)
	// DeleteExpired removes tenders whose deadline is strictly before today.
	DeleteExpired(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*Stats, error)
	Ping(ctx context.Context) error
}
