package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tender_watch/internal/domain/tender"
)

// ErrTenderNotFound is returned when no tender carries the requested
// notice ID.
var ErrTenderNotFound = fmt.Errorf("tender not found")

const tenderColumns = `notice_id, title, description, buyer_name, buyer_country,
	estimated_value, currency, deadline, publication_date, cpv_codes,
	procedure_type, place_of_performance, url, created_at, updated_at`

// PostgresTenderRepository persists tenders in a PostgreSQL table keyed by
// notice ID.
type PostgresTenderRepository struct {
	db *sql.DB
}

func NewPostgresTenderRepository(db *sql.DB) *PostgresTenderRepository {
	return &PostgresTenderRepository{db: db}
}

// Upsert inserts or fully overwrites each tender. Updates replace every
// field and refresh updated_at; counts reflect whether a row existed, not
// whether its content changed.
func (r *PostgresTenderRepository) Upsert(ctx context.Context, tenders []*tender.Tender) (int, int, error) {
	if len(tenders) == 0 {
		return 0, 0, nil
	}

	query := `INSERT INTO tenders (
	            notice_id, title, description, buyer_name, buyer_country,
	            estimated_value, currency, deadline, publication_date, cpv_codes,
	            procedure_type, place_of_performance, url
	          ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	          ON CONFLICT (notice_id) DO UPDATE SET
	            title = EXCLUDED.title,
	            description = EXCLUDED.description,
	            buyer_name = EXCLUDED.buyer_name,
	            buyer_country = EXCLUDED.buyer_country,
	            estimated_value = EXCLUDED.estimated_value,
	            currency = EXCLUDED.currency,
	            deadline = EXCLUDED.deadline,
	            publication_date = EXCLUDED.publication_date,
	            cpv_codes = EXCLUDED.cpv_codes,
	            procedure_type = EXCLUDED.procedure_type,
	            place_of_performance = EXCLUDED.place_of_performance,
	            url = EXCLUDED.url,
	            updated_at = NOW()
	          RETURNING (xmax = 0) AS is_insert`

	inserted, updated := 0, 0
	for _, t := range tenders {
		cpv, err := json.Marshal(codesOrEmpty(t.CPVCodes))
		if err != nil {
			return inserted, updated, fmt.Errorf("error encoding cpv codes for %s: %w", t.NoticeID, err)
		}

		var isInsert bool
		err = r.db.QueryRowContext(ctx, query,
			t.NoticeID,
			t.Title,
			t.Description,
			t.BuyerName,
			t.BuyerCountry,
			t.EstimatedValue,
			nullString(t.Currency),
			t.Deadline,
			t.PublicationDate,
			cpv,
			t.ProcedureType,
			t.PlaceOfPerformance,
			t.URL,
		).Scan(&isInsert)
		if err != nil {
			return inserted, updated, fmt.Errorf("error upserting tender %s: %w", t.NoticeID, err)
		}
		if isInsert {
			inserted++
		} else {
			updated++
		}
	}
	return inserted, updated, nil
}

// List returns one page of tenders matching the filter. The filter is
// validated before any SQL is built.
func (r *PostgresTenderRepository) List(ctx context.Context, filter tender.Filter, page, limit int) (*tender.Page, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	where, args := buildWhere(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM tenders" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("error counting tenders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM tenders%s
	          ORDER BY publication_date DESC, deadline ASC
	          LIMIT $%d OFFSET $%d`, tenderColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing tenders: %w", err)
	}
	defer rows.Close()

	items, err := collectTenders(rows)
	if err != nil {
		return nil, err
	}

	return &tender.Page{
		Total: total,
		Page:  page,
		Limit: limit,
		Items: items,
	}, nil
}

func (r *PostgresTenderRepository) GetByID(ctx context.Context, noticeID string) (*tender.Tender, error) {
	query := fmt.Sprintf("SELECT %s FROM tenders WHERE notice_id = $1", tenderColumns)
	t, err := scanTender(r.db.QueryRowContext(ctx, query, noticeID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTenderNotFound
		}
		return nil, fmt.Errorf("error getting tender by ID: %w", err)
	}
	return t, nil
}

// ListExpiring returns tenders whose deadline falls between today and
// today+days inclusive, soonest deadline first.
func (r *PostgresTenderRepository) ListExpiring(ctx context.Context, days int) ([]*tender.Tender, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenders
	          WHERE deadline IS NOT NULL
	            AND deadline >= CURRENT_DATE
	            AND deadline <= CURRENT_DATE + ($1 * INTERVAL '1 day')
	          ORDER BY deadline ASC`, tenderColumns)

	rows, err := r.db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("error listing expiring tenders: %w", err)
	}
	defer rows.Close()
	return collectTenders(rows)
}

// ListCreatedSince returns tenders first stored after the given time,
// newest first.
func (r *PostgresTenderRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]*tender.Tender, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenders
	          WHERE created_at > $1
	          ORDER BY created_at DESC`, tenderColumns)

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("error listing new tenders: %w", err)
	}
	defer rows.Close()
	return collectTenders(rows)
}

// DeleteExpired removes every tender whose deadline is strictly before
// today. Tenders without a deadline are never deleted.
func (r *PostgresTenderRepository) DeleteExpired(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tenders WHERE deadline IS NOT NULL AND deadline < CURRENT_DATE`)
	if err != nil {
		return 0, fmt.Errorf("error deleting expired tenders: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting deleted tenders: %w", err)
	}
	return int(deleted), nil
}

// Stats aggregates the stored set. Active means the deadline is absent or
// has not elapsed; value aggregates skip tenders without a value.
func (r *PostgresTenderRepository) Stats(ctx context.Context) (*tender.Stats, error) {
	stats := &tender.Stats{ByCountry: make(map[string]int)}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tenders").Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("error counting tenders: %w", err)
	}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tenders WHERE deadline IS NULL OR deadline >= CURRENT_DATE`,
	).Scan(&stats.Active); err != nil {
		return nil, fmt.Errorf("error counting active tenders: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT buyer_country, COUNT(*) AS count
		 FROM tenders
		 GROUP BY buyer_country
		 ORDER BY count DESC
		 LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("error grouping tenders by country: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var country string
		var count int
		if err := rows.Scan(&country, &count); err != nil {
			return nil, fmt.Errorf("error scanning country stats: %w", err)
		}
		stats.ByCountry[country] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating country stats: %w", err)
	}

	var totalValue, avgValue sql.NullFloat64
	if err := r.db.QueryRowContext(ctx,
		`SELECT SUM(estimated_value), AVG(estimated_value)
		 FROM tenders WHERE estimated_value IS NOT NULL`,
	).Scan(&totalValue, &avgValue); err != nil {
		return nil, fmt.Errorf("error aggregating tender values: %w", err)
	}
	stats.TotalValue = totalValue.Float64
	stats.AverageValue = avgValue.Float64

	return stats, nil
}

func (r *PostgresTenderRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// buildWhere renders the conjunctive WHERE clause for a filter with
// positional parameters.
func buildWhere(f tender.Filter) (string, []any) {
	var clauses []string
	var args []any

	if f.Country != "" {
		args = append(args, f.Country)
		clauses = append(clauses, fmt.Sprintf("buyer_country = $%d", len(args)))
	}
	if f.CPV != "" {
		code, _ := json.Marshal([]string{f.CPV})
		args = append(args, string(code))
		clauses = append(clauses, fmt.Sprintf("cpv_codes @> $%d::jsonb", len(args)))
	}
	if f.MinValue != nil {
		args = append(args, *f.MinValue)
		clauses = append(clauses, fmt.Sprintf("estimated_value >= $%d", len(args)))
	}
	if f.MaxValue != nil {
		args = append(args, *f.MaxValue)
		clauses = append(clauses, fmt.Sprintf("estimated_value <= $%d", len(args)))
	}
	if f.DaysRemaining != nil {
		// Historical behaviour: only "deadline not elapsed" is enforced,
		// the requested day count itself is not compared.
		clauses = append(clauses, "deadline >= CURRENT_DATE")
	}
	if f.SearchText != "" {
		args = append(args, "%"+f.SearchText+"%")
		clauses = append(clauses, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTender(row rowScanner) (*tender.Tender, error) {
	var (
		t         tender.Tender
		desc      sql.NullString
		value     sql.NullFloat64
		currency  sql.NullString
		deadline  sql.NullTime
		cpv       []byte
		procedure sql.NullString
		place     sql.NullString
	)
	err := row.Scan(
		&t.NoticeID, &t.Title, &desc, &t.BuyerName, &t.BuyerCountry,
		&value, &currency, &deadline, &t.PublicationDate, &cpv,
		&procedure, &place, &t.URL, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if desc.Valid {
		t.Description = &desc.String
	}
	if value.Valid {
		t.EstimatedValue = &value.Float64
	}
	t.Currency = currency.String
	if deadline.Valid {
		d := deadline.Time
		t.Deadline = &d
	}
	if procedure.Valid {
		t.ProcedureType = &procedure.String
	}
	if place.Valid {
		t.PlaceOfPerformance = &place.String
	}

	t.CPVCodes = []string{}
	if len(cpv) > 0 {
		if err := json.Unmarshal(cpv, &t.CPVCodes); err != nil {
			t.CPVCodes = []string{}
		}
	}
	return &t, nil
}

func collectTenders(rows *sql.Rows) ([]*tender.Tender, error) {
	tenders := make([]*tender.Tender, 0)
	for rows.Next() {
		t, err := scanTender(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning tender: %w", err)
		}
		tenders = append(tenders, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenders: %w", err)
	}
	return tenders, nil
}

func codesOrEmpty(codes []string) []string {
	if codes == nil {
		return []string{}
	}
	return codes
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
