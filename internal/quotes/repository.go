package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/constructo-erp/constructo-erp/internal/platform/db"
	"github.com/constructo-erp/constructo-erp/internal/platform/httpx"
)

// Repository provides persistence for quotes, their lines and their
// audit trail. Implementations must make WithTx transactional: every
// call made through the repository passed to fn commits or rolls back
// as a unit.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	Get(ctx context.Context, id int64) (*Quote, error)
	GetByDocNumber(ctx context.Context, docNumber string) (*Quote, error)
	GetDetails(ctx context.Context, id int64) (*QuoteWithDetails, error)
	List(ctx context.Context, req ListQuotesRequest) ([]QuoteSummary, int, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]int64, error)

	Create(ctx context.Context, quote Quote) (int64, error)
	UpdateHeader(ctx context.Context, id int64, updates map[string]any) error
	UpdateStatus(ctx context.Context, id int64, status QuoteStatus) error
	SetProject(ctx context.Context, id int64, projectID int64) error
	Delete(ctx context.Context, id int64) error

	InsertLine(ctx context.Context, line QuoteLine) (int64, error)
	DeleteLines(ctx context.Context, quoteID int64) error

	InsertValidation(ctx context.Context, entry ValidationEntry) error
	ListValidations(ctx context.Context, quoteID int64) ([]ValidationEntry, error)
	DeleteValidations(ctx context.Context, quoteID int64) error

	NextDocNumber(ctx context.Context, prefix string, year int) (string, error)
	DocNumberExists(ctx context.Context, docNumber string) (bool, error)

	Statistics(ctx context.Context) (*Statistics, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const quoteColumns = `id, doc_number, company_id, contact_id, client_name, employee_id, project_id,
	status, priority, quote_date, due_date, notes,
	federal_rate, provincial_rate, client_type, sector, currency, validity_days, estimated_price,
	created_at, updated_at`

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	err := row.Scan(
		&q.ID, &q.DocNumber, &q.CompanyID, &q.ContactID, &q.ClientName, &q.EmployeeID, &q.ProjectID,
		&q.Status, &q.Priority, &q.QuoteDate, &q.DueDate, &q.Notes,
		&q.Tax.FederalRate, &q.Tax.ProvincialRate, &q.Tax.ClientType, &q.Tax.Sector,
		&q.Tax.Currency, &q.Tax.ValidityDays, &q.Tax.EstimatedPrice,
		&q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Quote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM quotes WHERE id = $1", quoteColumns), id))
	if err != nil {
		return nil, err
	}
	q.Lines, err = r.lines(ctx, id)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (r *repository) GetByDocNumber(ctx context.Context, docNumber string) (*Quote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM quotes WHERE doc_number = $1", quoteColumns), docNumber))
	if err != nil {
		return nil, err
	}
	q.Lines, err = r.lines(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (r *repository) GetDetails(ctx context.Context, id int64) (*QuoteWithDetails, error) {
	const query = `
		SELECT q.id, q.doc_number, q.company_id, q.contact_id, q.client_name, q.employee_id, q.project_id,
		       q.status, q.priority, q.quote_date, q.due_date, q.notes,
		       q.federal_rate, q.provincial_rate, q.client_type, q.sector, q.currency, q.validity_days, q.estimated_price,
		       q.created_at, q.updated_at,
		       c.name AS company_name,
		       co.first_name || ' ' || co.last_name AS contact_name,
		       e.first_name || ' ' || e.last_name AS employee_name,
		       p.name AS project_name
		FROM quotes q
		LEFT JOIN companies c ON q.company_id = c.id
		LEFT JOIN contacts co ON q.contact_id = co.id
		JOIN employees e ON q.employee_id = e.id
		LEFT JOIN projects p ON q.project_id = p.id
		WHERE q.id = $1
	`
	var d QuoteWithDetails
	err := r.db.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.DocNumber, &d.CompanyID, &d.ContactID, &d.ClientName, &d.EmployeeID, &d.ProjectID,
		&d.Status, &d.Priority, &d.QuoteDate, &d.DueDate, &d.Notes,
		&d.Tax.FederalRate, &d.Tax.ProvincialRate, &d.Tax.ClientType, &d.Tax.Sector,
		&d.Tax.Currency, &d.Tax.ValidityDays, &d.Tax.EstimatedPrice,
		&d.CreatedAt, &d.UpdatedAt,
		&d.CompanyName, &d.ContactName, &d.EmployeeName, &d.ProjectName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	if d.Lines, err = r.lines(ctx, id); err != nil {
		return nil, err
	}
	if d.History, err = r.ListValidations(ctx, id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repository) List(ctx context.Context, req ListQuotesRequest) ([]QuoteSummary, int, error) {
	conditions := []string{"TRUE"}
	var args []any
	argPos := 1

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("q.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.CompanyID != nil {
		conditions = append(conditions, fmt.Sprintf("q.company_id = $%d", argPos))
		args = append(args, *req.CompanyID)
		argPos++
	}
	if req.EmployeeID != nil {
		conditions = append(conditions, fmt.Sprintf("q.employee_id = $%d", argPos))
		args = append(args, *req.EmployeeID)
		argPos++
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("q.quote_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("q.quote_date <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM quotes q %s", whereClause)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT q.id, q.doc_number, q.status, q.priority, q.client_name,
		       e.first_name || ' ' || e.last_name AS employee_name,
		       q.quote_date, q.due_date,
		       CASE WHEN COALESCE(l.amount, 0) = 0 THEN q.estimated_price ELSE l.amount END AS subtotal
		FROM quotes q
		JOIN employees e ON q.employee_id = e.id
		LEFT JOIN (
			SELECT quote_id, SUM(quantity * unit_price) AS amount
			FROM quote_lines GROUP BY quote_id
		) l ON l.quote_id = q.id
		%s
		ORDER BY q.created_at DESC, q.id DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var summaries []QuoteSummary
	for rows.Next() {
		var s QuoteSummary
		if err := rows.Scan(
			&s.ID, &s.DocNumber, &s.Status, &s.Priority, &s.ClientName,
			&s.EmployeeName, &s.QuoteDate, &s.DueDate, &s.Subtotal,
		); err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, s)
	}
	return summaries, total, rows.Err()
}

func (r *repository) ListOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM quotes
		WHERE due_date < $1
		  AND status NOT IN ('APPROVED', 'COMPLETED', 'CANCELLED', 'EXPIRED')
		ORDER BY id
	`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) Create(ctx context.Context, q Quote) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO quotes
			(doc_number, company_id, contact_id, client_name, employee_id, project_id,
			 status, priority, quote_date, due_date, notes,
			 federal_rate, provincial_rate, client_type, sector, currency, validity_days, estimated_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id
	`,
		q.DocNumber, q.CompanyID, q.ContactID, q.ClientName, q.EmployeeID, q.ProjectID,
		q.Status, q.Priority, q.QuoteDate, q.DueDate, q.Notes,
		q.Tax.FederalRate, q.Tax.ProvincialRate, q.Tax.ClientType, q.Tax.Sector,
		q.Tax.Currency, q.Tax.ValidityDays, q.Tax.EstimatedPrice,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: doc number %s", httpx.ErrDuplicate, q.DocNumber)
		}
		return 0, err
	}
	return id, nil
}

// headerColumns whitelists the columns UpdateHeader may touch.
var headerColumns = []string{
	"company_id", "contact_id", "client_name", "employee_id", "project_id",
	"priority", "due_date", "notes",
	"federal_rate", "provincial_rate", "client_type", "sector", "estimated_price",
}

func (r *repository) UpdateHeader(ctx context.Context, id int64, updates map[string]any) error {
	query := "UPDATE quotes SET updated_at = NOW()"
	var args []any
	argPos := 1
	for _, col := range headerColumns {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}
	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status QuoteStatus) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE quotes SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) SetProject(ctx context.Context, id int64, projectID int64) error {
	_, err := r.db.Exec(ctx,
		"UPDATE quotes SET project_id = $1, updated_at = NOW() WHERE id = $2", projectID, id)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM quotes WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) lines(ctx context.Context, quoteID int64) ([]QuoteLine, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, quote_id, line_no, description, product_code, quantity, unit, unit_price, notes
		FROM quote_lines WHERE quote_id = $1 ORDER BY line_no
	`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []QuoteLine
	for rows.Next() {
		var l QuoteLine
		if err := rows.Scan(
			&l.ID, &l.QuoteID, &l.LineNo, &l.Description, &l.ProductCode,
			&l.Quantity, &l.Unit, &l.UnitPrice, &l.Notes,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) InsertLine(ctx context.Context, line QuoteLine) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO quote_lines (quote_id, line_no, description, product_code, quantity, unit, unit_price, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		line.QuoteID, line.LineNo, line.Description, line.ProductCode,
		line.Quantity, line.Unit, line.UnitPrice, line.Notes,
	).Scan(&id)
	return id, err
}

func (r *repository) DeleteLines(ctx context.Context, quoteID int64) error {
	_, err := r.db.Exec(ctx, "DELETE FROM quote_lines WHERE quote_id = $1", quoteID)
	return err
}

func (r *repository) InsertValidation(ctx context.Context, entry ValidationEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO quote_validations (quote_id, employee_id, type, comment)
		VALUES ($1, $2, $3, $4)
	`, entry.QuoteID, entry.EmployeeID, entry.Type, entry.Comment)
	return err
}

func (r *repository) ListValidations(ctx context.Context, quoteID int64) ([]ValidationEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT v.id, v.quote_id, v.employee_id, v.type, v.comment, v.created_at,
		       e.first_name || ' ' || e.last_name AS employee_name
		FROM quote_validations v
		LEFT JOIN employees e ON v.employee_id = e.id
		WHERE v.quote_id = $1
		ORDER BY v.created_at DESC, v.id DESC
	`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ValidationEntry
	for rows.Next() {
		var v ValidationEntry
		if err := rows.Scan(
			&v.ID, &v.QuoteID, &v.EmployeeID, &v.Type, &v.Comment, &v.CreatedAt, &v.EmployeeName,
		); err != nil {
			return nil, err
		}
		entries = append(entries, v)
	}
	return entries, rows.Err()
}

func (r *repository) DeleteValidations(ctx context.Context, quoteID int64) error {
	_, err := r.db.Exec(ctx, "DELETE FROM quote_validations WHERE quote_id = $1", quoteID)
	return err
}

// NextDocNumber reserves the next sequence for the year through an
// atomic upsert on the counter row, so two concurrent callers can never
// observe the same sequence.
func (r *repository) NextDocNumber(ctx context.Context, prefix string, year int) (string, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, year, seq)
		VALUES ('QUOTE', $1, 1)
		ON CONFLICT (doc_type, year)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, year).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%03d", prefix, year, seq), nil
}

func (r *repository) DocNumberExists(ctx context.Context, docNumber string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM quotes WHERE doc_number = $1)", docNumber).Scan(&exists)
	return exists, err
}

func (r *repository) Statistics(ctx context.Context) (*Statistics, error) {
	rows, err := r.db.Query(ctx, `
		SELECT q.status, COUNT(*),
		       COALESCE(SUM(CASE WHEN COALESCE(l.amount, 0) = 0 THEN q.estimated_price ELSE l.amount END), 0)
		FROM quotes q
		LEFT JOIN (
			SELECT quote_id, SUM(quantity * unit_price) AS amount
			FROM quote_lines GROUP BY quote_id
		) l ON l.quote_id = q.id
		GROUP BY q.status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &Statistics{ByStatus: make(map[QuoteStatus]StatusStat)}
	for rows.Next() {
		var status QuoteStatus
		var stat StatusStat
		if err := rows.Scan(&status, &stat.Count, &stat.Amount); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = stat
		stats.TotalQuotes += stat.Count
		stats.TotalAmount += stat.Amount
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM quotes
		WHERE due_date < CURRENT_DATE
		  AND status NOT IN ('APPROVED', 'COMPLETED', 'CANCELLED', 'EXPIRED')
	`).Scan(&stats.OverdueOpen)
	if err != nil {
		return nil, err
	}

	finalizeStatistics(stats)
	return stats, nil
}

// finalizeStatistics derives the rate and pending figures from the
// per-status aggregates. Shared with the in-memory test repository.
func finalizeStatistics(stats *Statistics) {
	accepted := stats.ByStatus[QuoteStatusApproved].Count + stats.ByStatus[QuoteStatusCompleted].Count
	decided := accepted + stats.ByStatus[QuoteStatusCancelled].Count + stats.ByStatus[QuoteStatusExpired].Count
	if decided > 0 {
		stats.AcceptanceRate = float64(accepted) / float64(decided) * 100
	}
	stats.Pending = stats.ByStatus[QuoteStatusDraft].Count +
		stats.ByStatus[QuoteStatusValidated].Count +
		stats.ByStatus[QuoteStatusSent].Count
}
