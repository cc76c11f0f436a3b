package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/constructo-erp/constructo-erp/internal/platform/db"
	"github.com/constructo-erp/constructo-erp/internal/platform/httpx"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	Get(ctx context.Context, id int64) (*Project, error)
	List(ctx context.Context, req ListProjectsRequest) ([]Project, int, error)
	Create(ctx context.Context, p Project) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status ProjectStatus) error

	InsertMaterial(ctx context.Context, m Material) (int64, error)
	ListMaterials(ctx context.Context, projectID int64) ([]Material, error)
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

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const projectColumns = `id, name, description, status, estimated_price, start_date, target_date,
	company_id, quote_id, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Project, error) {
	var p Project
	err := r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM projects WHERE id = $1", projectColumns), id,
	).Scan(
		&p.ID, &p.Name, &p.Description, &p.Status, &p.EstimatedPrice,
		&p.StartDate, &p.TargetDate, &p.CompanyID, &p.QuoteID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	if p.Materials, err = r.ListMaterials(ctx, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) List(ctx context.Context, req ListProjectsRequest) ([]Project, int, error) {
	where := "WHERE TRUE"
	var args []any
	argPos := 1
	if req.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, *req.Status)
		argPos++
	}
	if req.CompanyID != nil {
		where += fmt.Sprintf(" AND company_id = $%d", argPos)
		args = append(args, *req.CompanyID)
		argPos++
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM projects "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM projects %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		projectColumns, where, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Status, &p.EstimatedPrice,
			&p.StartDate, &p.TargetDate, &p.CompanyID, &p.QuoteID,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}
	return projects, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, p Project) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO projects (name, description, status, estimated_price, start_date, target_date, company_id, quote_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		p.Name, p.Description, p.Status, p.EstimatedPrice,
		p.StartDate, p.TargetDate, p.CompanyID, p.QuoteID,
	).Scan(&id)
	return id, err
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status ProjectStatus) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE projects SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) InsertMaterial(ctx context.Context, m Material) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO project_materials (project_id, description, product_code, quantity, unit, unit_price, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, m.ProjectID, m.Description, m.ProductCode, m.Quantity, m.Unit, m.UnitPrice, m.Notes).Scan(&id)
	return id, err
}

func (r *repository) ListMaterials(ctx context.Context, projectID int64) ([]Material, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, project_id, description, product_code, quantity, unit, unit_price, notes
		FROM project_materials WHERE project_id = $1 ORDER BY id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var materials []Material
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Description, &m.ProductCode, &m.Quantity, &m.Unit, &m.UnitPrice, &m.Notes); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}
