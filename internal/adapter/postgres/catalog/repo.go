// Package catalog implements the catalog item repository using PostgreSQL.
// Copy counters are only changed through conditional UPDATE statements so
// concurrent transactions can never push available_copies out of range.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	postgres "github.com/heartmarshall/circulation-backend/internal/adapter/postgres"
	"github.com/heartmarshall/circulation-backend/internal/domain"
)

const entity = "catalog_item"

const itemColumns = `id, title, author, isbn, category, description, published_year,
	total_copies, available_copies, created_at, updated_at`

var listColumns = []string{
	"id", "title", "author", "isbn", "category", "description", "published_year",
	"total_copies", "available_copies", "created_at", "updated_at",
}

// Repo provides catalog persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new catalog repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a catalog item.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (domain.CatalogItem, error) {
	return r.get(ctx, id, "")
}

// GetByIDForUpdate returns a catalog item and locks its row until the
// surrounding transaction ends.
func (r *Repo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.CatalogItem, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *Repo) get(ctx context.Context, id uuid.UUID, lock string) (domain.CatalogItem, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	row := q.QueryRow(ctx, `SELECT `+itemColumns+` FROM catalog_items WHERE id = $1`+lock, id)
	item, err := scanItem(row)
	if err != nil {
		return domain.CatalogItem{}, postgres.MapError(err, entity, id)
	}
	return item, nil
}

// likeEscaper makes search text match literally under LIKE's default
// backslash escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns items matching filter ordered by title, then id. Search is a
// case-insensitive substring match on title or author.
func (r *Repo) List(ctx context.Context, filter domain.CatalogFilter) ([]domain.CatalogItem, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	query := postgres.Builder().
		Select(listColumns...).
		From("catalog_items").
		OrderBy("title ASC", "id ASC")

	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		pattern := "%" + likeEscaper.Replace(strings.TrimSpace(*filter.Search)) + "%"
		query = query.Where(squirrel.Or{
			squirrel.ILike{"title": pattern},
			squirrel.ILike{"author": pattern},
		})
	}
	if filter.Category != nil {
		query = query.Where(squirrel.Eq{"category": *filter.Category})
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build catalog list query: %w", err)
	}

	var rows []itemRow
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list catalog_items: %w", err)
	}

	items := make([]domain.CatalogItem, len(rows))
	for i, row := range rows {
		items[i] = row.toDomain()
	}
	return items, nil
}

// Stats summarises stock and circulation at now.
func (r *Repo) Stats(ctx context.Context, now time.Time) (domain.CatalogStats, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var s domain.CatalogStats
	err := q.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM catalog_items),
			(SELECT coalesce(sum(total_copies), 0) FROM catalog_items),
			(SELECT coalesce(sum(available_copies), 0) FROM catalog_items),
			(SELECT count(*) FROM loans WHERE state IN ('PENDING', 'APPROVED', 'COLLECTED')),
			(SELECT count(*) FROM loans WHERE state IN ('APPROVED', 'COLLECTED') AND due_at < $1)`,
		now,
	).Scan(&s.Titles, &s.TotalCopies, &s.AvailableCopies, &s.ActiveLoans, &s.OverdueLoans)
	if err != nil {
		return domain.CatalogStats{}, fmt.Errorf("catalog stats: %w", err)
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new item and returns the persisted row.
func (r *Repo) Create(ctx context.Context, item domain.CatalogItem) (domain.CatalogItem, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	row := q.QueryRow(ctx, `
		INSERT INTO catalog_items (id, title, author, isbn, category, description, published_year,
			total_copies, available_copies, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+itemColumns,
		item.ID, item.Title, item.Author, item.ISBN, item.Category, item.Description, item.PublishedYear,
		item.TotalCopies, item.AvailableCopies, item.CreatedAt, item.UpdatedAt,
	)
	created, err := scanItem(row)
	if err != nil {
		return domain.CatalogItem{}, postgres.MapError(err, entity, item.ID)
	}
	return created, nil
}

// Update writes the descriptive fields of item. Copy counters are untouched.
func (r *Repo) Update(ctx context.Context, item domain.CatalogItem) (domain.CatalogItem, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	row := q.QueryRow(ctx, `
		UPDATE catalog_items
		SET title = $2, author = $3, isbn = $4, category = $5, description = $6,
			published_year = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+itemColumns,
		item.ID, item.Title, item.Author, item.ISBN, item.Category, item.Description,
		item.PublishedYear, item.UpdatedAt,
	)
	updated, err := scanItem(row)
	if err != nil {
		return domain.CatalogItem{}, postgres.MapError(err, entity, item.ID)
	}
	return updated, nil
}

// Delete removes an item.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM catalog_items WHERE id = $1`, id)
	if err != nil {
		return postgres.MapError(err, entity, id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

// Reserve takes one copy out of the pool.
// Returns domain.ErrOutOfStock when no copy is available.
func (r *Repo) Reserve(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE catalog_items
		SET available_copies = available_copies - 1, updated_at = $2
		WHERE id = $1 AND available_copies > 0`,
		id, at,
	)
	if err != nil {
		return postgres.MapError(err, entity, id)
	}
	if tag.RowsAffected() == 0 {
		return r.missOr(ctx, q, id, domain.ErrOutOfStock)
	}
	return nil
}

// Release puts one copy back into the pool.
// Returns domain.ErrOverrelease when every copy is already in the pool.
func (r *Repo) Release(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE catalog_items
		SET available_copies = available_copies + 1, updated_at = $2
		WHERE id = $1 AND available_copies < total_copies`,
		id, at,
	)
	if err != nil {
		return postgres.MapError(err, entity, id)
	}
	if tag.RowsAffected() == 0 {
		return r.missOr(ctx, q, id, domain.ErrOverrelease)
	}
	return nil
}

// AdjustStock adds delta copies (negative removes). Copies on loan cannot be
// removed; domain.ErrOutOfStock is returned when fewer than -delta are available.
func (r *Repo) AdjustStock(ctx context.Context, id uuid.UUID, delta int, at time.Time) (domain.CatalogItem, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	row := q.QueryRow(ctx, `
		UPDATE catalog_items
		SET total_copies = total_copies + $2,
			available_copies = available_copies + $2,
			updated_at = $3
		WHERE id = $1 AND available_copies + $2 >= 0
		RETURNING `+itemColumns,
		id, delta, at,
	)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CatalogItem{}, r.missOr(ctx, q, id, domain.ErrOutOfStock)
	}
	if err != nil {
		return domain.CatalogItem{}, postgres.MapError(err, entity, id)
	}
	return item, nil
}

// missOr distinguishes a missing row from a failed guard condition.
func (r *Repo) missOr(ctx context.Context, q postgres.Querier, id uuid.UUID, guardErr error) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM catalog_items WHERE id = $1)`, id).Scan(&exists); err != nil {
		return postgres.MapError(err, entity, id)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", entity, id, guardErr)
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

type itemRow struct {
	ID              uuid.UUID `db:"id"`
	Title           string    `db:"title"`
	Author          string    `db:"author"`
	ISBN            *string   `db:"isbn"`
	Category        *string   `db:"category"`
	Description     *string   `db:"description"`
	PublishedYear   *int      `db:"published_year"`
	TotalCopies     int       `db:"total_copies"`
	AvailableCopies int       `db:"available_copies"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (row itemRow) toDomain() domain.CatalogItem {
	return domain.CatalogItem{
		ID:              row.ID,
		Title:           row.Title,
		Author:          row.Author,
		ISBN:            row.ISBN,
		Category:        row.Category,
		Description:     row.Description,
		PublishedYear:   row.PublishedYear,
		TotalCopies:     row.TotalCopies,
		AvailableCopies: row.AvailableCopies,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func scanItem(row pgx.Row) (domain.CatalogItem, error) {
	var r itemRow
	err := row.Scan(&r.ID, &r.Title, &r.Author, &r.ISBN, &r.Category, &r.Description,
		&r.PublishedYear, &r.TotalCopies, &r.AvailableCopies, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	return r.toDomain(), nil
}
