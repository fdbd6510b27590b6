package bookrepo

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import

	"booklibrary/model"
)

type ListKind string

const (
	KindAll       ListKind = "all"
	KindAvailable ListKind = "available"
	KindTrashed   ListKind = "trashed"
)

type ListQuery struct {
	Kind   ListKind
	Offset int
	Limit  int
	Desc   bool
}

const dialectPostgres = "postgres"

// ListPage fetches one page of books ordered by title together with the
// total matching row count in a single round trip (COUNT(*) OVER() window).
func (r *repo) ListPage(ctx context.Context, q ListQuery) ([]model.Book, int64, error) {
	ds := goqu.Dialect(dialectPostgres).
		From("books").
		Select(
			goqu.C("id"), goqu.C("title"), goqu.C("author"), goqu.C("isbn"),
			goqu.C("is_deleted"), goqu.C("created_at"), goqu.C("updated_at"),
			goqu.L("COUNT(*) OVER()").As("total"),
		)

	switch q.Kind {
	case KindTrashed:
		ds = ds.Where(goqu.C("is_deleted").IsTrue())
	case KindAvailable:
		ds = ds.Where(
			goqu.C("is_deleted").IsFalse(),
			goqu.L("NOT EXISTS (SELECT 1 FROM loans WHERE loans.book_id = books.id)"),
		)
	default:
		ds = ds.Where(goqu.C("is_deleted").IsFalse())
	}

	order := goqu.C("title").Asc()
	if q.Desc {
		order = goqu.C("title").Desc()
	}
	ds = ds.Order(order).Limit(uint(q.Limit)).Offset(uint(q.Offset))

	sqlStr, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		out   []model.Book
		total int64
	)
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.IsDeleted, &b.CreatedAt, &b.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	// The window total is absent when the page is past the end, so fall back
	// to a plain count for correct totalPages on out-of-range pages.
	if len(out) == 0 {
		total, err = r.countKind(ctx, q.Kind)
		if err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (r *repo) countKind(ctx context.Context, kind ListKind) (int64, error) {
	var q string
	switch kind {
	case KindTrashed:
		q = `SELECT COUNT(*) FROM books WHERE is_deleted = TRUE`
	case KindAvailable:
		q = `
			SELECT COUNT(*) FROM books b
			WHERE b.is_deleted = FALSE
			AND NOT EXISTS (SELECT 1 FROM loans l WHERE l.book_id = b.id)`
	default:
		q = `SELECT COUNT(*) FROM books WHERE is_deleted = FALSE`
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, q).Scan(&total); err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return total, nil
}
