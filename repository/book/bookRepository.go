package bookrepo

import (
	"context"
	"database/sql"

	"booklibrary/model"
)

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	ListByState(ctx context.Context, deleted bool) ([]model.Book, error)
	FindByID(ctx context.Context, id int64, deleted bool) (*model.Book, error)
	Update(ctx context.Context, b *model.Book) error

	// Tx-scoped lifecycle primitives. LockForUpdate pins the row so
	// concurrent state transitions on the same book serialize.
	LockForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error)
	SetDeleted(ctx context.Context, tx *sql.Tx, id int64, deleted bool) error
	DeleteRow(ctx context.Context, tx *sql.Tx, id int64) error

	ListPage(ctx context.Context, q ListQuery) ([]model.Book, int64, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) Create(ctx context.Context, b *model.Book) error {
	const q = `
		INSERT INTO books (title, author, isbn)
		VALUES ($1, $2, $3)
		RETURNING id, is_deleted, created_at, updated_at`
	return r.db.QueryRowContext(ctx, q, b.Title, b.Author, b.ISBN).
		Scan(&b.ID, &b.IsDeleted, &b.CreatedAt, &b.UpdatedAt)
}

func (r *repo) ListByState(ctx context.Context, deleted bool) ([]model.Book, error) {
	const q = `
		SELECT id, title, author, isbn, is_deleted, created_at, updated_at
		FROM books
		WHERE is_deleted = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, deleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Book
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.IsDeleted, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FindByID is state-scoped: an active-only lookup never returns a trashed
// row and vice versa.
func (r *repo) FindByID(ctx context.Context, id int64, deleted bool) (*model.Book, error) {
	const q = `
		SELECT id, title, author, isbn, is_deleted, created_at, updated_at
		FROM books
		WHERE id = $1
		AND is_deleted = $2`
	b := &model.Book{}
	err := r.db.QueryRowContext(ctx, q, id, deleted).
		Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.IsDeleted, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repo) Update(ctx context.Context, b *model.Book) error {
	const q = `
		UPDATE books
		SET title = $2,
			author = $3,
			isbn = $4,
			updated_at = NOW()
		WHERE id = $1
		AND is_deleted = FALSE
		RETURNING updated_at`
	return r.db.QueryRowContext(ctx, q, b.ID, b.Title, b.Author, b.ISBN).Scan(&b.UpdatedAt)
}

func (r *repo) LockForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error) {
	const q = `
		SELECT id, title, author, isbn, is_deleted, created_at, updated_at
		FROM books
		WHERE id = $1
		FOR UPDATE`
	b := &model.Book{}
	err := tx.QueryRowContext(ctx, q, id).
		Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.IsDeleted, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repo) SetDeleted(ctx context.Context, tx *sql.Tx, id int64, deleted bool) error {
	const q = `
		UPDATE books
		SET is_deleted = $2,
			updated_at = NOW()
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, id, deleted)
	return err
}

func (r *repo) DeleteRow(ctx context.Context, tx *sql.Tx, id int64) error {
	const q = `
		DELETE FROM books
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, id)
	return err
}
