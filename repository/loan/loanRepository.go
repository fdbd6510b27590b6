package loanrepo

import (
	"context"
	"database/sql"

	"booklibrary/model"
)

// GroupedRow is one (user, title) pairing from the loans join, read in
// loan-insertion order within a user.
type GroupedRow struct {
	Username string
	Name     string
	Title    string
}

// Repo is the only writer of loan rows.
type Repo interface {
	ExistsForBook(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error)
	Insert(ctx context.Context, tx *sql.Tx, bookID, userID int64) (int64, error)
	DeleteByBookAndUser(ctx context.Context, bookID, userID int64) (bool, error)

	ListGrouped(ctx context.Context) ([]GroupedRow, error)
	TitlesByUser(ctx context.Context, userID int64) ([]string, error)
	ListAvailableBooks(ctx context.Context) ([]model.Book, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) ExistsForBook(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM loans WHERE book_id = $1
		)`
	var exists bool
	err := tx.QueryRowContext(ctx, q, bookID).Scan(&exists)
	return exists, err
}

func (r *repo) Insert(ctx context.Context, tx *sql.Tx, bookID, userID int64) (int64, error) {
	const q = `
		INSERT INTO loans (book_id, user_id)
		VALUES ($1, $2)
		RETURNING id`
	var id int64
	if err := tx.QueryRowContext(ctx, q, bookID, userID).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteByBookAndUser removes the loan only when the supplied user is the
// current holder. Returns false when no such row exists.
func (r *repo) DeleteByBookAndUser(ctx context.Context, bookID, userID int64) (bool, error) {
	const q = `
		DELETE FROM loans
		WHERE book_id = $1
		AND user_id = $2`
	res, err := r.db.ExecContext(ctx, q, bookID, userID)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

func (r *repo) ListGrouped(ctx context.Context) ([]GroupedRow, error) {
	const q = `
		SELECT u.username, u.name, b.title
		FROM loans l
		JOIN users u ON u.id = l.user_id
		JOIN books b ON b.id = l.book_id
		ORDER BY u.id, l.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GroupedRow
	for rows.Next() {
		var g GroupedRow
		if err := rows.Scan(&g.Username, &g.Name, &g.Title); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *repo) TitlesByUser(ctx context.Context, userID int64) ([]string, error) {
	const q = `
		SELECT b.title
		FROM loans l
		JOIN books b ON b.id = l.book_id
		WHERE l.user_id = $1
		ORDER BY l.id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListAvailableBooks is a left-anti-join: active books with no loan row.
func (r *repo) ListAvailableBooks(ctx context.Context) ([]model.Book, error) {
	const q = `
		SELECT b.id, b.title, b.author, b.isbn, b.is_deleted, b.created_at, b.updated_at
		FROM books b
		LEFT JOIN loans l ON l.book_id = b.id
		WHERE b.is_deleted = FALSE
		AND l.id IS NULL
		ORDER BY b.id`
	rows, err := r.db.QueryContext(ctx, q)
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
