package booksvc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"booklibrary/model"
	bookrepo "booklibrary/repository/book"
	"booklibrary/service/bulk"
)

type Book = model.Book

// ListKind / ListQuery = repository shapes
type ListKind = bookrepo.ListKind
type ListQuery = bookrepo.ListQuery

const (
	KindAll       = bookrepo.KindAll
	KindAvailable = bookrepo.KindAvailable
	KindTrashed   = bookrepo.KindTrashed
)

// dto

type Confirmation struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type CreateItem struct {
	Title  string
	Author string
	ISBN   string
}

type UpdateItem struct {
	ID    int64
	Patch model.BookPatch
}

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	ListByState(ctx context.Context, deleted bool) ([]model.Book, error)
	FindByID(ctx context.Context, id int64, deleted bool) (*model.Book, error)
	Update(ctx context.Context, b *model.Book) error

	LockForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error)
	SetDeleted(ctx context.Context, tx *sql.Tx, id int64, deleted bool) error
	DeleteRow(ctx context.Context, tx *sql.Tx, id int64) error

	ListPage(ctx context.Context, q ListQuery) ([]model.Book, int64, error)
}

// LoanLedger answers "is this book out on loan" inside the trash transaction.
type LoanLedger interface {
	ExistsForBook(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error)
}

type Service interface {
	Create(ctx context.Context, title, author, isbn string) (*Book, error)
	List(ctx context.Context) ([]Book, error)
	ListTrashed(ctx context.Context) ([]Book, error)
	Get(ctx context.Context, id int64) (*Book, error)
	GetTrashed(ctx context.Context, id int64) (*Book, error)
	Update(ctx context.Context, id int64, patch model.BookPatch) (*Book, error)

	// SoftDelete: Active -> Trashed. Restore: Trashed -> Active.
	// HardDelete purges, and only from the trash.
	SoftDelete(ctx context.Context, id int64) (*Confirmation, error)
	Restore(ctx context.Context, id int64) (*Confirmation, error)
	HardDelete(ctx context.Context, id int64) (*Confirmation, error)

	BulkCreate(ctx context.Context, items []CreateItem) bulk.Result[*Book]
	BulkUpdate(ctx context.Context, items []UpdateItem) bulk.Result[*Book]
	BulkTrash(ctx context.Context, ids []int64) bulk.Result[Confirmation]
	BulkRestore(ctx context.Context, ids []int64) bulk.Result[Confirmation]
	BulkHardDelete(ctx context.Context, ids []int64) bulk.Result[Confirmation]

	Paginate(ctx context.Context, q PageQuery) (*Page, error)
}

// ----- Service implementation -----

type service struct {
	db    *sql.DB
	r     Repo
	loans LoanLedger
}

func New(db *sql.DB, r Repo, loans LoanLedger) Service {
	return &service{db: db, r: r, loans: loans}
}

func (s *service) Create(ctx context.Context, title, author, isbn string) (*Book, error) {
	title, author, isbn = strings.TrimSpace(title), strings.TrimSpace(author), strings.TrimSpace(isbn)
	if err := validateFields(title, author, isbn); err != nil {
		return nil, err
	}

	b := &model.Book{Title: title, Author: author, ISBN: isbn}
	if err := s.r.Create(ctx, b); err != nil {
		if derr := mapUniqueViolation(err, isbn); derr != nil {
			return nil, derr
		}
		return nil, err
	}
	return b, nil
}

func (s *service) List(ctx context.Context) ([]Book, error) {
	return s.r.ListByState(ctx, false)
}

func (s *service) ListTrashed(ctx context.Context) ([]Book, error) {
	return s.r.ListByState(ctx, true)
}

func (s *service) Get(ctx context.Context, id int64) (*Book, error) {
	b, err := s.r.FindByID(ctx, id, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, makeErr(ErrNotFound, fmt.Sprintf("book with id %d not found", id))
	}
	return b, err
}

func (s *service) GetTrashed(ctx context.Context, id int64) (*Book, error) {
	b, err := s.r.FindByID(ctx, id, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, makeErr(ErrNotFound, fmt.Sprintf("book with id %d not found in the recycle bin", id))
	}
	return b, err
}

func (s *service) Update(ctx context.Context, id int64, patch model.BookPatch) (*Book, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		b.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Author != nil {
		b.Author = strings.TrimSpace(*patch.Author)
	}
	if patch.ISBN != nil {
		b.ISBN = strings.TrimSpace(*patch.ISBN)
	}
	if err := validateFields(b.Title, b.Author, b.ISBN); err != nil {
		return nil, err
	}

	if err := s.r.Update(ctx, b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// the row was trashed or purged between read and write
			return nil, makeErr(ErrNotFound, fmt.Sprintf("book with id %d not found", id))
		}
		if derr := mapUniqueViolation(err, b.ISBN); derr != nil {
			return nil, derr
		}
		return nil, err
	}
	return b, nil
}

// SoftDelete moves an active book into the trash. A book out on loan cannot
// be trashed; the loan check and the flag flip share one transaction with
// the book row locked.
func (s *service) SoftDelete(ctx context.Context, id int64) (_ *Confirmation, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b, err := s.r.LockForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound, fmt.Sprintf("book with id %d not found or already deleted", id))
		}
		return nil, err
	}
	if b.IsDeleted {
		return nil, makeErr(ErrNotFound, fmt.Sprintf("book with id %d not found or already deleted", id))
	}

	onLoan, err := s.loans.ExistsForBook(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if onLoan {
		return nil, makeErr(ErrOnLoan, fmt.Sprintf("book with id %d is currently on loan", id))
	}

	if err = s.r.SetDeleted(ctx, tx, id, true); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return &Confirmation{
		ID:      id,
		Title:   b.Title,
		Message: fmt.Sprintf("book %q with id %d moved to the recycle bin", b.Title, id),
	}, nil
}

func (s *service) Restore(ctx context.Context, id int64) (_ *Confirmation, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b, err := s.r.LockForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound, fmt.Sprintf("book with id %d not found in the recycle bin", id))
		}
		return nil, err
	}
	if !b.IsDeleted {
		return nil, makeErr(ErrNotFound, fmt.Sprintf("book with id %d not found in the recycle bin", id))
	}

	if err = s.r.SetDeleted(ctx, tx, id, false); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return &Confirmation{
		ID:      id,
		Title:   b.Title,
		Message: fmt.Sprintf("book %q with id %d restored", b.Title, id),
	}, nil
}

// HardDelete purges a trashed book. An active book must be trashed first.
func (s *service) HardDelete(ctx context.Context, id int64) (_ *Confirmation, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b, err := s.r.LockForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound, fmt.Sprintf("book with id %d not found in the recycle bin", id))
		}
		return nil, err
	}
	if !b.IsDeleted {
		return nil, makeErr(ErrNotFound, fmt.Sprintf("book with id %d not found in the recycle bin", id))
	}

	if err = s.r.DeleteRow(ctx, tx, id); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return &Confirmation{
		ID:      id,
		Title:   b.Title,
		Message: fmt.Sprintf("book %q with id %d deleted", b.Title, id),
	}, nil
}

func validateFields(title, author, isbn string) error {
	if len(title) < 2 || len(title) > 50 {
		return makeErr(ErrBadInput, "title must be 2 to 50 characters")
	}
	if len(author) < 3 || len(author) > 50 {
		return makeErr(ErrBadInput, "author must be 3 to 50 characters")
	}
	if len(isbn) != 13 {
		return makeErr(ErrBadInput, "isbn must be exactly 13 characters")
	}
	return nil
}

// mapUniqueViolation reclassifies a storage-level unique violation as the
// domain conflict. Losing a write race must surface the same way as a
// duplicate found up front.
func mapUniqueViolation(err error, isbn string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return makeErr(ErrISBNTaken, fmt.Sprintf("a book with ISBN %s already exists", isbn))
	}
	return nil
}
