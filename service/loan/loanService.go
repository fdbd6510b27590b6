package loansvc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"booklibrary/model"
	loanrepo "booklibrary/repository/loan"
)

// errors used by controllers

type ErrCode string

const (
	ErrBookNotFound  ErrCode = "BOOK_NOT_FOUND"
	ErrUserNotFound  ErrCode = "USER_NOT_FOUND"
	ErrAlreadyOnLoan ErrCode = "ALREADY_ON_LOAN"
	ErrLoanNotFound  ErrCode = "LOAN_NOT_FOUND"
)

type codedError struct {
	code ErrCode
	msg  string
}

func (e codedError) Error() string { return e.msg }
func (e codedError) Code() ErrCode { return e.code }

func makeErr(c ErrCode, msg string) error { return codedError{code: c, msg: msg} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// dto

type Confirmation struct {
	LoanID  int64  `json:"loan_id,omitempty"`
	BookID  int64  `json:"book_id"`
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

// GroupedRow = repository shape
type GroupedRow = loanrepo.GroupedRow

type Books interface {
	FindByID(ctx context.Context, id int64, deleted bool) (*model.Book, error)
	LockForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error)
}

type Users interface {
	ByID(ctx context.Context, id int64) (*model.User, error)
}

type Ledger interface {
	ExistsForBook(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error)
	Insert(ctx context.Context, tx *sql.Tx, bookID, userID int64) (int64, error)
	DeleteByBookAndUser(ctx context.Context, bookID, userID int64) (bool, error)
	ListGrouped(ctx context.Context) ([]GroupedRow, error)
	TitlesByUser(ctx context.Context, userID int64) ([]string, error)
	ListAvailableBooks(ctx context.Context) ([]model.Book, error)
}

type Service interface {
	// Borrow creates the loan pairing; at most one loan may reference a
	// book at any time.
	Borrow(ctx context.Context, bookID, userID int64) (*Confirmation, error)

	// Return releases the loan; only the current holder may return.
	Return(ctx context.Context, bookID, userID int64) (*Confirmation, error)

	// ListLoans groups held titles per user; users with no loans are omitted.
	ListLoans(ctx context.Context) ([]model.UserLoans, error)

	// UserLoans lists the titles one user currently holds.
	UserLoans(ctx context.Context, userID int64) (*model.UserLoans, error)

	// ListAvailable: active books with no loan row.
	ListAvailable(ctx context.Context) ([]model.Book, error)
}

// ----- Service implementation -----

type service struct {
	db     *sql.DB
	books  Books
	users  Users
	ledger Ledger
}

func New(db *sql.DB, books Books, users Users, ledger Ledger) Service {
	return &service{db: db, books: books, users: users, ledger: ledger}
}

// Borrow locks the book row for the duration of the insert, so the
// check-then-insert cannot race with a parallel borrow. The unique
// constraint on loans.book_id is still the backstop: losing an insert race
// surfaces as the same conflict, never as an internal error.
func (s *service) Borrow(ctx context.Context, bookID, userID int64) (_ *Confirmation, err error) {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrUserNotFound, fmt.Sprintf("user with id %d not found", userID))
		}
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	book, err := s.books.LockForUpdate(ctx, tx, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrBookNotFound, fmt.Sprintf("book with id %d not found", bookID))
		}
		return nil, err
	}
	if book.IsDeleted {
		return nil, makeErr(ErrBookNotFound, fmt.Sprintf("book with id %d not found", bookID))
	}

	onLoan, err := s.ledger.ExistsForBook(ctx, tx, bookID)
	if err != nil {
		return nil, err
	}
	if onLoan {
		return nil, makeErr(ErrAlreadyOnLoan, fmt.Sprintf("book with id %d is already on loan", bookID))
	}

	loanID, err := s.ledger.Insert(ctx, tx, bookID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, makeErr(ErrAlreadyOnLoan, fmt.Sprintf("book with id %d is already on loan", bookID))
		}
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return &Confirmation{
		LoanID:  loanID,
		BookID:  bookID,
		UserID:  userID,
		Message: fmt.Sprintf("book %q assigned to user %s", book.Title, user.Username),
	}, nil
}

func (s *service) Return(ctx context.Context, bookID, userID int64) (*Confirmation, error) {
	book, err := s.books.FindByID(ctx, bookID, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrBookNotFound, fmt.Sprintf("book with id %d not found", bookID))
		}
		return nil, err
	}

	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrUserNotFound, fmt.Sprintf("user with id %d not found", userID))
		}
		return nil, err
	}

	deleted, err := s.ledger.DeleteByBookAndUser(ctx, bookID, userID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		// rejected even when another user holds the book
		return nil, makeErr(ErrLoanNotFound,
			fmt.Sprintf("no loan of book %d held by user %d", bookID, userID))
	}

	return &Confirmation{
		BookID:  bookID,
		UserID:  userID,
		Message: fmt.Sprintf("book %q returned by user %s", book.Title, user.Username),
	}, nil
}

// ListLoans is a grouping over the loan relation keyed by user. Titles keep
// the order the underlying rows were read in; cross-user order follows
// first appearance.
func (s *service) ListLoans(ctx context.Context) ([]model.UserLoans, error) {
	rows, err := s.ledger.ListGrouped(ctx)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string]*model.UserLoans)
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		g, ok := byUser[row.Username]
		if !ok {
			g = &model.UserLoans{Username: row.Username, Name: row.Name}
			byUser[row.Username] = g
			order = append(order, row.Username)
		}
		g.Titles = append(g.Titles, row.Title)
	}

	out := make([]model.UserLoans, 0, len(order))
	for _, username := range order {
		out = append(out, *byUser[username])
	}
	return out, nil
}

func (s *service) UserLoans(ctx context.Context, userID int64) (*model.UserLoans, error) {
	u, err := s.users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrUserNotFound, fmt.Sprintf("user with id %d not found", userID))
		}
		return nil, err
	}
	titles, err := s.ledger.TitlesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.UserLoans{Username: u.Username, Name: u.Name, Titles: titles}, nil
}

func (s *service) ListAvailable(ctx context.Context) ([]model.Book, error) {
	return s.ledger.ListAvailableBooks(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
