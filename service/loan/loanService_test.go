package loansvc_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"booklibrary/model"
	loanrepo "booklibrary/repository/loan"
	loansvc "booklibrary/service/loan"
)

// stub sql.DB handing out no-op transactions; the mocks below ignore the tx.

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubConnector struct{}

func (stubConnector) Connect(context.Context) (driver.Conn, error) { return stubConn{}, nil }
func (stubConnector) Driver() driver.Driver                        { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

func newStubDB() *sql.DB { return sql.OpenDB(stubConnector{}) }

// --- mocks ---

type booksMock struct {
	findFn func(ctx context.Context, id int64, deleted bool) (*model.Book, error)
	lockFn func(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error)
}

func (m *booksMock) FindByID(ctx context.Context, id int64, deleted bool) (*model.Book, error) {
	return m.findFn(ctx, id, deleted)
}
func (m *booksMock) LockForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error) {
	return m.lockFn(ctx, tx, id)
}

type usersMock struct {
	byIDFn func(ctx context.Context, id int64) (*model.User, error)
}

func (m *usersMock) ByID(ctx context.Context, id int64) (*model.User, error) {
	return m.byIDFn(ctx, id)
}

type ledgerMock struct {
	existsFn    func(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error)
	insertFn    func(ctx context.Context, tx *sql.Tx, bookID, userID int64) (int64, error)
	deleteFn    func(ctx context.Context, bookID, userID int64) (bool, error)
	groupedFn   func(ctx context.Context) ([]loanrepo.GroupedRow, error)
	titlesFn    func(ctx context.Context, userID int64) ([]string, error)
	availableFn func(ctx context.Context) ([]model.Book, error)
}

var _ loansvc.Ledger = (*ledgerMock)(nil)

func (m *ledgerMock) ExistsForBook(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error) {
	if m.existsFn == nil {
		return false, nil
	}
	return m.existsFn(ctx, tx, bookID)
}
func (m *ledgerMock) Insert(ctx context.Context, tx *sql.Tx, bookID, userID int64) (int64, error) {
	return m.insertFn(ctx, tx, bookID, userID)
}
func (m *ledgerMock) DeleteByBookAndUser(ctx context.Context, bookID, userID int64) (bool, error) {
	return m.deleteFn(ctx, bookID, userID)
}
func (m *ledgerMock) ListGrouped(ctx context.Context) ([]loanrepo.GroupedRow, error) {
	return m.groupedFn(ctx)
}
func (m *ledgerMock) TitlesByUser(ctx context.Context, userID int64) ([]string, error) {
	return m.titlesFn(ctx, userID)
}
func (m *ledgerMock) ListAvailableBooks(ctx context.Context) ([]model.Book, error) {
	return m.availableFn(ctx)
}

func activeBook(id int64) *model.Book {
	return &model.Book{ID: id, Title: "Dune", Author: "Herbert", ISBN: "9780441013593"}
}

func someUser(id int64) *model.User {
	return &model.User{ID: id, Username: "paul", Name: "Paul Atreides"}
}

// --- tests ---

func TestBorrow_Success(t *testing.T) {
	var insertedBook, insertedUser int64
	l := &ledgerMock{
		insertFn: func(ctx context.Context, tx *sql.Tx, bookID, userID int64) (int64, error) {
			insertedBook, insertedUser = bookID, userID
			return 11, nil
		},
	}
	b := &booksMock{
		lockFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error) {
			return activeBook(id), nil
		},
	}
	u := &usersMock{
		byIDFn: func(ctx context.Context, id int64) (*model.User, error) { return someUser(id), nil },
	}
	s := loansvc.New(newStubDB(), b, u, l)

	conf, err := s.Borrow(context.Background(), 7, 1)
	require.NoError(t, err)
	require.Equal(t, int64(11), conf.LoanID)
	require.Equal(t, int64(7), insertedBook)
	require.Equal(t, int64(1), insertedUser)
	require.Contains(t, conf.Message, "Dune")
}

func TestBorrow_BookMissingOrTrashed(t *testing.T) {
	u := &usersMock{
		byIDFn: func(ctx context.Context, id int64) (*model.User, error) { return someUser(id), nil },
	}

	b := &booksMock{
		lockFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error) {
			return nil, sql.ErrNoRows
		},
	}
	s := loansvc.New(newStubDB(), b, u, &ledgerMock{})
	_, err := s.Borrow(context.Background(), 7, 1)
	require.Equal(t, loansvc.ErrBookNotFound, loansvc.Code(err))

	b = &booksMock{
		lockFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error) {
			bk := activeBook(id)
			bk.IsDeleted = true
			return bk, nil
		},
	}
	s = loansvc.New(newStubDB(), b, u, &ledgerMock{})
	_, err = s.Borrow(context.Background(), 7, 1)
	require.Equal(t, loansvc.ErrBookNotFound, loansvc.Code(err))
}

func TestBorrow_UserMissing(t *testing.T) {
	u := &usersMock{
		byIDFn: func(ctx context.Context, id int64) (*model.User, error) { return nil, sql.ErrNoRows },
	}
	s := loansvc.New(newStubDB(), &booksMock{}, u, &ledgerMock{})

	_, err := s.Borrow(context.Background(), 7, 99)
	require.Equal(t, loansvc.ErrUserNotFound, loansvc.Code(err))
}

func TestBorrow_AlreadyOnLoan(t *testing.T) {
	inserted := false
	l := &ledgerMock{
		existsFn: func(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error) { return true, nil },
		insertFn: func(ctx context.Context, tx *sql.Tx, bookID, userID int64) (int64, error) {
			inserted = true
			return 0, nil
		},
	}
	b := &booksMock{
		lockFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error) {
			return activeBook(id), nil
		},
	}
	u := &usersMock{
		byIDFn: func(ctx context.Context, id int64) (*model.User, error) { return someUser(id), nil },
	}
	s := loansvc.New(newStubDB(), b, u, l)

	_, err := s.Borrow(context.Background(), 7, 2)
	require.Equal(t, loansvc.ErrAlreadyOnLoan, loansvc.Code(err))
	require.False(t, inserted)
}

func TestBorrow_RaceLostOnInsert(t *testing.T) {
	// the pre-check saw nothing but a parallel borrow won the insert race;
	// the unique violation must surface as the same conflict
	l := &ledgerMock{
		insertFn: func(ctx context.Context, tx *sql.Tx, bookID, userID int64) (int64, error) {
			return 0, &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "loans_book_id_key"}
		},
	}
	b := &booksMock{
		lockFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error) {
			return activeBook(id), nil
		},
	}
	u := &usersMock{
		byIDFn: func(ctx context.Context, id int64) (*model.User, error) { return someUser(id), nil },
	}
	s := loansvc.New(newStubDB(), b, u, l)

	_, err := s.Borrow(context.Background(), 7, 2)
	require.Equal(t, loansvc.ErrAlreadyOnLoan, loansvc.Code(err))
}

func TestReturn_Success(t *testing.T) {
	var deletedBook, deletedUser int64
	l := &ledgerMock{
		deleteFn: func(ctx context.Context, bookID, userID int64) (bool, error) {
			deletedBook, deletedUser = bookID, userID
			return true, nil
		},
	}
	b := &booksMock{
		findFn: func(ctx context.Context, id int64, deleted bool) (*model.Book, error) {
			require.False(t, deleted)
			return activeBook(id), nil
		},
	}
	u := &usersMock{
		byIDFn: func(ctx context.Context, id int64) (*model.User, error) { return someUser(id), nil },
	}
	s := loansvc.New(newStubDB(), b, u, l)

	conf, err := s.Return(context.Background(), 7, 1)
	require.NoError(t, err)
	require.Equal(t, int64(7), deletedBook)
	require.Equal(t, int64(1), deletedUser)
	require.Contains(t, conf.Message, "returned")
}

func TestReturn_WrongHolder(t *testing.T) {
	l := &ledgerMock{
		// another user holds the book, so this pair matches nothing
		deleteFn: func(ctx context.Context, bookID, userID int64) (bool, error) { return false, nil },
	}
	b := &booksMock{
		findFn: func(ctx context.Context, id int64, deleted bool) (*model.Book, error) {
			return activeBook(id), nil
		},
	}
	u := &usersMock{
		byIDFn: func(ctx context.Context, id int64) (*model.User, error) { return someUser(id), nil },
	}
	s := loansvc.New(newStubDB(), b, u, l)

	_, err := s.Return(context.Background(), 7, 2)
	require.Equal(t, loansvc.ErrLoanNotFound, loansvc.Code(err))
}

func TestBorrowReturnBorrow_Scenario(t *testing.T) {
	// create, borrow as user 1, second borrow conflicts, return, borrow as user 2
	loans := map[int64]int64{} // book -> holder
	l := &ledgerMock{
		existsFn: func(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error) {
			_, ok := loans[bookID]
			return ok, nil
		},
		insertFn: func(ctx context.Context, tx *sql.Tx, bookID, userID int64) (int64, error) {
			loans[bookID] = userID
			return int64(len(loans)), nil
		},
		deleteFn: func(ctx context.Context, bookID, userID int64) (bool, error) {
			if loans[bookID] != userID {
				return false, nil
			}
			delete(loans, bookID)
			return true, nil
		},
	}
	b := &booksMock{
		lockFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error) {
			return activeBook(id), nil
		},
		findFn: func(ctx context.Context, id int64, deleted bool) (*model.Book, error) {
			return activeBook(id), nil
		},
	}
	u := &usersMock{
		byIDFn: func(ctx context.Context, id int64) (*model.User, error) { return someUser(id), nil },
	}
	s := loansvc.New(newStubDB(), b, u, l)
	ctx := context.Background()

	_, err := s.Borrow(ctx, 7, 1)
	require.NoError(t, err)

	_, err = s.Borrow(ctx, 7, 2)
	require.Equal(t, loansvc.ErrAlreadyOnLoan, loansvc.Code(err))

	_, err = s.Return(ctx, 7, 1)
	require.NoError(t, err)

	_, err = s.Borrow(ctx, 7, 2)
	require.NoError(t, err)
}

func TestListLoans_GroupsByUser(t *testing.T) {
	l := &ledgerMock{
		groupedFn: func(ctx context.Context) ([]loanrepo.GroupedRow, error) {
			return []loanrepo.GroupedRow{
				{Username: "paul", Name: "Paul Atreides", Title: "Dune"},
				{Username: "duncan", Name: "Duncan Idaho", Title: "Hyperion"},
				{Username: "paul", Name: "Paul Atreides", Title: "Dune Messiah"},
			}, nil
		},
	}
	s := loansvc.New(newStubDB(), &booksMock{}, &usersMock{}, l)

	out, err := s.ListLoans(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "paul", out[0].Username)
	require.Equal(t, []string{"Dune", "Dune Messiah"}, out[0].Titles)
	require.Equal(t, "duncan", out[1].Username)
	require.Equal(t, []string{"Hyperion"}, out[1].Titles)
}

func TestListLoans_EmptyLedger(t *testing.T) {
	l := &ledgerMock{
		groupedFn: func(ctx context.Context) ([]loanrepo.GroupedRow, error) { return nil, nil },
	}
	s := loansvc.New(newStubDB(), &booksMock{}, &usersMock{}, l)

	out, err := s.ListLoans(context.Background())
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestUserLoans(t *testing.T) {
	l := &ledgerMock{
		titlesFn: func(ctx context.Context, userID int64) ([]string, error) {
			return []string{"Dune"}, nil
		},
	}
	u := &usersMock{
		byIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			if id != 1 {
				return nil, sql.ErrNoRows
			}
			return someUser(id), nil
		},
	}
	s := loansvc.New(newStubDB(), &booksMock{}, u, l)
	ctx := context.Background()

	out, err := s.UserLoans(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "paul", out.Username)
	require.Equal(t, []string{"Dune"}, out.Titles)

	_, err = s.UserLoans(ctx, 2)
	require.Equal(t, loansvc.ErrUserNotFound, loansvc.Code(err))
}

func TestListAvailable_Passthrough(t *testing.T) {
	l := &ledgerMock{
		availableFn: func(ctx context.Context) ([]model.Book, error) {
			return []model.Book{*activeBook(1), *activeBook(2)}, nil
		},
	}
	s := loansvc.New(newStubDB(), &booksMock{}, &usersMock{}, l)

	out, err := s.ListAvailable(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
}
