// model/loan.go
package model

// Loan pairs one book with one user. The UNIQUE constraint on book_id is
// what enforces the one-active-loan-per-book rule; a loan row existing is
// the single source of truth for "this book is out".
type Loan struct {
	ID     int64 `json:"id"`
	BookID int64 `json:"book_id"`
	UserID int64 `json:"user_id"`
}

// UserLoans groups the titles a single user currently holds.
type UserLoans struct {
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Titles   []string `json:"titles"`
}
