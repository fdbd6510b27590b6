package loan

type LoanReq struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}
