package book

type CreateBookReq struct {
	Title  string `json:"title" validate:"required,min=2,max=50"`
	Author string `json:"author" validate:"required,min=3,max=50"`
	ISBN   string `json:"isbn" validate:"required,len=13"`
}

type UpdateBookReq struct {
	Title  *string `json:"title" validate:"omitempty,min=2,max=50"`
	Author *string `json:"author" validate:"omitempty,min=3,max=50"`
	ISBN   *string `json:"isbn" validate:"omitempty,len=13"`
}

type UpdateBookWithIDReq struct {
	ID     int64   `json:"id" validate:"required,gt=0"`
	Title  *string `json:"title" validate:"omitempty,min=2,max=50"`
	Author *string `json:"author" validate:"omitempty,min=3,max=50"`
	ISBN   *string `json:"isbn" validate:"omitempty,len=13"`
}

type BulkCreateReq struct {
	Books []CreateBookReq `json:"books" validate:"required,min=1,dive"`
}

type BulkUpdateReq struct {
	Books []UpdateBookWithIDReq `json:"books" validate:"required,min=1,dive"`
}

type BulkIDsReq struct {
	BookIDs []int64 `json:"bookIds" validate:"required,min=1,dive,gt=0"`
}
