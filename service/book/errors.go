package booksvc

import "errors"

// errors used by controllers

type ErrCode string

const (
	ErrBadInput  ErrCode = "BAD_INPUT"
	ErrNotFound  ErrCode = "BOOK_NOT_FOUND"
	ErrISBNTaken ErrCode = "ISBN_TAKEN"
	ErrOnLoan    ErrCode = "BOOK_ON_LOAN"
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
