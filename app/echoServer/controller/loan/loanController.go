package loan

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"booklibrary/app/echoServer/jwtx"
	loansvc "booklibrary/service/loan"
)

type Controller struct {
	Svc loansvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/loans
func (h *Controller) Borrow(c echo.Context) error {
	req, ok := h.bind(c)
	if !ok {
		return nil
	}
	conf, err := h.Svc.Borrow(c.Request().Context(), req.BookID, req.UserID)
	if err != nil {
		return h.fail(c, err, "loan borrow")
	}
	return c.JSON(http.StatusCreated, conf)
}

// POST /v1/loans/return
func (h *Controller) Return(c echo.Context) error {
	req, ok := h.bind(c)
	if !ok {
		return nil
	}
	conf, err := h.Svc.Return(c.Request().Context(), req.BookID, req.UserID)
	if err != nil {
		return h.fail(c, err, "loan return")
	}
	return c.JSON(http.StatusOK, conf)
}

// GET /v1/loans
func (h *Controller) List(c echo.Context) error {
	rows, err := h.Svc.ListLoans(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "loan list")
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/loans/my
func (h *Controller) MyLoans(c echo.Context) error {
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	out, err := h.Svc.UserLoans(c.Request().Context(), uid)
	if err != nil {
		return h.fail(c, err, "my loans")
	}
	return c.JSON(http.StatusOK, out)
}

// GET /v1/books/available
func (h *Controller) Available(c echo.Context) error {
	rows, err := h.Svc.ListAvailable(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "available list")
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

func (h *Controller) bind(c echo.Context) (LoanReq, bool) {
	var req LoanReq
	if err := c.Bind(&req); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
		return req, false
	}
	if err := h.V.Struct(req); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
		return req, false
	}
	return req, true
}

func (h *Controller) fail(c echo.Context, err error, op string) error {
	switch loansvc.Code(err) {
	case loansvc.ErrBookNotFound, loansvc.ErrUserNotFound, loansvc.ErrLoanNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"message": err.Error()})
	case loansvc.ErrAlreadyOnLoan:
		return c.JSON(http.StatusConflict, echo.Map{"message": err.Error()})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}
