package book

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"booklibrary/model"
	bookrepo "booklibrary/repository/book"
	booksvc "booklibrary/service/book"
)

type Controller struct {
	Svc booksvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/books
func (h *Controller) Create(c echo.Context) error {
	var req CreateBookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	b, err := h.Svc.Create(c.Request().Context(), req.Title, req.Author, req.ISBN)
	if err != nil {
		return h.fail(c, err, "book create")
	}
	return c.JSON(http.StatusCreated, b)
}

// GET /v1/books
func (h *Controller) List(c echo.Context) error {
	rows, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "book list")
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/books/trash
func (h *Controller) ListTrashed(c echo.Context) error {
	rows, err := h.Svc.ListTrashed(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "trash list")
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/books/:id
func (h *Controller) Detail(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	b, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err, "book detail")
	}
	return c.JSON(http.StatusOK, b)
}

// GET /v1/books/trash/:id
func (h *Controller) TrashDetail(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	b, err := h.Svc.GetTrashed(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err, "trash detail")
	}
	return c.JSON(http.StatusOK, b)
}

// PATCH /v1/books/:id
func (h *Controller) Update(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req UpdateBookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	b, err := h.Svc.Update(c.Request().Context(), id, model.BookPatch{
		Title:  req.Title,
		Author: req.Author,
		ISBN:   req.ISBN,
	})
	if err != nil {
		return h.fail(c, err, "book update")
	}
	return c.JSON(http.StatusOK, b)
}

// PATCH /v1/books/trash/:id
func (h *Controller) SoftDelete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	conf, err := h.Svc.SoftDelete(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err, "book trash")
	}
	return c.JSON(http.StatusOK, conf)
}

// PATCH /v1/books/restore/:id
func (h *Controller) Restore(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	conf, err := h.Svc.Restore(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err, "book restore")
	}
	return c.JSON(http.StatusOK, conf)
}

// DELETE /v1/books/:id
func (h *Controller) HardDelete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	conf, err := h.Svc.HardDelete(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err, "book delete")
	}
	return c.JSON(http.StatusOK, conf)
}

// POST /v1/books/bulk
func (h *Controller) BulkCreate(c echo.Context) error {
	var req BulkCreateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	items := make([]booksvc.CreateItem, 0, len(req.Books))
	for _, b := range req.Books {
		items = append(items, booksvc.CreateItem{Title: b.Title, Author: b.Author, ISBN: b.ISBN})
	}
	return c.JSON(http.StatusOK, h.Svc.BulkCreate(c.Request().Context(), items))
}

// PATCH /v1/books/bulk
func (h *Controller) BulkUpdate(c echo.Context) error {
	var req BulkUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	items := make([]booksvc.UpdateItem, 0, len(req.Books))
	for _, b := range req.Books {
		items = append(items, booksvc.UpdateItem{
			ID:    b.ID,
			Patch: model.BookPatch{Title: b.Title, Author: b.Author, ISBN: b.ISBN},
		})
	}
	return c.JSON(http.StatusOK, h.Svc.BulkUpdate(c.Request().Context(), items))
}

// POST /v1/books/bulk/trash
func (h *Controller) BulkTrash(c echo.Context) error {
	ids, ok := h.bindIDs(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, h.Svc.BulkTrash(c.Request().Context(), ids))
}

// POST /v1/books/bulk/restore
func (h *Controller) BulkRestore(c echo.Context) error {
	ids, ok := h.bindIDs(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, h.Svc.BulkRestore(c.Request().Context(), ids))
}

// POST /v1/books/bulk/delete
func (h *Controller) BulkHardDelete(c echo.Context) error {
	ids, ok := h.bindIDs(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, h.Svc.BulkHardDelete(c.Request().Context(), ids))
}

// GET /v1/books/paginate?kind=all&page=1&pageSize=10&order=asc
func (h *Controller) Paginate(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("pageSize"))

	kind := bookrepo.ListKind(c.QueryParam("kind"))
	desc := c.QueryParam("order") == "desc"

	// scheme/host/route path, query string stripped
	baseURL := c.Scheme() + "://" + c.Request().Host + c.Path()

	out, err := h.Svc.Paginate(c.Request().Context(), booksvc.PageQuery{
		Kind:     kind,
		Page:     page,
		PageSize: size,
		Desc:     desc,
		BaseURL:  baseURL,
	})
	if err != nil {
		return h.fail(c, err, "book paginate")
	}
	return c.JSON(http.StatusOK, out)
}

// bindIDs writes the 400 response itself when the payload is bad.
func (h *Controller) bindIDs(c echo.Context) ([]int64, bool) {
	var req BulkIDsReq
	if err := c.Bind(&req); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
		return nil, false
	}
	if err := h.V.Struct(req); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
		return nil, false
	}
	return req.BookIDs, true
}

func (h *Controller) fail(c echo.Context, err error, op string) error {
	switch booksvc.Code(err) {
	case booksvc.ErrBadInput:
		return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
	case booksvc.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"message": err.Error()})
	case booksvc.ErrISBNTaken, booksvc.ErrOnLoan:
		return c.JSON(http.StatusConflict, echo.Map{"message": err.Error()})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}

func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
