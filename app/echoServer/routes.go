package echoServer

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"booklibrary/app/echoServer/controller/auth"
	"booklibrary/app/echoServer/controller/book"
	"booklibrary/app/echoServer/controller/loan"
)

type C struct {
	Auth      *auth.Controller
	Book      *book.Controller
	Loan      *loan.Controller
	JWTSecret string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/users/register", c.Auth.Register)
	pub.POST("/users/login", c.Auth.Login)

	// Auth
	authed := e.Group("/v1")
	authed.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(c.JWTSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
		TokenLookup:   "header:Authorization",
	}))
	authed.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			tok, ok := ctx.Get("user").(*jwt.Token)
			if !ok {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			sub, ok := claims["sub"].(float64)
			if !ok {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			ctx.Set("user_id", int64(sub))
			return next(ctx)
		}
	})

	// Books: catalog + lifecycle. Static segments registered before :id.
	authed.GET("/books", c.Book.List)
	authed.POST("/books", c.Book.Create)
	authed.GET("/books/paginate", c.Book.Paginate)
	authed.GET("/books/available", c.Loan.Available)
	authed.GET("/books/trash", c.Book.ListTrashed)
	authed.GET("/books/trash/:id", c.Book.TrashDetail)
	authed.GET("/books/:id", c.Book.Detail)
	authed.PATCH("/books/:id", c.Book.Update)
	authed.PATCH("/books/trash/:id", c.Book.SoftDelete)
	authed.PATCH("/books/restore/:id", c.Book.Restore)
	authed.DELETE("/books/:id", c.Book.HardDelete)

	// Bulk endpoints: per-item outcomes, never all-or-nothing
	authed.POST("/books/bulk", c.Book.BulkCreate)
	authed.PATCH("/books/bulk", c.Book.BulkUpdate)
	authed.POST("/books/bulk/trash", c.Book.BulkTrash)
	authed.POST("/books/bulk/restore", c.Book.BulkRestore)
	authed.POST("/books/bulk/delete", c.Book.BulkHardDelete)

	// Loans
	authed.POST("/loans", c.Loan.Borrow)
	authed.POST("/loans/return", c.Loan.Return)
	authed.GET("/loans", c.Loan.List)
	authed.GET("/loans/my", c.Loan.MyLoans)
}
