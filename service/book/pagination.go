package booksvc

import (
	"context"
	"fmt"

	bookrepo "booklibrary/repository/book"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

type PageQuery struct {
	Kind     ListKind
	Page     int
	PageSize int
	Desc     bool
	// BaseURL is the inbound request's scheme/host/path with the query
	// string stripped; links are synthesized against it.
	BaseURL string
}

type PageLinks struct {
	First           string  `json:"first"`
	Prev            *string `json:"prev"`
	Next            *string `json:"next"`
	Last            string  `json:"last"`
	HasPreviousPage bool    `json:"hasPreviousPage"`
	HasNextPage     bool    `json:"hasNextPage"`
}

type Page struct {
	Data       []Book    `json:"data"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
	Links      PageLinks `json:"links"`
}

// Paginate normalizes page/pageSize (1-based page, size clamped to 50, never
// rejected), fetches one ordered page plus the total in a single pass, and
// synthesizes first/prev/next/last navigation links.
func (s *service) Paginate(ctx context.Context, q PageQuery) (*Page, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.PageSize
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	kind := q.Kind
	switch kind {
	case KindAvailable, KindTrashed:
	default:
		kind = KindAll
	}

	data, total, err := s.r.ListPage(ctx, bookrepo.ListQuery{
		Kind:   kind,
		Offset: (page - 1) * size,
		Limit:  size,
		Desc:   q.Desc,
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []Book{}
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}

	return &Page{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
		Links:      makeLinks(page, totalPages, size, q.BaseURL),
	}, nil
}

func makeLinks(page, totalPages, pageSize int, baseURL string) PageLinks {
	link := func(p int) string {
		return fmt.Sprintf("%s?page=%d&pageSize=%d", baseURL, p, pageSize)
	}
	links := PageLinks{
		First:           link(1),
		Last:            link(totalPages),
		HasPreviousPage: page > 1,
		HasNextPage:     page < totalPages,
	}
	if links.HasPreviousPage {
		prev := link(page - 1)
		links.Prev = &prev
	}
	if links.HasNextPage {
		next := link(page + 1)
		links.Next = &next
	}
	return links
}
