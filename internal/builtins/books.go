// ABOUTME: Books pack: books_query over the CSV catalog
// ABOUTME: Protected tool supporting id lookup or filtered, paginated search

package builtins

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2389/books-mcp/internal/auth"
	"github.com/2389/books-mcp/internal/books"
	"github.com/2389/books-mcp/internal/packs"
)

// DefaultBooksLimit applies when books_query is called without a limit.
const DefaultBooksLimit = 10

// BooksPack creates the books pack.
func BooksPack(repo *books.Repository) *packs.BuiltinPack {
	b := &booksHandlers{repo: repo}
	return &packs.BuiltinPack{
		ID: "builtin:books",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:            "books_query",
					Description:     "Search the book catalog by title, author, genre and year with pagination, or fetch one book by id. Requires an active session.",
					InputSchemaJSON: `{"type":"object","properties":{"id":{"type":"string","description":"Book id to fetch (returns a single book)"},"genre":{"type":"string","description":"Genre/category contains"},"year":{"type":"string","description":"Publication year (exact)"},"author":{"type":"string","description":"Author name (case-insensitive exact)"},"title":{"type":"string","description":"Title contains"},"limit":{"type":"integer","minimum":1,"description":"Maximum results (default 10)"},"offset":{"type":"integer","minimum":0,"description":"Results to skip (default 0)"}},"additionalProperties":false}`,
					Access:          auth.AccessProtected,
					Audited:         true,
				},
				Handler: b.Query,
			},
		},
	}
}

type booksHandlers struct {
	repo *books.Repository
}

func (b *booksHandlers) Query(_ context.Context, call packs.Call) (packs.Payload, error) {
	id, hasID, err := call.Args.String("id")
	if err != nil {
		return nil, err
	}
	if hasID && strings.TrimSpace(id) != "" {
		return b.byID(id)
	}

	filters := packs.Payload{}
	var q books.Query

	for _, field := range []struct {
		name string
		dst  *string
	}{
		{"genre", &q.Genre},
		{"year", &q.Year},
		{"author", &q.Author},
		{"title", &q.Title},
	} {
		v, ok, err := call.Args.String(field.name)
		if err != nil {
			return nil, err
		}
		if ok {
			*field.dst = v
			filters[field.name] = v
		} else {
			filters[field.name] = nil
		}
	}

	limit, ok, err := call.Args.Int("limit")
	if err != nil {
		return nil, err
	}
	if !ok {
		limit = DefaultBooksLimit
	} else if limit < 1 {
		return nil, packs.InvalidParameter("limit", "must be at least 1")
	}

	offset, _, err := call.Args.Int("offset")
	if err != nil {
		return nil, err
	}

	q.Limit = limit
	q.Offset = offset
	filters["limit"] = limit
	filters["offset"] = offset

	data := b.repo.Filter(q)
	return packs.Payload{
		"data":            data,
		"count":           len(data),
		"query_type":      "filtered_search",
		"filters_applied": filters,
	}, nil
}

func (b *booksHandlers) byID(id string) (packs.Payload, error) {
	book, err := b.repo.Get(id)
	if errors.Is(err, books.ErrNotFound) {
		return nil, &packs.Failure{
			Kind:    packs.KindNotFound,
			Message: fmt.Sprintf("Book with ID '%s' not found", id),
			Hint:    "Search with books_query filters to find valid book ids",
		}
	}
	if err != nil {
		return nil, err
	}
	return packs.Payload{
		"data":       book,
		"query_type": "specific_book",
	}, nil
}
