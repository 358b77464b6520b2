// ABOUTME: Read-only book catalog loaded from a CSV file
// ABOUTME: Supports lookup by id and filtered, paginated search with column aliases

package books

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"strconv"
	"strings"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("book not found")

// Book is one catalog row keyed by (trimmed) column header.
type Book map[string]string

// Query filters a search. Empty string fields are not applied; Limit zero
// means no limit.
type Query struct {
	Genre  string
	Year   string
	Author string
	Title  string
	Limit  int
	Offset int
}

// columnAliases maps a logical field to header names accepted in its place.
var columnAliases = map[string][]string{
	"title":  {"book_title", "name"},
	"author": {"authors", "writer"},
	"year":   {"publication_year", "year_published", "publish date (year)"},
	"genre":  {"category", "genres"},
}

// Repository holds the loaded catalog. It is immutable after loading and safe
// for concurrent use.
type Repository struct {
	headers []string
	rows    []Book
	idCol   string
	cols    map[string]string // logical field -> header
}

// Load reads the catalog from a CSV file.
func Load(path string) (*Repository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening books csv: %w", err)
	}
	defer f.Close()

	repo, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return repo, nil
}

// Parse reads a CSV catalog whose first row is the header. When no id or
// book_id column exists, a 1-based id column is added.
func Parse(r io.Reader) (*Repository, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &Repository{cols: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	headers := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		headers[i] = h
	}

	var rows []Book
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(rows)+2, err)
		}

		row := make(Book, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	idCol := findIDColumn(headers)
	if idCol == "" {
		idCol = "id"
		headers = append(headers, idCol)
		for i, row := range rows {
			row[idCol] = strconv.Itoa(i + 1)
		}
	}

	cols := make(map[string]string, len(columnAliases))
	for field := range columnAliases {
		cols[field] = findColumn(headers, field)
	}

	return &Repository{
		headers: headers,
		rows:    rows,
		idCol:   idCol,
		cols:    cols,
	}, nil
}

func findIDColumn(headers []string) string {
	for _, h := range headers {
		switch strings.ToLower(h) {
		case "id", "book_id":
			return h
		}
	}
	return ""
}

// findColumn resolves a logical field to a header: exact (case-insensitive)
// match first, then aliases, then the field name itself.
func findColumn(headers []string, field string) string {
	for _, h := range headers {
		if strings.EqualFold(h, field) {
			return h
		}
	}
	for _, alias := range columnAliases[field] {
		for _, h := range headers {
			if strings.ToLower(h) == alias {
				return h
			}
		}
	}
	return field
}

// Headers returns the column names, including a synthesized id column.
func (r *Repository) Headers() []string {
	return append([]string(nil), r.headers...)
}

// Len returns the number of books.
func (r *Repository) Len() int {
	return len(r.rows)
}

// Get returns the book whose id column equals id (after trimming).
func (r *Repository) Get(id string) (Book, error) {
	id = strings.TrimSpace(id)
	for _, row := range r.rows {
		if row[r.idCol] == id {
			return maps.Clone(row), nil
		}
	}
	return nil, ErrNotFound
}

// Filter returns the books matching every set field of q, in file order,
// after applying Offset and then Limit.
func (r *Repository) Filter(q Query) []Book {
	out := []Book{}
	skipped := 0
	for _, row := range r.rows {
		if !r.matches(row, q) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
		out = append(out, maps.Clone(row))
	}
	return out
}

func (r *Repository) matches(row Book, q Query) bool {
	if q.Genre != "" && !containsFold(row[r.cols["genre"]], q.Genre) {
		return false
	}
	// Blank filters are treated as absent.
	if year := strings.TrimSpace(q.Year); year != "" && row[r.cols["year"]] != year {
		return false
	}
	if author := strings.TrimSpace(q.Author); author != "" && !strings.EqualFold(row[r.cols["author"]], author) {
		return false
	}
	if q.Title != "" && !containsFold(row[r.cols["title"]], q.Title) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
