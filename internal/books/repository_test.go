// ABOUTME: Tests for the CSV book catalog
// ABOUTME: Covers id synthesis, aliases, filtering, pagination, and lookups

package books

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestdata(t *testing.T) *Repository {
	t.Helper()
	repo, err := Load(filepath.Join("testdata", "books.csv"))
	require.NoError(t, err)
	return repo
}

func titles(books []Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b["Title"]
	}
	return out
}

func TestLoad_SynthesizesIDs(t *testing.T) {
	repo := loadTestdata(t)

	assert.Equal(t, 8, repo.Len())
	assert.Contains(t, repo.Headers(), "id")

	book, err := repo.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Learning Python", book["Title"])

	book, err = repo.Get(" 4 ")
	require.NoError(t, err)
	assert.Equal(t, "Dune", book["Title"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestParse_ExistingIDColumn(t *testing.T) {
	csv := "book_id , title ,author\n b-7 , Dune , Frank Herbert \nb-9,Emma,Jane Austen\n"
	repo, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, []string{"book_id", "title", "author"}, repo.Headers())

	book, err := repo.Get("b-7")
	require.NoError(t, err)
	assert.Equal(t, Book{"book_id": "b-7", "title": "Dune", "author": "Frank Herbert"}, book)
}

func TestParse_Empty(t *testing.T) {
	repo, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, repo.Len())
	assert.Empty(t, repo.Filter(Query{}))
}

func TestParse_ShortRows(t *testing.T) {
	repo, err := Parse(strings.NewReader("title,author,year\nDune\n"))
	require.NoError(t, err)

	book, err := repo.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "", book["author"])
}

func TestGet_NotFound(t *testing.T) {
	repo := loadTestdata(t)

	_, err := repo.Get("999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_ReturnsCopy(t *testing.T) {
	repo := loadTestdata(t)

	book, err := repo.Get("1")
	require.NoError(t, err)
	book["Title"] = "changed"

	again, err := repo.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Learning Python", again["Title"])
}

func TestFilter(t *testing.T) {
	repo := loadTestdata(t)

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "title contains, case-insensitive",
			query: Query{Title: "python"},
			want:  []string{"Learning Python", "Python Crash Course", "Fluent Python"},
		},
		{
			name:  "genre via category alias",
			query: Query{Genre: "science fiction"},
			want:  []string{"Dune", "Foundation"},
		},
		{
			name:  "author via authors alias is exact",
			query: Query{Author: "jane austen"},
			want:  []string{"Pride and Prejudice", "Emma"},
		},
		{
			name:  "author partial does not match",
			query: Query{Author: "Austen"},
			want:  []string{},
		},
		{
			name:  "year via publish date alias",
			query: Query{Year: " 2015 "},
			want:  []string{"The Go Programming Language"},
		},
		{
			name:  "combined filters",
			query: Query{Genre: "Python", Year: "2019"},
			want:  []string{"Python Crash Course"},
		},
		{
			name:  "limit",
			query: Query{Limit: 2},
			want:  []string{"Learning Python", "Python Crash Course"},
		},
		{
			name:  "offset then limit",
			query: Query{Title: "python", Offset: 1, Limit: 1},
			want:  []string{"Python Crash Course"},
		},
		{
			name:  "offset past end",
			query: Query{Offset: 50},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titles(repo.Filter(tt.query)))
		})
	}
}

func TestFilter_BlankFiltersAreAbsent(t *testing.T) {
	repo := loadTestdata(t)

	all := repo.Filter(Query{})
	require.Len(t, all, 8)
	assert.Equal(t, titles(all), titles(repo.Filter(Query{Year: "", Author: ""})))
	assert.Equal(t, titles(all), titles(repo.Filter(Query{Year: "  ", Author: " ", Genre: "", Title: ""})))
}
