// Package books serves a read-only book catalog loaded from CSV.
//
// Column names are matched case-insensitively with a few aliases (for
// example "Authors" for author and "Publish Date (Year)" for year), so
// catalogs exported from different tools can be used unchanged.
package books
