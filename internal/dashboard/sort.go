package dashboard

import (
	"sort"
	"strings"

	"contest-portal/internal/contest"
)

// Column is a sortable dashboard column.
type Column string

const (
	ColumnNone    Column = ""
	ColumnTitle   Column = "title"
	ColumnName    Column = "name"
	ColumnTeam    Column = "team_count"
	ColumnCreated Column = "created_at"
)

// ParseColumn maps a query value to a Column; unknown values yield ColumnNone.
func ParseColumn(s string) Column {
	switch c := Column(strings.ToLower(strings.TrimSpace(s))); c {
	case ColumnTitle, ColumnName, ColumnTeam, ColumnCreated:
		return c
	}
	return ColumnNone
}

// Direction orders a sorted column.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection maps a query value to a Direction, defaulting to Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

func (d Direction) flip() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// Row is one rendered dashboard line.
type Row struct {
	contest.Submission
	DisplayName string
}

func newRow(s contest.Submission) Row {
	return Row{Submission: s, DisplayName: s.DisplayName()}
}

// Matches reports whether term is a case-insensitive substring of the title
// or display name. An empty term matches everything.
func (r Row) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Title), term) ||
		strings.Contains(strings.ToLower(r.DisplayName), term)
}

func less(col Column, a, b Row) bool {
	switch col {
	case ColumnTitle:
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	case ColumnName:
		return strings.ToLower(a.DisplayName) < strings.ToLower(b.DisplayName)
	case ColumnTeam:
		return a.TeamCount < b.TeamCount
	case ColumnCreated:
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return false
}

// sortRows orders rows in place; equal keys keep their listing order in
// both directions.
func sortRows(rows []Row, col Column, dir Direction) {
	if col == ColumnNone {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if dir == Desc {
			return less(col, rows[j], rows[i])
		}
		return less(col, rows[i], rows[j])
	})
}
