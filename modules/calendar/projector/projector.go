// Package projector computes the client-visible lesson rows for a mutation
// before the remote calendar confirms it. The projection is advisory: a later
// reload from the calendar always supersedes it. Pure functions, no I/O.
package projector

import (
	"sort"
	"time"
)

type Scope string

const (
	ScopeThis      Scope = "this"
	ScopeFollowing Scope = "following"
)

// Row is one visible lesson occurrence. SeriesID is empty for singles.
type Row struct {
	ID       string
	SeriesID string
	Title    string
	Start    time.Time
	End      time.Time
}

type Edit struct {
	RowID       string
	SeriesID    string
	AnchorStart time.Time
	NewStart    time.Time
	Duration    time.Duration
	Scope       Scope
}

type Delete struct {
	RowID       string
	SeriesID    string
	AnchorStart time.Time
	Scope       Scope
}

// ProjectEdit returns the row set as it should look once the edit lands.
func ProjectEdit(rows []Row, e Edit) []Row {
	out := make([]Row, 0, len(rows))

	if e.Scope == ScopeFollowing && e.SeriesID != "" {
		delta := e.NewStart.Sub(e.AnchorStart)
		for _, row := range rows {
			if row.SeriesID == e.SeriesID && !row.Start.Before(e.AnchorStart) {
				row.Start = row.Start.Add(delta)
				row.End = row.Start.Add(e.Duration)
			}
			out = append(out, row)
		}
		return sortRows(out)
	}

	for _, row := range rows {
		if row.ID == e.RowID {
			row.Start = e.NewStart
			row.End = e.NewStart.Add(e.Duration)
		}
		out = append(out, row)
	}
	return sortRows(out)
}

// ProjectDelete returns the row set with the deleted occurrence(s) removed.
func ProjectDelete(rows []Row, d Delete) []Row {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if d.Scope == ScopeFollowing && d.SeriesID != "" {
			if row.SeriesID == d.SeriesID && !row.Start.Before(d.AnchorStart) {
				continue
			}
		} else if row.ID == d.RowID {
			continue
		}
		out = append(out, row)
	}
	return sortRows(out)
}

func sortRows(rows []Row) []Row {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Start.Before(rows[j].Start)
	})
	return rows
}
