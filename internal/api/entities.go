package api

import (
	"fmt"
	"strconv"

	"github.com/jackzampolin/namefind/internal/types"
)

// EntityReport is the result of a detection cycle as printed by the CLI.
type EntityReport struct {
	Document   string         `json:"document" yaml:"document"`
	Status     string         `json:"status,omitempty" yaml:"status,omitempty"`
	Candidates []types.Entity `json:"candidates" yaml:"candidates"`
	Confirmed  []types.Entity `json:"confirmed" yaml:"confirmed"`
}

// Header implements Tabular.
func (r EntityReport) Header() []string {
	return []string{"#", "STATE", "TYPE", "SPAN", "TEXT", "CONFIDENCE"}
}

// Rows implements Tabular. Candidates are numbered from 1 so the index can be
// passed to the confirm command; confirmed entities are listed unnumbered.
func (r EntityReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Candidates)+len(r.Confirmed))
	for i, e := range r.Candidates {
		rows = append(rows, entityRow(strconv.Itoa(i+1), "candidate", e))
	}
	for _, e := range r.Confirmed {
		rows = append(rows, entityRow("-", "confirmed", e))
	}
	return rows
}

func entityRow(index, state string, e types.Entity) []string {
	conf := "-"
	if e.Confidence != nil {
		conf = fmt.Sprintf("%.3f", *e.Confidence)
	}
	return []string{index, state, e.Type, e.Span.String(), strconv.Quote(e.Text), conf}
}
