// Package sources loads student engagement data from the various places it
// accumulates: Brightspace exports, EdSTEM analytics, office hours logs.
// Every source normalizes to a table keyed by a Username column so the
// aggregator can merge them.
package sources

import (
	"fmt"
	"strings"

	"edubag/lib/tabular"
)

const UsernameColumn = "Username"

// Source is one engagement data source feeding the aggregator.
type Source interface {
	Table() *tabular.Table
	Metadata() map[string]string
	// ResolveIdentity makes sure the table has a Username column,
	// deriving it from Email localparts when necessary.
	ResolveIdentity() error
}

// TableSource is the common Source implementation wrapping a table.
// Platform-specific loaders embed it.
type TableSource struct {
	Data *tabular.Table
	Meta map[string]string
}

func (s *TableSource) Table() *tabular.Table {
	return s.Data
}

func (s *TableSource) Metadata() map[string]string {
	return s.Meta
}

func (s *TableSource) ResolveIdentity() error {
	if s.Data.HasColumn(UsernameColumn) {
		return nil
	}
	if !s.Data.HasColumn("Email") {
		return fmt.Errorf("source must have a %s or Email column", UsernameColumn)
	}
	s.Data.AddColumn(UsernameColumn, "")
	for i := 0; i < s.Data.NumRows(); i++ {
		local, _, _ := strings.Cut(s.Data.Get(i, "Email"), "@")
		s.Data.Set(i, UsernameColumn, local)
	}
	return nil
}

// Students returns the set of distinct usernames in the source.
func (s *TableSource) Students() map[string]struct{} {
	out := map[string]struct{}{}
	for i := 0; i < s.Data.NumRows(); i++ {
		username := s.Data.Get(i, UsernameColumn)
		if username != "" {
			out[username] = struct{}{}
		}
	}
	return out
}

// FromTable wraps an already-parsed table, e.g. a Brightspace gradebook or
// attendance register, as a Source.
func FromTable(data *tabular.Table, sourceType string) *TableSource {
	return &TableSource{
		Data: data,
		Meta: map[string]string{"type": sourceType},
	}
}
