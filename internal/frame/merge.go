package frame

import (
	"context"
	"fmt"
	"strings"

	"github.com/KeplerC/fog-rtx/internal/domain"
)

// rightSuffix is appended to a non-key column whose name is already taken
// by an earlier table in the merge.
const rightSuffix = "_right"

// MergeTablesWithTimestamp full-outer-joins the tables pairwise on the
// Timestamp column, left to right, and stores the result sorted by Timestamp
// (nulls first) as output, replacing any existing table of that name.
func (s *Store) MergeTablesWithTimestamp(ctx context.Context, tables []string, output string) error {
	if len(tables) < 2 {
		s.logger.Error("need at least two tables to merge", "tables", tables)
		return domain.ErrValidation("need at least two tables to merge, got %d", len(tables))
	}
	if err := validateName("table", output); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sources := make([]*table, len(tables))
	for i, name := range tables {
		t, err := s.lookup(name)
		if err != nil {
			return err
		}
		if _, ok := t.index[TimestampColumn]; !ok {
			return domain.ErrValidation("table %q has no %s column", name, TimestampColumn)
		}
		sources[i] = t
	}

	stmt := buildMergeSQL(sources, output)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("merge tables %v: %w", tables, err)
	}

	merged, _, err := s.describe(ctx, output)
	if err != nil {
		return err
	}
	s.tables[output] = merged
	s.logger.Info("tables merged on timestamp", "tables", tables, "output", output, "rows", merged.rows)
	return nil
}

// buildMergeSQL renders the chained outer join. Source i is aliased t<i>;
// the running join key is the COALESCE of every Timestamp seen so far, and
// each source's row position breaks ties between equal timestamps.
func buildMergeSQL(sources []*table, output string) string {
	taken := map[string]bool{TimestampColumn: true}
	var (
		projections []string
		order       []string
		keys        []string
		from        strings.Builder
	)
	for i, t := range sources {
		alias := fmt.Sprintf("t%d", i)
		keys = append(keys, qualified(alias, TimestampColumn))
		order = append(order, qualified(alias, rowColumn)+" NULLS LAST")

		if i == 0 {
			fmt.Fprintf(&from, "%s AS %s", quoteIdent(t.name), alias)
		} else {
			fmt.Fprintf(&from, " FULL OUTER JOIN %s AS %s ON %s = %s",
				quoteIdent(t.name), alias, coalesce(keys[:i]), qualified(alias, TimestampColumn))
		}

		for _, c := range t.columns {
			if c.Name == TimestampColumn {
				continue
			}
			name := c.Name
			for n := 2; taken[name]; n++ {
				name = c.Name + rightSuffix
				if n > 2 {
					name = fmt.Sprintf("%s%s%d", c.Name, rightSuffix, n-1)
				}
			}
			taken[name] = true
			projections = append(projections, fmt.Sprintf("%s AS %s", qualified(alias, c.Name), quoteIdent(name)))
		}
	}

	key := coalesce(keys)
	orderBy := key + " NULLS FIRST, " + strings.Join(order, ", ")
	cols := append([]string{
		fmt.Sprintf("row_number() OVER (ORDER BY %s) - 1 AS %s", orderBy, quoteIdent(rowColumn)),
		fmt.Sprintf("%s AS %s", key, quoteIdent(TimestampColumn)),
	}, projections...)

	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT %s FROM %s ORDER BY %s",
		quoteIdent(output), strings.Join(cols, ", "), from.String(), orderBy)
}

func coalesce(exprs []string) string {
	if len(exprs) == 1 {
		return exprs[0]
	}
	return "COALESCE(" + strings.Join(exprs, ", ") + ")"
}
