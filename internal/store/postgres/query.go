package postgres

import (
	"fmt"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// listQuery appends the time window, ordering and paging of opts to a
// query that already has a WHERE clause. timeCol is the column the window
// applies to.
func listQuery(query string, args []any, opts domain.ListOpts, timeCol, orderBy string) (string, []any) {
	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND %s >= $%d", timeCol, len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND %s <= $%d", timeCol, len(args))
	}

	query += " ORDER BY " + orderBy

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
