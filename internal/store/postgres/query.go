package postgres

import (
	"fmt"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// listQuery appends the time window, ordering and paging of opts to base.
// column is the timestamp column the window and ordering apply to.
func listQuery(base, column string, opts domain.ListOpts) (string, []any) {
	query := base + " WHERE 1=1"
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		query += fmt.Sprintf(" AND %s >= %s", column, next(*opts.Since))
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND %s <= %s", column, next(*opts.Until))
	}
	query += fmt.Sprintf(" ORDER BY %s DESC", column)
	if opts.Limit > 0 {
		query += " LIMIT " + next(opts.Limit)
	}
	if opts.Offset > 0 {
		query += " OFFSET " + next(opts.Offset)
	}
	return query, args
}
