package sqldb

import (
	"strconv"
	"strings"
)

// Dialect captures the few places where the SQL differs between drivers.
// Queries are written once with ? placeholders.
type Dialect struct {
	Name string

	// Numbered rewrites ? placeholders into $1, $2, ...
	Numbered bool

	// ForUpdate is appended to row-lock reads. Empty means the driver
	// serialises writers on its own and the lock read is skipped.
	ForUpdate string

	// IsUniqueViolation recognises the driver's unique constraint error.
	IsUniqueViolation func(error) bool
}

func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
