package store

import (
	"strconv"
	"strings"
)

// Placeholder styles
const (
	bindQuestion = iota
	bindDollar
)

// bindType returns the placeholder style for a driver
func bindType(driverName string) int {
	switch driverName {
	case "postgres", "pgx":
		return bindDollar
	}
	return bindQuestion
}

// rebind rewrites ? placeholders to the driver's style
func rebind(bt int, query string) string {
	if bt != bindDollar {
		return query
	}

	out := make([]byte, 0, len(query)+16)
	n := 0
	for i := strings.IndexByte(query, '?'); i != -1; i = strings.IndexByte(query, '?') {
		out = append(out, query[:i]...)
		n++
		out = append(out, '$')
		out = strconv.AppendInt(out, int64(n), 10)
		query = query[i+1:]
	}
	return string(append(out, query...))
}
