package zumo

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Query holds OData-style constraints for a table read. It is a value type:
// every builder method returns a modified copy, so a Query can be shared
// and extended without affecting other holders.
//
//	q := zumo.NewQuery().Filter("complete eq false").OrderBy("text").Top(20)
type Query struct {
	top     int
	skip    int
	filter  string
	sel     string
	orderBy string
}

// NewQuery returns an empty Query. An empty Query renders to "".
func NewQuery() Query {
	return Query{}
}

// Top limits the number of returned rows. Zero means unset.
func (q Query) Top(n int) Query {
	q.top = n
	return q
}

// Skip skips the first n rows. Zero means unset.
func (q Query) Skip(n int) Query {
	q.skip = n
	return q
}

// Filter sets the $filter expression.
func (q Query) Filter(expr string) Query {
	q.filter = expr
	return q
}

// Select sets the $select column list.
func (q Query) Select(columns string) Query {
	q.sel = columns
	return q
}

// OrderBy sets the $orderby clause.
func (q Query) OrderBy(clause string) Query {
	q.orderBy = clause
	return q
}

// IsEmpty reports whether no constraint is set.
func (q Query) IsEmpty() bool {
	return q == Query{}
}

// Validate rejects negative paging values.
func (q Query) Validate() error {
	if q.top < 0 {
		return fmt.Errorf("%w: $top must not be negative, got %d", ErrInvalidQuery, q.top)
	}

	if q.skip < 0 {
		return fmt.Errorf("%w: $skip must not be negative, got %d", ErrInvalidQuery, q.skip)
	}

	return nil
}

// String renders the raw query string: "$name=value" pairs for set fields,
// in the order top, skip, filter, select, orderby, joined with "&".
// Values are not escaped.
func (q Query) String() string {
	return q.render(func(v string) string { return v })
}

// Encode renders the same parameters as String with every value
// percent-encoded. Spaces become %20.
func (q Query) Encode() string {
	return q.render(escapeQueryValue)
}

func (q Query) render(escape func(string) string) string {
	parts := make([]string, 0, 5)

	if q.top != 0 {
		parts = append(parts, "$top="+strconv.Itoa(q.top))
	}

	if q.skip != 0 {
		parts = append(parts, "$skip="+strconv.Itoa(q.skip))
	}

	if q.filter != "" {
		parts = append(parts, "$filter="+escape(q.filter))
	}

	if q.sel != "" {
		parts = append(parts, "$select="+escape(q.sel))
	}

	if q.orderBy != "" {
		parts = append(parts, "$orderby="+escape(q.orderBy))
	}

	return strings.Join(parts, "&")
}

func escapeQueryValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
