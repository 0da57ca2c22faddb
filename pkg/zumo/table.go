package zumo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
)

// tablesPath is the URL segment under which tables are exposed.
const tablesPath = "tables"

// idField is the column holding the server-assigned row identifier.
const idField = "id"

// Item is an untyped table row: field name to JSON value. Numbers decode as
// json.Number so identifiers round-trip exactly.
type Item = map[string]any

// Table reads and writes one remote table with untyped rows.
type Table struct {
	client *Client
	name   string
}

// Table returns an accessor for the named table.
func (c *Client) Table(name string) *Table {
	return &Table{client: c, name: name}
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// GetAll returns every row the service hands back for an unconstrained read.
func (t *Table) GetAll(ctx context.Context) ([]Item, error) {
	return t.Get(ctx, NewQuery())
}

// Get reads rows matching q.
func (t *Table) Get(ctx context.Context, q Query) ([]Item, error) {
	data, err := t.getRaw(ctx, q)
	if err != nil {
		return nil, err
	}

	var rows []Item
	if err := decodeJSON(data, &rows); err != nil {
		return nil, fmt.Errorf("zumo: decoding %s rows: %w", t.name, err)
	}

	return rows, nil
}

// Insert creates a row. The "id" field and null-valued fields are dropped
// from the payload because the service assigns identifiers. item itself is
// not modified. The stored row, as echoed by the service, is returned.
func (t *Table) Insert(ctx context.Context, item Item) (Item, error) {
	if t.name == "" {
		return nil, ErrEmptyTableName
	}

	payload := sanitizeForInsert(item)

	t.client.logger.Debug("inserting row",
		slog.String("table", t.name),
		slog.Int("fields", len(payload)),
	)

	data, err := t.client.Post(ctx, t.collectionPath(), payload)
	if err != nil {
		return nil, err
	}

	return decodeItem(data, t.name)
}

// Update patches the row identified by item["id"] with the other fields of
// item. A missing or null id is reported without contacting the service.
// The updated row is returned when the service echoes one.
func (t *Table) Update(ctx context.Context, item Item) (Item, error) {
	if t.name == "" {
		return nil, ErrEmptyTableName
	}

	id, ok := item[idField]
	if !ok || id == nil {
		return nil, ErrMissingID
	}

	data, err := t.client.Patch(ctx, t.rowPath(id), item)
	if err != nil {
		return nil, err
	}

	return decodeItem(data, t.name)
}

// Delete removes the row with the given id.
func (t *Table) Delete(ctx context.Context, id any) error {
	if t.name == "" {
		return ErrEmptyTableName
	}

	if id == nil {
		return ErrMissingID
	}

	return t.client.Delete(ctx, t.rowPath(id))
}

// getRaw validates q and returns the raw JSON array for a read.
func (t *Table) getRaw(ctx context.Context, q Query) ([]byte, error) {
	if t.name == "" {
		return nil, ErrEmptyTableName
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}

	path := t.collectionPath()
	if qs := q.Encode(); qs != "" {
		path += "?" + qs
	}

	return t.client.Get(ctx, path)
}

func (t *Table) collectionPath() string {
	return tablesPath + "/" + url.PathEscape(t.name)
}

func (t *Table) rowPath(id any) string {
	return t.collectionPath() + "/" + url.PathEscape(formatID(id))
}

// sanitizeForInsert copies item without the id field and without fields
// whose value is null. Only top-level fields are considered.
func sanitizeForInsert(item Item) Item {
	out := make(Item, len(item))

	for k, v := range item {
		if k == idField || v == nil {
			continue
		}

		out[k] = v
	}

	return out
}

// formatID renders an identifier for use in a row URL.
func formatID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// decodeItem parses a single-row response. An empty body yields a nil Item.
func decodeItem(data []byte, table string) (Item, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var row Item
	if err := decodeJSON(data, &row); err != nil {
		return nil, fmt.Errorf("zumo: decoding %s row: %w", table, err)
	}

	return row, nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	return dec.Decode(v)
}
