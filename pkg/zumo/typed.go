package zumo

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// TypedTable maps rows of one remote table to and from T using T's json
// tags. Field names are not camel-cased: an untagged field Text is sent as
// "Text", so tag every field with its column name. T is normally a struct
// such as:
//
//	type TodoItem struct {
//		ID       int    `json:"id,omitempty"`
//		Text     string `json:"text"`
//		Complete bool   `json:"complete"`
//	}
type TypedTable[T any] struct {
	table *Table
}

// NewTypedTable returns a typed accessor for the named table.
func NewTypedTable[T any](c *Client, name string) *TypedTable[T] {
	return &TypedTable[T]{table: c.Table(name)}
}

// TableOf returns a typed accessor whose table name is T's type name.
func TableOf[T any](c *Client) *TypedTable[T] {
	return NewTypedTable[T](c, typeName[T]())
}

// Name returns the table name.
func (t *TypedTable[T]) Name() string {
	return t.table.name
}

// GetAll reads every row.
func (t *TypedTable[T]) GetAll(ctx context.Context) ([]T, error) {
	return t.Get(ctx, NewQuery())
}

// Get reads rows matching q into a slice of T.
func (t *TypedTable[T]) Get(ctx context.Context, q Query) ([]T, error) {
	data, err := t.table.getRaw(ctx, q)
	if err != nil {
		return nil, err
	}

	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("zumo: decoding %s rows: %w", t.table.name, err)
	}

	return rows, nil
}

// Insert creates a row from item and returns the stored row.
// The id and null fields of item are not sent.
func (t *TypedTable[T]) Insert(ctx context.Context, item T) (T, error) {
	var zero T

	fields, err := toItem(item)
	if err != nil {
		return zero, err
	}

	out, err := t.table.Insert(ctx, fields)
	if err != nil {
		return zero, err
	}

	return fromItem[T](out)
}

// Update patches the row identified by item's id field. The returned value
// is the service's echo, or item itself when the service returns no body.
func (t *TypedTable[T]) Update(ctx context.Context, item T) (T, error) {
	var zero T

	fields, err := toItem(item)
	if err != nil {
		return zero, err
	}

	out, err := t.table.Update(ctx, fields)
	if err != nil {
		return zero, err
	}

	if out == nil {
		return item, nil
	}

	return fromItem[T](out)
}

// Delete removes the row with the given id.
func (t *TypedTable[T]) Delete(ctx context.Context, id any) error {
	return t.table.Delete(ctx, id)
}

// toItem converts v to an untyped row via its JSON encoding.
func toItem(v any) (Item, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("zumo: encoding item: %w", err)
	}

	var row Item
	if err := decodeJSON(data, &row); err != nil {
		return nil, fmt.Errorf("zumo: item must encode to a JSON object: %w", err)
	}

	return row, nil
}

// fromItem converts an untyped row to T. A nil row yields the zero T.
func fromItem[T any](row Item) (T, error) {
	var out T
	if row == nil {
		return out, nil
	}

	data, err := json.Marshal(row)
	if err != nil {
		return out, fmt.Errorf("zumo: re-encoding row: %w", err)
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("zumo: decoding row into %T: %w", out, err)
	}

	return out, nil
}

// typeName returns the bare name of T, dereferencing pointers.
func typeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t.Name()
}
