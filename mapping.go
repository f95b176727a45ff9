package pgkit

import (
	"fmt"
	"reflect"
)

// RowsToRecords extracts the value tagged tag from each row mapping and
// returns them as records. A tagged value that already is a T is taken
// as-is; a map[string]any is converted through Populate. Rows missing the
// tag fail the whole conversion.
func RowsToRecords[T any](rows []map[string]any, tag string) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		v, ok := row[tag]
		if !ok {
			return nil, &Error{
				Code:    CodeInvalidRecord,
				Message: fmt.Sprintf("row %d has no value tagged %q", i, tag),
				Op:      "RowsToRecords",
			}
		}

		if rec, ok := v.(T); ok {
			out = append(out, rec)
			continue
		}
		if src, ok := v.(map[string]any); ok {
			var rec T
			if err := defaultMapper.Populate(&rec, src); err != nil {
				return nil, err
			}
			out = append(out, rec)
			continue
		}
		return nil, &Error{
			Code:    CodeInvalidRecord,
			Message: fmt.Sprintf("row %d value tagged %q is %T, not %s", i, tag, v, reflect.TypeFor[T]()),
			Op:      "RowsToRecords",
		}
	}
	return out, nil
}

// IndexByField builds a map of records keyed by the named field, which may
// be the Go field name or the column name. Records carrying a zero key
// fail the whole indexing; duplicate keys resolve to the last record.
func IndexByField[K comparable, T any](records []T, field string) (map[K]T, error) {
	out := make(map[K]T, len(records))
	for i, rec := range records {
		rv := reflect.ValueOf(rec)
		for rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				return nil, &Error{
					Code:    CodeInvalidRecord,
					Message: fmt.Sprintf("record %d is nil", i),
					Op:      "IndexByField",
				}
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return nil, &Error{
				Code:    CodeInvalidRecord,
				Message: fmt.Sprintf("records must be structs, got %T", rec),
				Op:      "IndexByField",
			}
		}

		schema := defaultMapper.schemaFor(rv.Type())
		f, ok := schema.byName[field]
		if !ok {
			return nil, &Error{
				Code:    CodeKeyMapping,
				Message: fmt.Sprintf("no field %q", field),
				Op:      "IndexByField",
				Table:   schema.name,
				Column:  field,
			}
		}

		fv := rv.FieldByIndex(f.index)
		if fv.IsZero() {
			return nil, &Error{
				Code:    CodeKeyMapping,
				Message: "cannot index records by a zero key",
				Op:      "IndexByField",
				Table:   schema.name,
				Column:  field,
			}
		}
		key, ok := fv.Interface().(K)
		if !ok {
			return nil, &Error{
				Code:    CodeKeyMapping,
				Message: fmt.Sprintf("field %q is %s, not %s", field, fv.Type(), reflect.TypeFor[K]()),
				Op:      "IndexByField",
				Table:   schema.name,
				Column:  field,
			}
		}
		out[key] = rec
	}
	return out, nil
}
