package pgkit

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/uptrace/bun"
)

// RecordMapper lets a record type rename the source keys of specific
// fields. Keys are Go field names; values are the keys used in external
// mappings. A value containing dots is resolved as a nested path, so
// {"City": "address.city"} reads src["address"]["city"].
type RecordMapper interface {
	SerializeMap() map[string]string
}

// RecordExcluder lists fields that external mappings never carry, by
// column name. Excluded fields are skipped by Populate and ToMapping
// unless explicitly included.
type RecordExcluder interface {
	ExceptFields() []string
}

// Mapper converts records to and from loosely-typed mappings. Field
// layouts are computed once per record type and cached, so a single
// Mapper is cheap to share across goroutines.
type Mapper struct {
	logger atomic.Pointer[slog.Logger]
	types  sync.Map // reflect.Type -> *recordSchema
}

// NewMapper creates a mapper. The logger receives a debug entry for every
// source key that has no match in the record; nil disables that.
func NewMapper(logger *slog.Logger) *Mapper {
	m := &Mapper{}
	if logger != nil {
		m.logger.Store(logger)
	}
	return m
}

// SetLogger replaces the mapper's logger
func (m *Mapper) SetLogger(logger *slog.Logger) {
	m.logger.Store(logger)
}

// defaultMapper backs the package-level functions
var defaultMapper = NewMapper(nil)

// SetMapperLogger routes the package-level mapper's diagnostics to logger
func SetMapperLogger(logger *slog.Logger) {
	defaultMapper.SetLogger(logger)
}

// Populate fills record from src, skipping keys that are absent
func Populate(record any, src map[string]any) error {
	return defaultMapper.Populate(record, src)
}

// PopulateStrict fills record from src and fails on the first absent key
func PopulateStrict(record any, src map[string]any) error {
	return defaultMapper.PopulateStrict(record, src)
}

// ToMapping converts record into a column-keyed mapping
func ToMapping(record any, include ...string) (map[string]any, error) {
	return defaultMapper.ToMapping(record, include...)
}

// Populate fills record, which must be a non-nil struct pointer, from src.
// Fields resolve their source key from the bun tag (or the snake_case
// field name) and any SerializeMap rename. Keys absent from src leave the
// field untouched; the fields that were found are still applied.
func (m *Mapper) Populate(record any, src map[string]any) error {
	return m.populate(record, src, false)
}

// PopulateStrict is Populate, except an absent source key fails with
// ErrFieldNotFound instead of being skipped
func (m *Mapper) PopulateStrict(record any, src map[string]any) error {
	return m.populate(record, src, true)
}

// ToMapping converts record into a mapping keyed by column name. Excluded
// fields are left out unless named in include.
func (m *Mapper) ToMapping(record any, include ...string) (map[string]any, error) {
	rv := reflect.ValueOf(record)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, &Error{Code: CodeInvalidRecord, Message: "record must not be nil", Op: "ToMapping"}
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, &Error{
			Code:    CodeInvalidRecord,
			Message: fmt.Sprintf("record must be a struct, got %T", record),
			Op:      "ToMapping",
		}
	}

	schema := m.schemaFor(rv.Type())

	inc := make(map[string]bool, len(include))
	for _, name := range include {
		inc[name] = true
	}

	out := make(map[string]any, len(schema.fields))
	for i := range schema.fields {
		f := &schema.fields[i]
		if f.excluded && !inc[f.column] && !inc[f.name] {
			continue
		}
		out[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return out, nil
}

func (m *Mapper) populate(record any, src map[string]any, strict bool) error {
	rv := reflect.ValueOf(record)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return &Error{
			Code:    CodeInvalidRecord,
			Message: fmt.Sprintf("record must be a non-nil struct pointer, got %T", record),
			Op:      "Populate",
		}
	}

	elem := rv.Elem()
	schema := m.schemaFor(elem.Type())

	for i := range schema.fields {
		f := &schema.fields[i]
		if f.excluded {
			continue
		}

		val, ok := lookupPath(src, f.path)
		if !ok {
			if logger := m.logger.Load(); logger != nil {
				logger.Debug("record field not found in source mapping",
					slog.String("record", schema.name),
					slog.String("key", f.source),
				)
			}
			if strict {
				return &Error{
					Code:    CodeFieldNotFound,
					Message: fmt.Sprintf("source key %q not found", f.source),
					Op:      "Populate",
					Table:   schema.name,
					Column:  f.column,
				}
			}
			continue
		}

		if err := m.setValue(elem.FieldByIndex(f.index), val); err != nil {
			var dbErr *Error
			if errors.As(err, &dbErr) {
				return err
			}
			return &Error{
				Code:    CodeInvalidRecord,
				Message: "cannot assign source value",
				Op:      "Populate",
				Table:   schema.name,
				Column:  f.column,
				Detail:  err.Error(),
			}
		}
	}
	return nil
}

// lookupPath resolves a dotted source path through nested mappings
func lookupPath(src map[string]any, path []string) (any, bool) {
	cur := src
	for i, seg := range path {
		v, ok := cur[seg]
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

var (
	timeType      = reflect.TypeOf(time.Time{})
	baseModelType = reflect.TypeOf(bun.BaseModel{})
)

// setValue assigns val to fv, converting where the types allow it
func (m *Mapper) setValue(fv reflect.Value, val any) error {
	if val == nil {
		switch fv.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		return fmt.Errorf("cannot assign nil to %s", fv.Type())
	}

	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		return m.setValue(fv.Elem(), val)
	}

	vv := reflect.ValueOf(val)
	if vv.Type().AssignableTo(fv.Type()) {
		fv.Set(vv)
		return nil
	}

	// Named types over the same kind, e.g. type Status string
	if vv.Kind() == fv.Kind() && vv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(vv.Convert(fv.Type()))
		return nil
	}

	// Drivers commonly hand text columns back as []byte
	if b, ok := val.([]byte); ok && fv.Kind() == reflect.String {
		fv.SetString(string(b))
		return nil
	}

	if fv.Type() == timeType {
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("cannot assign %T to time.Time", val)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("cannot parse %q as time: %v", s, err)
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	}

	// Nested mappings populate struct fields recursively
	if fv.Kind() == reflect.Struct {
		if nested, ok := val.(map[string]any); ok {
			return m.populate(fv.Addr().Interface(), nested, false)
		}
		return fmt.Errorf("cannot assign %T to %s", val, fv.Type())
	}

	// Cross-kind numeric conversions; JSON decodes every number as float64
	if isNumericKind(fv.Kind()) && isNumericKind(vv.Kind()) {
		fv.Set(vv.Convert(fv.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", val, fv.Type())
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// recordField describes one mappable struct field
type recordField struct {
	name     string   // Go field name
	column   string   // bun tag column, or the snake_case field name
	source   string   // key looked up in source mappings, after renames
	path     []string // source split on "." for nested lookups
	index    []int    // reflect field index chain
	excluded bool
}

type recordSchema struct {
	name   string
	fields []recordField
	byName map[string]*recordField // keyed by Go field name and column name
}

func (m *Mapper) schemaFor(t reflect.Type) *recordSchema {
	if cached, ok := m.types.Load(t); ok {
		return cached.(*recordSchema)
	}
	s := buildSchema(t)
	actual, _ := m.types.LoadOrStore(t, s)
	return actual.(*recordSchema)
}

func buildSchema(t reflect.Type) *recordSchema {
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	s := &recordSchema{name: name}

	var renames map[string]string
	excluded := make(map[string]bool)
	inst := reflect.New(t).Interface()
	if rm, ok := inst.(RecordMapper); ok {
		renames = rm.SerializeMap()
	}
	if re, ok := inst.(RecordExcluder); ok {
		for _, f := range re.ExceptFields() {
			excluded[f] = true
		}
	}

	var walk func(st reflect.Type, parent []int)
	walk = func(st reflect.Type, parent []int) {
		for i := 0; i < st.NumField(); i++ {
			f := st.Field(i)
			if f.PkgPath != "" {
				continue
			}

			idx := make([]int, len(parent)+1)
			copy(idx, parent)
			idx[len(parent)] = i

			if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Type != timeType {
				if f.Type == baseModelType {
					continue
				}
				walk(f.Type, idx)
				continue
			}

			tag := f.Tag.Get("bun")
			if tag == "-" {
				continue
			}

			column := columnFromTag(tag, f.Name)
			source := column
			if ren, ok := renames[f.Name]; ok {
				source = ren
			} else if ren, ok := renames[column]; ok {
				source = ren
			}

			s.fields = append(s.fields, recordField{
				name:     f.Name,
				column:   column,
				source:   source,
				path:     strings.Split(source, "."),
				index:    idx,
				excluded: excluded[column] || excluded[f.Name],
			})
		}
	}
	walk(t, nil)

	s.byName = make(map[string]*recordField, len(s.fields)*2)
	for i := range s.fields {
		f := &s.fields[i]
		if _, ok := s.byName[f.name]; !ok {
			s.byName[f.name] = f
		}
		if _, ok := s.byName[f.column]; !ok {
			s.byName[f.column] = f
		}
	}
	return s
}

// columnFromTag extracts the column name from a bun struct tag, falling
// back to the snake_case field name
func columnFromTag(tag, fieldName string) string {
	if tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && !strings.Contains(name, ":") {
			return name
		}
	}
	return toSnakeCase(fieldName)
}

func toSnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
