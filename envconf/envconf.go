// Package envconf loads configuration structs from environment variables.
//
// Fields name their variable through the `env` tag, or default to the
// UPPER_SNAKE form of the field name. Value fields are required; pointer
// fields are optional and stay nil when the variable is absent. Every
// missing required variable is collected before Load fails, so one error
// names the whole fix.
package envconf

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// MissingError reports every required variable that was absent
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return "envconf: missing required environment variables: " + strings.Join(e.Vars, ", ")
}

// ParseError reports a variable whose value does not fit its field
type ParseError struct {
	Var   string
	Value string
	Type  string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("envconf: cannot parse %s=%q as %s: %v", e.Var, e.Value, e.Type, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

var (
	durationType    = reflect.TypeOf(time.Duration(0))
	stringSliceType = reflect.TypeOf([]string(nil))
)

// Load fills v, which must be a non-nil struct pointer, from the
// environment. A tag of "-" skips the field. A variable set to the empty
// string counts as absent.
//
// Supported field types: string, bool, integers, floats, time.Duration,
// and []string (comma separated), plus pointers to each.
func Load(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("envconf: Load needs a non-nil struct pointer, got %T", v)
	}

	elem := rv.Elem()
	t := elem.Type()

	var missing []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}

		name := f.Tag.Get("env")
		if name == "-" {
			continue
		}
		if name == "" {
			name = toUpperSnake(f.Name)
		}

		fv := elem.Field(i)
		raw := os.Getenv(name)
		if raw == "" {
			if fv.Kind() != reflect.Ptr {
				missing = append(missing, name)
			}
			continue
		}

		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				fv.Set(reflect.New(fv.Type().Elem()))
			}
			fv = fv.Elem()
		}

		if err := setField(fv, raw); err != nil {
			return &ParseError{Var: name, Value: raw, Type: fv.Type().String(), Cause: err}
		}
	}

	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}
	return nil
}

func setField(fv reflect.Value, raw string) error {
	// time.Duration parses as a duration, not a bare integer
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetFloat(n)
	case reflect.Slice:
		if fv.Type() != stringSliceType {
			return fmt.Errorf("unsupported type %s", fv.Type())
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		fv.Set(reflect.ValueOf(out))
	default:
		return fmt.Errorf("unsupported type %s", fv.Type())
	}
	return nil
}

func toUpperSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
