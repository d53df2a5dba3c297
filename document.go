package testfixtures

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Field is a single named value of a Document.
type Field struct {
	Name  string
	Value any
}

// Document is an immutable, ordered set of fields.
// Field order is kept for display but ignored by Equal.
type Document struct {
	fields []Field
}

// Collection is a sequence of documents. Order is irrelevant to equality.
type Collection []Document

// NewDocument builds a Document from fields. When a name is repeated, the field
// keeps its first position and takes the last value.
func NewDocument(fields ...Field) Document {
	d := Document{fields: make([]Field, 0, len(fields))}
	index := make(map[string]int, len(fields))
	for _, f := range fields {
		v := normalizeValue(f.Value)
		if i, ok := index[f.Name]; ok {
			d.fields[i].Value = v
			continue
		}
		index[f.Name] = len(d.fields)
		d.fields = append(d.fields, Field{Name: f.Name, Value: v})
	}
	return d
}

// Len returns the number of fields.
func (d Document) Len() int { return len(d.fields) }

// Fields returns a copy of the document fields in insertion order.
func (d Document) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Get returns the value of the named field.
func (d Document) Get(name string) (any, bool) {
	for _, f := range d.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether the document carries the named field.
func (d Document) Has(name string) bool {
	_, ok := d.Get(name)
	return ok
}

// Without returns a copy of the document with the named top-level fields removed.
// Names that are not present are ignored.
func (d Document) Without(names ...string) Document {
	if len(names) == 0 {
		return d
	}
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}

	out := Document{fields: make([]Field, 0, len(d.fields))}
	for _, f := range d.fields {
		if _, ok := drop[f.Name]; ok {
			continue
		}
		out.fields = append(out.fields, f)
	}
	return out
}

// Equal reports whether two documents have the same field set with deeply equal
// values. Field order is not significant.
func (d Document) Equal(other Document) bool {
	if len(d.fields) != len(other.fields) {
		return false
	}
	for _, f := range d.fields {
		v, ok := other.Get(f.Name)
		if !ok || !valuesEqual(f.Value, v) {
			return false
		}
	}
	return true
}

// String renders the document the way the mongo shell prints it,
// e.g. { "lastname" : "WHITE" , "firstname" : "Skyler"}.
func (d Document) String() string {
	var b strings.Builder
	writeShellValue(&b, d)
	return b.String()
}

// MarshalJSON encodes the document as a JSON object, keeping field order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Contains reports whether the collection holds a document equal to doc.
func (c Collection) Contains(doc Document) bool {
	for _, d := range c {
		if d.Equal(doc) {
			return true
		}
	}
	return false
}

// Without projects every document of the collection, see Document.Without.
func (c Collection) Without(names ...string) Collection {
	out := make(Collection, len(c))
	for i, d := range c {
		out[i] = d.Without(names...)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64, float64, Document:
		return v
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return float64(x)
		}
		return int64(x)
	case float32:
		return float64(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, Field{Name: k, Value: x[k]})
		}
		return NewDocument(fields...)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case []Document:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	default:
		if n, ok := normalizeBSONValue(v); ok {
			return n
		}
		return normalizeReflectValue(v)
	}
}

// normalizeReflectValue turns typed slices into []any and string-keyed maps
// into Documents. Byte slices and fixed byte arrays such as ObjectIDs are kept.
func normalizeReflectValue(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			key := reflect.ValueOf(k).Convert(rv.Type().Key())
			fields = append(fields, Field{Name: k, Value: rv.MapIndex(key).Interface()})
		}
		return NewDocument(fields...)
	default:
		return v
	}
}

func valuesEqual(a, b any) bool {
	switch x := a.(type) {
	case Document:
		y, ok := b.(Document)
		return ok && x.Equal(y)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		}
		return false
	case float64:
		switch y := b.(type) {
		case float64:
			return x == y
		case int64:
			return x == float64(y)
		}
		return false
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	default:
		return reflect.DeepEqual(a, b)
	}
}

func writeShellValue(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
	case string:
		b.WriteString(strconv.Quote(x))
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	case Document:
		if len(x.fields) == 0 {
			b.WriteString("{ }")
			return
		}
		b.WriteString("{ ")
		for i, f := range x.fields {
			if i > 0 {
				b.WriteString(" , ")
			}
			b.WriteString(strconv.Quote(f.Name))
			b.WriteString(" : ")
			writeShellValue(b, f.Value)
		}
		b.WriteString("}")
	case []any:
		if len(x) == 0 {
			b.WriteString("[ ]")
			return
		}
		b.WriteString("[ ")
		for i, e := range x {
			if i > 0 {
				b.WriteString(" , ")
			}
			writeShellValue(b, e)
		}
		b.WriteString("]")
	default:
		if ext, ok := extendedShellValue(x); ok {
			b.WriteString(ext)
			return
		}
		if s, ok := x.(fmt.Stringer); ok {
			b.WriteString(strconv.Quote(s.String()))
			return
		}
		b.WriteString(fmt.Sprintf("%v", x))
	}
}
