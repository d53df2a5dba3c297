package testfixtures

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FromBSON converts an ordered BSON document into a Document.
// Embedded documents and arrays are converted recursively.
func FromBSON(d bson.D) Document {
	fields := make([]Field, 0, len(d))
	for _, e := range d {
		fields = append(fields, Field{Name: e.Key, Value: e.Value})
	}
	return NewDocument(fields...)
}

// BSON converts the document into an ordered BSON document.
func (d Document) BSON() bson.D {
	out := make(bson.D, 0, len(d.fields))
	for _, f := range d.fields {
		out = append(out, bson.E{Key: f.Name, Value: toBSONValue(f.Value)})
	}
	return out
}

func toBSONValue(v any) any {
	switch x := v.(type) {
	case Document:
		return x.BSON()
	case []any:
		out := make(bson.A, len(x))
		for i, e := range x {
			out[i] = toBSONValue(e)
		}
		return out
	default:
		return v
	}
}

// normalizeBSONValue maps driver container types onto the Document model.
func normalizeBSONValue(v any) (any, bool) {
	switch x := v.(type) {
	case bson.D:
		return FromBSON(x), true
	case bson.M:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := make(bson.D, 0, len(keys))
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: x[k]})
		}
		return FromBSON(d), true
	case bson.A:
		return normalizeValue([]any(x)), true
	case primitive.DateTime:
		return x.Time().UTC(), true
	case time.Time:
		return x.UTC(), true
	default:
		return nil, false
	}
}

// extendedShellValue renders BSON-specific scalars in their shell form.
func extendedShellValue(v any) (string, bool) {
	switch x := v.(type) {
	case primitive.ObjectID:
		return fmt.Sprintf("{ \"$oid\" : %s}", strconv.Quote(x.Hex())), true
	case time.Time:
		return fmt.Sprintf("{ \"$date\" : %s}", strconv.Quote(x.UTC().Format("2006-01-02T15:04:05.000Z"))), true
	default:
		return "", false
	}
}
