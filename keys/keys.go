// Package keys derives cache keys for entity attributes, blobs and indexes.
//
// Formats (ns is the namespace prefix, empty by default):
//
//	attribute: <ns>attribute:<entity>:<attribute>:<by>:<hash(values)>
//	blob:      <ns>blob:<entity>:<hash(fingerprint)>:<pk>
//	index:     <ns>index:<entity>:<by>:<hash(values)>
//
// <by> is the ordered, colon-joined list of predicate attribute names; order
// is significant. The blob fingerprint is the sorted "name:type" list of
// persisted columns, so any schema change moves every blob to a new key and
// old entries are simply never read again.
//
// Derivation is pure and safe for concurrent use.
package keys

import (
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Category tags.
const (
	Attribute = "attribute"
	Blob      = "blob"
	Index     = "index"
)

// Column is one persisted column of an entity type.
type Column struct {
	Name string
	Type string
}

// Fingerprint returns the sorted, comma-joined "name:type" list.
func Fingerprint(cols []Column) string {
	pairs := make([]string, len(cols))
	for i, c := range cols {
		pairs[i] = c.Name + ":" + c.Type
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

// Deriver builds keys under a namespace.
type Deriver struct {
	Namespace string
}

// Prefix returns the namespace prefix: empty, or the namespace followed by
// a single ':'.
func (d Deriver) Prefix() string {
	if d.Namespace == "" || strings.HasSuffix(d.Namespace, ":") {
		return d.Namespace
	}
	return d.Namespace + ":"
}

func (d Deriver) Attribute(entity, attribute string, by []string, values []any) string {
	return d.Prefix() + Attribute + ":" + entity + ":" + attribute + ":" + By(by) + ":" + Hash(values...)
}

func (d Deriver) Blob(entity, fingerprint string, pk any) string {
	return d.Prefix() + Blob + ":" + entity + ":" + HashString(fingerprint) + ":" + Format(pk)
}

func (d Deriver) Index(entity string, by []string, values []any) string {
	return d.Prefix() + Index + ":" + entity + ":" + By(by) + ":" + Hash(values...)
}

// By joins predicate attribute names in order.
func By(names []string) string { return strings.Join(names, ":") }

// HashString is xxhash64 of s as 16 hex digits.
func HashString(s string) string {
	return hex16(xxhash.Sum64String(s))
}

// Hash hashes an ordered list of predicate values. Each value's canonical
// form is length-prefixed, so ("a:b","c") and ("a","b:c") hash differently.
func Hash(values ...any) string {
	d := xxhash.New()
	var n [binary.MaxVarintLen64]byte
	for _, v := range values {
		c := Canonical(v)
		_, _ = d.Write(n[:binary.PutUvarint(n[:], uint64(len(c)))])
		_, _ = d.WriteString(c)
	}
	return hex16(d.Sum64())
}

func hex16(u uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], u)
	return hex.EncodeToString(b[:])
}

// Canonical returns a type-tagged string for a predicate value. All integer
// kinds share a tag, so int32(1) and int64(1) are the same predicate; the
// string "1" is not. Pointers are dereferenced (nil is the null value) and
// driver.Valuer types such as sql.NullString are unwrapped, so a nullable
// column and the plain value it holds derive the same key.
func Canonical(v any) string {
	switch x := unwrap(v).(type) {
	case nil:
		return "n"
	case string:
		return "s" + x
	case []byte:
		return "x" + hex.EncodeToString(x)
	case bool:
		if x {
			return "b1"
		}
		return "b0"
	case int:
		return "i" + strconv.FormatInt(int64(x), 10)
	case int8:
		return "i" + strconv.FormatInt(int64(x), 10)
	case int16:
		return "i" + strconv.FormatInt(int64(x), 10)
	case int32:
		return "i" + strconv.FormatInt(int64(x), 10)
	case int64:
		return "i" + strconv.FormatInt(x, 10)
	case uint:
		return "i" + strconv.FormatUint(uint64(x), 10)
	case uint8:
		return "i" + strconv.FormatUint(uint64(x), 10)
	case uint16:
		return "i" + strconv.FormatUint(uint64(x), 10)
	case uint32:
		return "i" + strconv.FormatUint(uint64(x), 10)
	case uint64:
		return "i" + strconv.FormatUint(x, 10)
	case float32:
		return canonicalFloat(float64(x))
	case float64:
		return canonicalFloat(x)
	case time.Time:
		return "t" + x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return "s" + x.String()
	default:
		return canonicalKind(x)
	}
}

// unwrap strips pointers and driver.Valuer wrappers. The depth bound stops
// a Valuer that returns itself.
func unwrap(v any) any {
	for i := 0; i < 8 && v != nil; i++ {
		rv := reflect.ValueOf(v)
		isPtr := rv.Kind() == reflect.Pointer
		if isPtr && rv.IsNil() {
			return nil
		}
		if dv, ok := v.(driver.Valuer); ok {
			x, err := dv.Value()
			if err != nil {
				return v
			}
			v = x
			continue
		}
		if !isPtr {
			return v
		}
		v = rv.Elem().Interface()
	}
	return v
}

// named basic types (type Status string) canonicalize like their kind
func canonicalKind(x any) string {
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.String:
		return "s" + rv.String()
	case reflect.Bool:
		return Canonical(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "i" + strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return "i" + strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return canonicalFloat(rv.Float())
	}
	return "v" + fmt.Sprintf("%v", x)
}

// integral floats canonicalize like integers: WHERE id = 1.0 is WHERE id = 1
func canonicalFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return "i" + strconv.FormatInt(int64(f), 10)
	}
	return "f" + strconv.FormatFloat(f, 'g', -1, 64)
}

// Format renders a primary key for the tail of a blob key.
func Format(pk any) string {
	switch x := pk.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// CategoryOf returns the category tag of a derived key, or "" when key was
// not built by a Deriver.
func CategoryOf(key string) string {
	for len(key) > 0 {
		seg, rest, _ := strings.Cut(key, ":")
		switch seg {
		case Attribute, Blob, Index:
			return seg
		}
		key = rest
	}
	return ""
}
