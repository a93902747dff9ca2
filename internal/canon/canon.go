// Package canon renders attribute values as canonical JSON.
//
// The output is RFC 8785 shaped: no insignificant whitespace, object keys
// ordered by UTF-16 code units, strings NFC normalized, and only quote,
// backslash and control characters escaped. Equal values always produce
// identical bytes, which is what the journal and the golden traces rely on.
//
// Values the JSON data model has no word for are mapped as follows:
//
//	nil, nil pointer, nil map/slice  null
//	[]byte                           base64 string (standard encoding)
//	tracked container                its Snapshot
//	object with ID() string          {"$ref": id}
//	map with non-string keys         keys rendered as canonical JSON text
//	struct                           object of exported fields
//	func, chan                       {"$type": Go type}
package canon

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type snapshotter interface {
	Snapshot() any
}

type identified interface {
	ID() string
}

// Marshal returns the canonical JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, reflect.ValueOf(v), 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String is Marshal for callers that store text. Unencodable values render
// as their %v form in a JSON string so a trace line is never lost.
func String(v any) string {
	b, err := Marshal(v)
	if err != nil {
		q, _ := Marshal(fmt.Sprintf("%v", v))
		return string(q)
	}
	return string(b)
}

const maxDepth = 64

func encode(buf *bytes.Buffer, v reflect.Value, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("canonical JSON: value nested deeper than %d levels", maxDepth)
	}
	if !v.IsValid() {
		buf.WriteString("null")
		return nil
	}
	if v.CanInterface() {
		switch x := v.Interface().(type) {
		case snapshotter:
			if isNilPtr(v) {
				buf.WriteString("null")
				return nil
			}
			return encode(buf, reflect.ValueOf(x.Snapshot()), depth+1)
		case identified:
			if isNilPtr(v) {
				buf.WriteString("null")
				return nil
			}
			buf.WriteString(`{"$ref":`)
			writeString(buf, x.ID())
			buf.WriteByte('}')
			return nil
		case []byte:
			if x == nil {
				buf.WriteString("null")
				return nil
			}
			writeString(buf, base64.StdEncoding.EncodeToString(x))
			return nil
		}
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return encode(buf, v.Elem(), depth+1)
	case reflect.Bool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		s, err := formatFloat(v.Float())
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case reflect.String:
		writeString(buf, v.String())
	case reflect.Slice:
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return encodeArray(buf, v, depth)
	case reflect.Array:
		return encodeArray(buf, v, depth)
	case reflect.Map:
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return encodeMap(buf, v, depth)
	case reflect.Struct:
		return encodeStruct(buf, v, depth)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		buf.WriteString(`{"$type":`)
		writeString(buf, v.Type().String())
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical JSON: unsupported kind %s", v.Kind())
	}
	return nil
}

func isNilPtr(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func encodeArray(buf *bytes.Buffer, v reflect.Value, depth int) error {
	buf.WriteByte('[')
	for i := range v.Len() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, v.Index(i), depth+1); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

type member struct {
	key string
	val reflect.Value
}

func encodeMap(buf *bytes.Buffer, v reflect.Value, depth int) error {
	members := make([]member, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := mapKey(iter.Key(), depth)
		if err != nil {
			return err
		}
		members = append(members, member{key: key, val: iter.Value()})
	}
	return encodeObject(buf, members, depth)
}

func mapKey(k reflect.Value, depth int) (string, error) {
	for k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	var kb bytes.Buffer
	if err := encode(&kb, k, depth+1); err != nil {
		return "", fmt.Errorf("map key: %w", err)
	}
	return kb.String(), nil
}

func encodeStruct(buf *bytes.Buffer, v reflect.Value, depth int) error {
	t := v.Type()
	members := make([]member, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		members = append(members, member{key: f.Name, val: v.Field(i)})
	}
	return encodeObject(buf, members, depth)
}

func encodeObject(buf *bytes.Buffer, members []member, depth int) error {
	for i := range members {
		members[i].key = norm.NFC.String(members[i].key)
	}
	slices.SortFunc(members, func(a, b member) int { return CompareKeys(a.key, b.key) })
	for i := 1; i < len(members); i++ {
		if members[i].key == members[i-1].key {
			return fmt.Errorf("canonical JSON: duplicate key %q", members[i].key)
		}
	}

	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, m.key)
		buf.WriteByte(':')
		if err := encode(buf, m.val, depth+1); err != nil {
			return fmt.Errorf("%q: %w", m.key, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// CompareKeys orders strings by UTF-16 code units. Byte order differs for
// characters outside the BMP.
func CompareKeys(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

const hexDigits = "0123456789abcdef"

func writeString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[r>>4])
			buf.WriteByte(hexDigits[r&0xf])
		case r == utf8.RuneError && size == 1:
			buf.WriteString("\ufffd")
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}

// formatFloat writes f the way ECMAScript's Number.prototype.toString does
// for the shortest round-tripping representation.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("canonical JSON: %v has no JSON form", f)
	}
	if f == 0 {
		return "0", nil
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[0]
		exp = strings.TrimLeft(exp[1:], "0")
		return mant + "e" + string(sign) + exp, nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
