package godb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Tuple owns a TupleDesc and an ordered sequence of Fields of matching
// arity, plus an optional RecordId set once the tuple is stored on a page.
type Tuple struct {
	Desc   TupleDesc
	Fields []Field
	Rid    *RecordId
}

// NewTuple validates arity/type against desc and returns a fresh Tuple with
// no RecordId.
func NewTuple(desc TupleDesc, fields []Field) (*Tuple, error) {
	if len(fields) != len(desc.Fields) {
		return nil, newErr(DbErrorKind, "tuple has %d fields, schema wants %d", len(fields), len(desc.Fields))
	}
	for i, f := range fields {
		if !f.Type().equals(desc.Fields[i].Ftype) {
			return nil, newErr(DbErrorKind, "field %d has type %v, schema wants %v", i, f.Type(), desc.Fields[i].Ftype)
		}
	}
	cp := make([]Field, len(fields))
	copy(cp, fields)
	return &Tuple{Desc: desc, Fields: cp}, nil
}

// writeTo encodes the tuple body in schema order: 4-byte big-endian ints,
// and for strings a 4-byte big-endian length followed by Width zero-padded
// bytes.
func (t *Tuple) writeTo(buf *bytes.Buffer) error {
	for i, f := range t.Fields {
		switch v := f.(type) {
		case IntField:
			if err := binary.Write(buf, binary.BigEndian, v.Value); err != nil {
				return wrapErr(IoErrorKind, err, "writing int field %d", i)
			}
		case StringField:
			width := t.Desc.Fields[i].Ftype.Len
			raw := []byte(v.Value)
			if len(raw) > width {
				raw = raw[:width]
			}
			if err := binary.Write(buf, binary.BigEndian, int32(len(raw))); err != nil {
				return wrapErr(IoErrorKind, err, "writing string length for field %d", i)
			}
			padded := make([]byte, width)
			copy(padded, raw)
			if _, err := buf.Write(padded); err != nil {
				return wrapErr(IoErrorKind, err, "writing string body for field %d", i)
			}
		default:
			return newErr(DbErrorKind, "unsupported field type %T", f)
		}
	}
	return nil
}

// readTupleFrom decodes a tuple body of the given schema from buf.
func readTupleFrom(buf *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	fields := make([]Field, len(desc.Fields))
	for i, fd := range desc.Fields {
		switch fd.Ftype.Kind {
		case IntType:
			var v int32
			if err := binary.Read(buf, binary.BigEndian, &v); err != nil {
				return nil, wrapErr(IoErrorKind, err, "reading int field %d", i)
			}
			fields[i] = IntField{Value: v}
		case StringType:
			var n int32
			if err := binary.Read(buf, binary.BigEndian, &n); err != nil {
				return nil, wrapErr(IoErrorKind, err, "reading string length for field %d", i)
			}
			raw := make([]byte, fd.Ftype.Len)
			if _, err := buf.Read(raw); err != nil {
				return nil, wrapErr(IoErrorKind, err, "reading string body for field %d", i)
			}
			if int(n) > len(raw) {
				n = int32(len(raw))
			}
			fields[i] = StringField{Value: strings.TrimRight(string(raw[:n]), "\x00"), Width: fd.Ftype.Len}
		}
	}
	return &Tuple{Desc: *desc, Fields: fields}, nil
}

// Equals compares TupleDescs (type sequence only) and all field values.
func (t *Tuple) Equals(o *Tuple) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !t.Desc.Equals(&o.Desc) || len(t.Fields) != len(o.Fields) {
		return false
	}
	for i := range t.Fields {
		if !fieldsEqual(t.Fields[i], o.Fields[i]) {
			return false
		}
	}
	return true
}

// key returns a comparable value suitable for use as a map key (the
// tuple's encoded body).
func (t *Tuple) key() any {
	var buf bytes.Buffer
	t.writeTo(&buf)
	return buf.String()
}

// String renders the tuple as a comma-separated row, for CLI and log
// output.
func (t *Tuple) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		switch v := f.(type) {
		case IntField:
			parts[i] = strconv.FormatInt(int64(v.Value), 10)
		case StringField:
			parts[i] = v.Value
		default:
			parts[i] = fmt.Sprintf("%v", f)
		}
	}
	return strings.Join(parts, ", ")
}
