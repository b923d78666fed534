package godb

import (
	"fmt"
	"sync/atomic"
)

// TypeKind is the closed set of field types: INT and STRING(n).
type TypeKind int

const (
	IntType TypeKind = iota
	StringType
)

func (k TypeKind) String() string {
	if k == IntType {
		return "int"
	}
	return "string"
}

// Type describes the type of a single field: its kind, and for STRING(n)
// the declared bound n. EncodedLen is the fixed on-disk width of a value of
// this type: 4 bytes for INT, 4+n bytes for STRING(n) (a 4 byte big-endian
// length prefix followed by n bytes of padded UTF-8).
type Type struct {
	Kind TypeKind
	Len  int // meaningful only when Kind == StringType
}

func IntT() Type              { return Type{Kind: IntType} }
func StringT(n int) Type      { return Type{Kind: StringType, Len: n} }
func (t Type) EncodedLen() int {
	if t.Kind == IntType {
		return 4
	}
	return 4 + t.Len
}

func (t Type) equals(o Type) bool {
	return t.Kind == o.Kind && (t.Kind != StringType || t.Len == o.Len)
}

// FieldDesc names one column of a TupleDesc.
type FieldDesc struct {
	Name string
	Ftype Type
}

// TupleDesc is the ordered schema of a tuple: at least one field, equality
// compares only the type sequence (field names are descriptive, not part of
// identity).
type TupleDesc struct {
	Fields []FieldDesc
}

// NewTupleDesc builds a TupleDesc, returning a DbError if it is empty.
func NewTupleDesc(fields ...FieldDesc) (*TupleDesc, error) {
	if len(fields) == 0 {
		return nil, newErr(DbErrorKind, "TupleDesc requires at least one field")
	}
	cp := make([]FieldDesc, len(fields))
	copy(cp, fields)
	return &TupleDesc{Fields: cp}, nil
}

// Equals compares type sequences only; field names are ignored.
func (td *TupleDesc) Equals(o *TupleDesc) bool {
	if len(td.Fields) != len(o.Fields) {
		return false
	}
	for i := range td.Fields {
		if !td.Fields[i].Ftype.equals(o.Fields[i].Ftype) {
			return false
		}
	}
	return true
}

// Copy returns a deep copy of the field slice (assigning a TupleDesc does
// not copy the underlying slice in Go).
func (td *TupleDesc) Copy() *TupleDesc {
	cp := make([]FieldDesc, len(td.Fields))
	copy(cp, td.Fields)
	return &TupleDesc{Fields: cp}
}

// Merge returns the concatenation of desc's fields followed by other's.
// merge(merge(a,b),c) == merge(a,merge(b,c)) in field sequence because
// append-of-append is associative on slices.
func (td *TupleDesc) Merge(other *TupleDesc) *TupleDesc {
	out := make([]FieldDesc, 0, len(td.Fields)+len(other.Fields))
	out = append(out, td.Fields...)
	out = append(out, other.Fields...)
	return &TupleDesc{Fields: out}
}

// TupleSize is the fixed byte width of a serialized tuple body under this
// schema: the sum of each field's EncodedLen.
func (td *TupleDesc) TupleSize() int {
	sz := 0
	for _, f := range td.Fields {
		sz += f.Ftype.EncodedLen()
	}
	return sz
}

func (td *TupleDesc) FieldIndex(name string) (int, error) {
	for i, f := range td.Fields {
		if f.Name == name {
			return i, nil
		}
	}
	return -1, newErr(NotFoundKind, "no field named %q", name)
}

// Field is a tagged-variant field value. Values are immutable after
// creation and hashable.
type Field interface {
	Type() Type
	hashKey() any
}

// IntField is a 4-byte signed value.
type IntField struct {
	Value int32
}

func (IntField) Type() Type     { return IntT() }
func (f IntField) hashKey() any { return f.Value }

// StringField is a value bounded to Width bytes (the STRING(n) of its
// schema slot). The stored Value is always <= Width bytes when encoded.
type StringField struct {
	Value string
	Width int
}

func (f StringField) Type() Type   { return StringT(f.Width) }
func (f StringField) hashKey() any { return f.Value }

func fieldsEqual(a, b Field) bool {
	ai, aok := a.(IntField)
	bi, bok := b.(IntField)
	if aok && bok {
		return ai.Value == bi.Value
	}
	as, aok := a.(StringField)
	bs, bok := b.(StringField)
	if aok && bok {
		return as.Value == bs.Value
	}
	return false
}

// PageId identifies a page by the table it belongs to and its offset within
// that table's file. Table id is a stable hash of the HeapFile's canonical
// path (see Catalog), so restarts reproduce the same id.
type PageId struct {
	TableID  int32
	PageNo   int32
}

func (p PageId) String() string {
	return fmt.Sprintf("page(%d,%d)", p.TableID, p.PageNo)
}

// RecordId identifies a stored tuple: the page it lives on and its slot.
// It is a weak, lookup-only back-pointer, not ownership.
type RecordId struct {
	Page PageId
	Slot int
}

// TransactionID identifies one user transaction for the lifetime of the
// process. TIDs are handed out by NewTID from an atomic counter.
type TransactionID int64

var tidCounter int64

// NewTID allocates a fresh, process-unique TransactionID.
func NewTID() TransactionID {
	return TransactionID(atomic.AddInt64(&tidCounter, 1))
}

// RWPerm is the permission requested when fetching a page: shared
// (read-only) or exclusive (read-write).
type RWPerm int

const (
	ReadOnly RWPerm = iota
	ReadWrite
)

func (p RWPerm) String() string {
	if p == ReadOnly {
		return "READ_ONLY"
	}
	return "READ_WRITE"
}
