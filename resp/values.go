// Package resp implements the Redis Serialization Protocol (RESP v2):
// a value tree for parsed replies, a frame parser, and a multibulk
// command writer. Bulk strings are kept as byte slices so binary
// payloads survive a round trip.
package resp

import "strconv"

// Kind identifies the RESP type of a Value.
type Kind int

const (
	KindNone Kind = iota
	KindSimpleString
	KindBulkString
	KindInteger
	KindArray
	KindError
	KindNull
)

// Value is a single node of a parsed RESP reply.
type Value interface {
	Kind() Kind
	// Bytes returns the raw payload of the value. Arrays and nulls
	// return nil.
	Bytes() []byte
	// String returns the payload as a string.
	String() string
}

// SimpleString is a +OK style status reply.
type SimpleString struct {
	Val string
}

func (s SimpleString) Kind() Kind     { return KindSimpleString }
func (s SimpleString) Bytes() []byte  { return []byte(s.Val) }
func (s SimpleString) String() string { return s.Val }

// BulkString is a length-prefixed, binary-safe $ reply.
type BulkString struct {
	Val []byte
}

func (b BulkString) Kind() Kind     { return KindBulkString }
func (b BulkString) Bytes() []byte  { return b.Val }
func (b BulkString) String() string { return string(b.Val) }

// Integer is a : reply.
type Integer struct {
	Val int64
}

func (i Integer) Kind() Kind     { return KindInteger }
func (i Integer) Bytes() []byte  { return []byte(strconv.FormatInt(i.Val, 10)) }
func (i Integer) String() string { return strconv.FormatInt(i.Val, 10) }

// Array is a * reply holding zero or more nested values.
type Array struct {
	Items []Value
}

func (a Array) Kind() Kind     { return KindArray }
func (a Array) Bytes() []byte  { return nil }
func (a Array) String() string { return "" }

// Error is a - reply carrying the server error text.
type Error struct {
	Val string
}

func (e Error) Kind() Kind     { return KindError }
func (e Error) Bytes() []byte  { return []byte(e.Val) }
func (e Error) String() string { return e.Val }

// Null is a null bulk string ($-1) or null array (*-1).
type Null struct{}

func (Null) Kind() Kind     { return KindNull }
func (Null) Bytes() []byte  { return nil }
func (Null) String() string { return "" }
