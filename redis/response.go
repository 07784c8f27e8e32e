package redis

import (
	"strconv"
	"strings"

	"github.com/kormik/rediscore/resp"
)

// Response is a parsed server reply. The zero value is the empty
// response used for canceled or failed commands.
type Response struct {
	value resp.Value
}

// NewResponse wraps a parsed RESP value.
func NewResponse(v resp.Value) Response { return Response{value: v} }

// IsEmpty reports whether the response holds no value at all.
func (r Response) IsEmpty() bool { return r.value == nil }

// Value returns the underlying RESP value, nil for the empty
// response.
func (r Response) Value() resp.Value { return r.value }

// Bytes returns the raw payload of scalar replies.
func (r Response) Bytes() []byte {
	if r.value == nil {
		return nil
	}
	return r.value.Bytes()
}

// String returns the payload of scalar replies as a string.
func (r Response) String() string {
	if r.value == nil {
		return ""
	}
	return r.value.String()
}

// Array returns the items of an array reply, nil otherwise.
func (r Response) Array() []resp.Value {
	if arr, ok := r.value.(resp.Array); ok {
		return arr.Items
	}
	return nil
}

// IsArray reports whether the reply is an array.
func (r Response) IsArray() bool {
	_, ok := r.value.(resp.Array)
	return ok
}

// IsErrorMessage reports whether the reply is a server error.
func (r Response) IsErrorMessage() bool {
	if r.value == nil {
		return false
	}
	return r.value.Kind() == resp.KindError
}

// IsDisabledCommandErrorMessage reports whether the error reply means
// the command is unknown to the server or administratively disabled.
// Cloud providers answer SCAN on clusters this way.
func (r Response) IsDisabledCommandErrorMessage() bool {
	if !r.IsErrorMessage() {
		return false
	}
	text := strings.ToLower(r.value.String())
	return strings.HasPrefix(text, "err unknown command") ||
		strings.Contains(text, "command is disabled")
}

// IsValidScanResponse reports whether the reply has the SCAN shape: a
// two-element array whose first element parses as an unsigned cursor
// and whose second element is an array.
func (r Response) IsValidScanResponse() bool {
	items := r.Array()
	if len(items) != 2 {
		return false
	}
	if _, err := strconv.ParseUint(items[0].String(), 10, 64); err != nil {
		return false
	}
	_, ok := items[1].(resp.Array)
	return ok
}

// Cursor extracts the cursor of a scan reply: the first array element
// parsed as an unsigned integer, 0 when the reply is not a non-empty
// array or that element does not parse.
func (r Response) Cursor() uint64 {
	items := r.Array()
	if len(items) < 1 {
		return 0
	}
	cursor, err := strconv.ParseUint(items[0].String(), 10, 64)
	if err != nil {
		return 0
	}
	return cursor
}

// Collection extracts the item batch of a scan reply as raw byte
// strings.
func (r Response) Collection() [][]byte {
	items := r.Array()
	if len(items) < 2 {
		return nil
	}
	batch, ok := items[1].(resp.Array)
	if !ok {
		return nil
	}
	out := make([][]byte, 0, len(batch.Items))
	for _, item := range batch.Items {
		out = append(out, item.Bytes())
	}
	return out
}
