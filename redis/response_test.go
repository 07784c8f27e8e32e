package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kormik/rediscore/resp"
)

func scanReply(cursor string, items ...string) Response {
	batch := make([]resp.Value, len(items))
	for i, item := range items {
		batch[i] = resp.BulkString{Val: []byte(item)}
	}
	return NewResponse(resp.Array{Items: []resp.Value{
		resp.BulkString{Val: []byte(cursor)},
		resp.Array{Items: batch},
	}})
}

func TestResponseEmpty(t *testing.T) {
	var r Response
	assert.True(t, r.IsEmpty())
	assert.False(t, r.IsArray())
	assert.False(t, r.IsErrorMessage())
	assert.Nil(t, r.Bytes())
	assert.Equal(t, "", r.String())
}

func TestResponseErrorClassification(t *testing.T) {
	plain := NewResponse(resp.Error{Val: "ERR wrong number of arguments"})
	assert.True(t, plain.IsErrorMessage())
	assert.False(t, plain.IsDisabledCommandErrorMessage())

	unknown := NewResponse(resp.Error{Val: "ERR unknown command 'SCAN'"})
	assert.True(t, unknown.IsDisabledCommandErrorMessage())

	disabled := NewResponse(resp.Error{Val: "ERR this command is disabled on the instance"})
	assert.True(t, disabled.IsDisabledCommandErrorMessage())

	ok := NewResponse(resp.SimpleString{Val: "OK"})
	assert.False(t, ok.IsErrorMessage())
	assert.False(t, ok.IsDisabledCommandErrorMessage())
}

func TestResponseValidScanShape(t *testing.T) {
	assert.True(t, scanReply("48", "a", "b").IsValidScanResponse())
	assert.True(t, scanReply("0").IsValidScanResponse())

	// not an array
	assert.False(t, NewResponse(resp.SimpleString{Val: "OK"}).IsValidScanResponse())

	// wrong length
	one := NewResponse(resp.Array{Items: []resp.Value{resp.BulkString{Val: []byte("0")}}})
	assert.False(t, one.IsValidScanResponse())

	// cursor not an unsigned integer
	bad := NewResponse(resp.Array{Items: []resp.Value{
		resp.BulkString{Val: []byte("next")},
		resp.Array{},
	}})
	assert.False(t, bad.IsValidScanResponse())

	// payload not an array
	flat := NewResponse(resp.Array{Items: []resp.Value{
		resp.BulkString{Val: []byte("0")},
		resp.BulkString{Val: []byte("x")},
	}})
	assert.False(t, flat.IsValidScanResponse())
}

func TestResponseCursorAndCollection(t *testing.T) {
	r := scanReply("48", "a", "b")
	assert.Equal(t, uint64(48), r.Cursor())

	batch := r.Collection()
	require.Len(t, batch, 2)
	assert.Equal(t, []byte("a"), batch[0])
	assert.Equal(t, []byte("b"), batch[1])
}

func TestResponseArrayAccessor(t *testing.T) {
	r := NewResponse(resp.Array{Items: []resp.Value{resp.Integer{Val: 1}}})
	require.Len(t, r.Array(), 1)
	assert.Nil(t, NewResponse(resp.Integer{Val: 1}).Array())
}
