package resp

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseString(t *testing.T, wire string) Value {
	t.Helper()
	v, err := Parse(bufio.NewReader(strings.NewReader(wire)))
	require.NoError(t, err)
	return v
}

func TestParseSimpleString(t *testing.T) {
	v := parseString(t, "+PONG\r\n")
	assert.Equal(t, KindSimpleString, v.Kind())
	assert.Equal(t, "PONG", v.String())
}

func TestParseError(t *testing.T) {
	v := parseString(t, "-ERR unknown command 'FOO'\r\n")
	assert.Equal(t, KindError, v.Kind())
	assert.Equal(t, "ERR unknown command 'FOO'", v.String())
}

func TestParseInteger(t *testing.T) {
	v := parseString(t, ":1042\r\n")
	require.Equal(t, KindInteger, v.Kind())
	assert.Equal(t, int64(1042), v.(Integer).Val)
}

func TestParseBulkString(t *testing.T) {
	v := parseString(t, "$11\r\nhello\nworld\r\n")
	require.Equal(t, KindBulkString, v.Kind())
	assert.Equal(t, []byte("hello\nworld"), v.Bytes())
}

func TestParseBulkStringBinary(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xFF, '\r', '\n', 0x02}
	wire := "$6\r\n" + string(payload) + "\r\n"
	v := parseString(t, wire)
	assert.Equal(t, payload, v.Bytes())
}

func TestParseNulls(t *testing.T) {
	assert.Equal(t, KindNull, parseString(t, "$-1\r\n").Kind())
	assert.Equal(t, KindNull, parseString(t, "*-1\r\n").Kind())
}

func TestParseArrayNested(t *testing.T) {
	wire := "*2\r\n$2\r\n48\r\n*2\r\n$1\r\na\r\n$1\r\nb\r\n"
	v := parseString(t, wire)
	arr, ok := v.(Array)
	require.True(t, ok)
	require.Len(t, arr.Items, 2)
	assert.Equal(t, "48", arr.Items[0].String())

	inner, ok := arr.Items[1].(Array)
	require.True(t, ok)
	require.Len(t, inner.Items, 2)
	assert.Equal(t, "a", inner.Items[0].String())
	assert.Equal(t, "b", inner.Items[1].String())
}

func TestParseEmptyArray(t *testing.T) {
	v := parseString(t, "*0\r\n")
	arr, ok := v.(Array)
	require.True(t, ok)
	assert.Empty(t, arr.Items)
}

func TestParseRejectsUnknownMarker(t *testing.T) {
	_, err := Parse(bufio.NewReader(strings.NewReader("?what\r\n")))
	assert.Error(t, err)
}

func TestParseRejectsBadBulkLength(t *testing.T) {
	_, err := Parse(bufio.NewReader(strings.NewReader("$-7\r\n")))
	assert.Error(t, err)
}

func TestWriteCommand(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCommand(&buf, [][]byte{[]byte("SET"), []byte("my key"), []byte("a\r\nb")})
	require.NoError(t, err)
	assert.Equal(t, "*3\r\n$3\r\nSET\r\n$6\r\nmy key\r\n$4\r\na\r\nb\r\n", buf.String())
}

func TestWriteCommandRejectsEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteCommand(&buf, nil))
}

func TestWriteCommandRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	args := [][]byte{[]byte("ECHO"), {0x00, 0xFF, 0x0A}}
	require.NoError(t, WriteCommand(&buf, args))

	v, err := Parse(bufio.NewReader(&buf))
	require.NoError(t, err)
	arr, ok := v.(Array)
	require.True(t, ok)
	require.Len(t, arr.Items, 2)
	assert.Equal(t, args[1], arr.Items[1].Bytes())
}
