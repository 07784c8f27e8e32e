package redis

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nsResult struct {
	items NamespaceItems
	err   string
}

func runNamespaceItems(t *testing.T, conn *Connection) nsResult {
	t.Helper()
	done := make(chan nsResult, 1)
	require.NoError(t, conn.GetNamespaceItems(func(items NamespaceItems, err string) {
		done <- nsResult{items: items, err: err}
	}, ":", "*", -1))

	select {
	case result := <-done:
		return result
	case <-time.After(3 * time.Second):
		t.Fatal("namespace aggregation did not complete")
		return nsResult{}
	}
}

func TestGetNamespaceItems(t *testing.T) {
	server := newMockServer(t, standaloneHandler(func(args []string) string {
		if strings.EqualFold(args[0], "EVAL") {
			return arrayWire(
				bulk(`{"user":2,"cart":1}`),
				bulk(`{"counter":true,"flag":true}`),
			)
		}
		return ""
	}))
	conn := connectTo(t, server)

	result := runNamespaceItems(t, conn)
	require.Equal(t, "", result.err)

	require.Len(t, result.items.Namespaces, 2)
	assert.Equal(t, "cart", string(result.items.Namespaces[0].Name))
	assert.Equal(t, uint64(1), result.items.Namespaces[0].Count)
	assert.Equal(t, "user", string(result.items.Namespaces[1].Name))
	assert.Equal(t, uint64(2), result.items.Namespaces[1].Count)

	assert.Equal(t, []string{"counter", "flag"}, asStrings(result.items.RootKeys))

	// the script, separator and filter travel as EVAL arguments
	var evalReq []string
	for _, req := range server.Requests() {
		if strings.EqualFold(req[0], "EVAL") {
			evalReq = req
		}
	}
	require.Len(t, evalReq, 5)
	assert.Contains(t, evalReq[1], "SCAN")
	assert.Equal(t, "0", evalReq[2])
	assert.Equal(t, ":", evalReq[3])
	assert.Equal(t, "*", evalReq[4])
}

func TestGetNamespaceItemsWrongArity(t *testing.T) {
	server := newMockServer(t, standaloneHandler(func(args []string) string {
		if strings.EqualFold(args[0], "EVAL") {
			return arrayWire(bulk(`{"user":2}`))
		}
		return ""
	}))
	conn := connectTo(t, server)

	result := runNamespaceItems(t, conn)
	assert.Equal(t, "Invalid response from LUA script", result.err)
}

func TestGetNamespaceItemsMalformedJSON(t *testing.T) {
	server := newMockServer(t, standaloneHandler(func(args []string) string {
		if strings.EqualFold(args[0], "EVAL") {
			return arrayWire(bulk(`not json`), bulk(`{}`))
		}
		return ""
	}))
	conn := connectTo(t, server)

	result := runNamespaceItems(t, conn)
	assert.Equal(t, "Invalid response from LUA script", result.err)
}

func TestGetNamespaceItemsServerError(t *testing.T) {
	server := newMockServer(t, standaloneHandler(func(args []string) string {
		if strings.EqualFold(args[0], "EVAL") {
			return errReply("ERR Error running script")
		}
		return ""
	}))
	conn := connectTo(t, server)

	result := runNamespaceItems(t, conn)
	assert.Contains(t, result.err, "Error running script")
}
