package redis

import (
	_ "embed"
	"encoding/json"
	"sort"
)

//go:embed scan.lua
var namespaceScript []byte

// NamespaceItem is one top-level namespace and its key count.
type NamespaceItem struct {
	Name  []byte
	Count uint64
}

// NamespaceItems is the result of a server-side namespace
// aggregation: the top-level namespaces with counts, plus the keys
// living outside any namespace.
type NamespaceItems struct {
	Namespaces []NamespaceItem
	RootKeys   [][]byte
}

// NamespaceItemsCallback receives the aggregation result, or an error
// string.
type NamespaceItemsCallback func(items NamespaceItems, err string)

// GetNamespaceItems aggregates the keyspace server-side: an embedded
// Lua script scans dbIndex, splits keys on separator and returns two
// JSON objects, namespace to count and top-level keys. Any deviation
// from that contract is reported as an invalid script response.
func (c *Connection) GetNamespaceItems(callback NamespaceItemsCallback, separator, filter string, dbIndex int) error {
	raw := [][]byte{
		[]byte("eval"), namespaceScript, []byte("0"),
		[]byte(separator), []byte(filter),
	}

	cmd := NewCommandWithCallback(raw, c, func(r Response, errText string) {
		if errText != "" {
			callback(NamespaceItems{}, errText)
			return
		}

		items := r.Array()
		if len(items) != 2 {
			callback(NamespaceItems{}, "Invalid response from LUA script")
			return
		}

		var namespaces map[string]float64
		var rootKeySet map[string]json.RawMessage
		if json.Unmarshal(items[0].Bytes(), &namespaces) != nil ||
			json.Unmarshal(items[1].Bytes(), &rootKeySet) != nil {
			callback(NamespaceItems{}, "Invalid response from LUA script")
			return
		}

		result := NamespaceItems{
			Namespaces: make([]NamespaceItem, 0, len(namespaces)),
			RootKeys:   make([][]byte, 0, len(rootKeySet)),
		}

		names := make([]string, 0, len(namespaces))
		for name := range namespaces {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			result.Namespaces = append(result.Namespaces, NamespaceItem{
				Name:  []byte(name),
				Count: uint64(namespaces[name]),
			})
		}

		keys := make([]string, 0, len(rootKeySet))
		for key := range rootKeySet {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			result.RootKeys = append(result.RootKeys, []byte(key))
		}

		callback(result, "")
	}, dbIndex)

	_, err := c.runCommand(cmd)
	return err
}
