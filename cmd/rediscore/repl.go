package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/kormik/rediscore/internal/serializer"
	"github.com/kormik/rediscore/redis"
)

// runRepl drives an interactive session. Plain lines go to the server
// verbatim; lines starting with ":" invoke the client-side helpers
// built on the connection's multi-node operations.
func runRepl(conn *redis.Connection, codec serializer.Codec) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt(conn),
		HistoryFile:     historyPath(),
		InterruptPrompt: "^C",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Printf("Connected to %s:%d (%s mode, v%.1f)\n",
		conn.Config().Host, conn.Config().Port, conn.Mode(), conn.ServerVersion())

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			if quit := runDirective(conn, line, codec); quit {
				return nil
			}
			rl.SetPrompt(prompt(conn))
			continue
		}

		args := tokenize(line)
		r, err := conn.CommandSyncRaw(toFrames(args), -1)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		printValue(os.Stdout, r.Value(), printOpts{codec: codec})
		rl.SetPrompt(prompt(conn))
	}
}

func prompt(conn *redis.Connection) string {
	return fmt.Sprintf("%s:%d[%d]> ", conn.Config().Host, conn.Config().Port, conn.DbIndex())
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.rediscore_history"
}

// runDirective executes one ":" helper. Returns true when the session
// should end.
func runDirective(conn *redis.Connection, line string, codec serializer.Codec) bool {
	parts := tokenize(line)
	done := make(chan struct{})

	switch parts[0] {
	case ":quit", ":exit":
		return true

	case ":keys":
		pattern := "*"
		if len(parts) > 1 {
			pattern = parts[1]
		}
		raw := [][]byte{
			[]byte("scan"), []byte("0"),
			[]byte("MATCH"), []byte(pattern),
			[]byte("COUNT"), []byte("100"),
		}
		total := 0
		err := conn.RetrieveCollectionIncrementally(redis.NewScanCommand(raw, -1),
			func(items [][]byte, errText string, last bool) {
				if errText != "" {
					fmt.Fprintln(os.Stderr, errText)
				}
				for _, key := range items {
					total++
					fmt.Printf("%d) %q\n", total, key)
				}
				if last {
					close(done)
				}
			})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
		<-done

	case ":clusterkeys":
		pattern := "*"
		if len(parts) > 1 {
			pattern = parts[1]
		}
		err := conn.GetClusterKeys(func(keys [][]byte, errText string) {
			if errText != "" {
				fmt.Fprintln(os.Stderr, errText)
			} else {
				for i, key := range keys {
					fmt.Printf("%d) %q\n", i+1, key)
				}
			}
			close(done)
		}, pattern)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
		<-done

	case ":ns":
		separator := ":"
		filter := "*"
		if len(parts) > 1 {
			separator = parts[1]
		}
		if len(parts) > 2 {
			filter = parts[2]
		}
		err := conn.GetNamespaceItems(func(items redis.NamespaceItems, errText string) {
			if errText != "" {
				fmt.Fprintln(os.Stderr, errText)
			} else {
				for _, ns := range items.Namespaces {
					fmt.Printf("%s%s* (%d)\n", ns.Name, separator, ns.Count)
				}
				for _, key := range items.RootKeys {
					fmt.Printf("%q\n", key)
				}
			}
			close(done)
		}, separator, filter, -1)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
		<-done

	case ":flushdb":
		db := conn.DbIndex()
		if len(parts) > 1 {
			parsed, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Fprintln(os.Stderr, "usage: :flushdb [db]")
				return false
			}
			db = parsed
		}
		err := conn.FlushDbKeys(db, func(errText string) {
			if errText != "" {
				fmt.Fprintln(os.Stderr, errText)
			} else {
				fmt.Println("OK")
			}
			close(done)
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
		<-done

	default:
		fmt.Fprintf(os.Stderr, "unknown directive %s (try :keys, :clusterkeys, :ns, :flushdb, :quit)\n", parts[0])
	}

	return false
}
