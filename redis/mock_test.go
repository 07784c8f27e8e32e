package redis

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kormik/rediscore/resp"
)

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// mockHandler maps one parsed request to a raw RESP reply.
type mockHandler func(args []string) string

// mockServer is a scripted Redis endpoint on a loopback listener. It
// accepts any number of sequential connections, so reconnect-driven
// flows (sentinel redirects, cluster traversals) can be exercised
// end to end.
type mockServer struct {
	t       *testing.T
	ln      net.Listener
	handler mockHandler

	mu       sync.Mutex
	requests [][]string
}

func newMockServer(t *testing.T, handler mockHandler) *mockServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &mockServer{t: t, ln: ln, handler: handler}
	go s.acceptLoop()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *mockServer) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *mockServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *mockServer) serve(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		v, err := resp.Parse(reader)
		if err != nil {
			return
		}
		arr, ok := v.(resp.Array)
		if !ok {
			return
		}
		args := make([]string, len(arr.Items))
		for i, item := range arr.Items {
			args[i] = item.String()
		}
		s.record(args)

		reply := s.handler(args)
		if reply == "" {
			reply = status("OK")
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

func (s *mockServer) record(args []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, args)
}

// Requests returns a snapshot of everything received so far.
func (s *mockServer) Requests() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// CountCommand returns how many requests started with name.
func (s *mockServer) CountCommand(name string) int {
	count := 0
	for _, req := range s.Requests() {
		if len(req) > 0 && strings.EqualFold(req[0], name) {
			count++
		}
	}
	return count
}

// RESP wire builders.

func status(s string) string   { return "+" + s + "\r\n" }
func errReply(s string) string { return "-" + s + "\r\n" }
func intReply(n int) string    { return fmt.Sprintf(":%d\r\n", n) }
func bulk(s string) string     { return fmt.Sprintf("$%d\r\n%s\r\n", len(s), s) }

// arrayWire wraps already-encoded elements.
func arrayWire(elems ...string) string {
	return fmt.Sprintf("*%d\r\n%s", len(elems), strings.Join(elems, ""))
}

func bulkArray(items ...string) string {
	encoded := make([]string, len(items))
	for i, item := range items {
		encoded[i] = bulk(item)
	}
	return arrayWire(encoded...)
}

func scanWire(cursor string, keys ...string) string {
	return arrayWire(bulk(cursor), bulkArray(keys...))
}

const clusterInfo = "# Server\r\nredis_version:7.0.0\r\nredis_mode:cluster\r\n"

const sentinelInfo = "# Server\r\nredis_version:7.0.0\r\nredis_mode:sentinel\r\n"

// standaloneHandler answers the bootstrap sequence for a plain server
// and defers everything else to extra.
func standaloneHandler(extra mockHandler) mockHandler {
	return func(args []string) string {
		if extra != nil {
			if reply := extra(args); reply != "" {
				return reply
			}
		}
		switch strings.ToUpper(args[0]) {
		case "AUTH", "SELECT":
			return status("OK")
		case "PING":
			return status("PONG")
		case "INFO":
			return bulk(standaloneInfo)
		default:
			return status("OK")
		}
	}
}

// clusterNodeHandler answers like one cluster master holding keys.
// The slots wire is read at call time so tests can fill it in after
// all node ports are known.
func clusterNodeHandler(keys []string, slots *string, extra mockHandler) mockHandler {
	return func(args []string) string {
		if extra != nil {
			if reply := extra(args); reply != "" {
				return reply
			}
		}
		switch strings.ToUpper(args[0]) {
		case "PING":
			return status("PONG")
		case "INFO":
			return bulk(clusterInfo)
		case "CLUSTER":
			return *slots
		case "SCAN":
			return scanWire("0", keys...)
		default:
			return status("OK")
		}
	}
}

func testConfig(port int) ConnectionConfig {
	cfg := DefaultConfig("127.0.0.1", port)
	cfg.ConnectionTimeout = 2 * time.Second
	cfg.ExecuteTimeout = 2 * time.Second
	return cfg
}

// connectTo builds a connection to the mock and tears it down with the
// test.
func connectTo(t *testing.T, s *mockServer) *Connection {
	t.Helper()
	conn := NewConnection(testConfig(s.Port()), false)
	if err := conn.Connect(true); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(conn.Disconnect)
	return conn
}
