package redis

import (
	"strconv"
	"strings"
)

// scanCursorPosition maps a scan-family command name to the argument
// slot holding the cursor. SCAN and ISCAN take the cursor first;
// HSCAN, SSCAN and ZSCAN take a key first.
var scanCursorPosition = map[string]int{
	"scan":  1,
	"iscan": 1,
	"hscan": 2,
	"sscan": 2,
	"zscan": 2,
}

// ScanCommand is a Command for the cursor-based SCAN family. One
// logical iteration chain clones the command per step, rewriting the
// cursor argument in place.
type ScanCommand struct {
	*Command
	cursor uint64
}

// NewScanCommand wraps raw scan-family argument frames targeting db.
func NewScanCommand(args [][]byte, db int) *ScanCommand {
	return &ScanCommand{Command: NewCommand(args, db)}
}

// IsValidScanCommand reports whether the command name is one of the
// scan family and the cursor argument slot exists.
func (s *ScanCommand) IsValidScanCommand() bool {
	if !s.IsValid() {
		return false
	}
	pos, ok := scanCursorPosition[strings.ToLower(s.PartAsString(0))]
	return ok && pos < len(s.args)
}

// Cursor returns the current iteration cursor.
func (s *ScanCommand) Cursor() uint64 { return s.cursor }

// SetCursor rewrites the cursor argument for the next iteration.
func (s *ScanCommand) SetCursor(cursor uint64) {
	s.cursor = cursor
	pos, ok := scanCursorPosition[strings.ToLower(s.PartAsString(0))]
	if !ok || pos >= len(s.args) {
		return
	}
	s.args[pos] = []byte(strconv.FormatUint(cursor, 10))
}

// Clone returns an independent copy with a fresh future and no
// callback, for re-enqueueing the next iteration step.
func (s *ScanCommand) Clone() *ScanCommand {
	args := make([][]byte, len(s.args))
	for i, a := range s.args {
		args[i] = append([]byte(nil), a...)
	}
	clone := NewScanCommand(args, s.db)
	clone.cursor = s.cursor
	if s.hiPriority {
		clone.MarkAsHiPriority()
	}
	return clone
}

// WithName returns a clone whose command name is replaced, keeping
// all other arguments. Used for the SCAN to ISCAN substitution on
// providers that disable SCAN on clusters.
func (s *ScanCommand) WithName(name string) *ScanCommand {
	clone := s.Clone()
	clone.args[0] = []byte(name)
	return clone
}
