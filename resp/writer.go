package resp

import (
	"bytes"
	"fmt"
	"io"
)

// WriteCommand encodes args as a RESP multibulk request and writes it
// to w in a single Write call. Every argument is sent as a bulk
// string, so arguments may contain spaces, CRLF, or arbitrary bytes.
func WriteCommand(w io.Writer, args [][]byte) error {
	if len(args) == 0 {
		return fmt.Errorf("empty command")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "*%d\r\n", len(args))
	for _, arg := range args {
		fmt.Fprintf(&buf, "$%d\r\n", len(arg))
		buf.Write(arg)
		buf.WriteString("\r\n")
	}

	_, err := w.Write(buf.Bytes())
	return err
}
