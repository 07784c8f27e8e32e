package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/kormik/rediscore/internal/serializer"
	"github.com/kormik/rediscore/resp"
)

var (
	colorStatus  = color.New(color.FgHiBlue)
	colorInteger = color.New(color.FgHiGreen)
	colorError   = color.New(color.FgRed, color.Bold)
	colorNull    = color.New(color.FgHiBlack)
	colorIndex   = color.New(color.FgHiBlack)
)

type printOpts struct {
	codec  serializer.Codec
	indent string
}

// stdoutIsTerminal gates colored output, matching redis-cli behavior
// when piping.
func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// printValue renders one reply value. Bulk strings run through the
// configured codec first; payloads the codec rejects print raw.
func printValue(w io.Writer, v resp.Value, opts printOpts) {
	useColor := stdoutIsTerminal()

	switch val := v.(type) {
	case nil:
		fmt.Fprintln(w)
	case resp.SimpleString:
		printScalar(w, val.Val, colorStatus, useColor)
	case resp.Integer:
		printScalar(w, "(integer) "+val.String(), colorInteger, useColor)
	case resp.Error:
		printScalar(w, "(error) "+val.Val, colorError, useColor)
	case resp.Null:
		printScalar(w, "(nil)", colorNull, useColor)
	case resp.BulkString:
		payload := val.Val
		if opts.codec != nil {
			if decoded, err := opts.codec.Decode(payload); err == nil {
				payload = decoded
			}
		}
		fmt.Fprintf(w, "%q\n", payload)
	case resp.Array:
		if len(val.Items) == 0 {
			printScalar(w, "(empty array)", colorNull, useColor)
			return
		}
		for i, item := range val.Items {
			index := fmt.Sprintf("%s%d) ", opts.indent, i+1)
			if useColor {
				colorIndex.Fprint(w, index)
			} else {
				fmt.Fprint(w, index)
			}
			nested := opts
			nested.indent = opts.indent + "   "
			printValue(w, item, nested)
		}
	}
}

func printScalar(w io.Writer, text string, c *color.Color, useColor bool) {
	if useColor {
		c.Fprintln(w, text)
	} else {
		fmt.Fprintln(w, text)
	}
}
