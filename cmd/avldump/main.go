// Command avldump decodes one AVL frame given as hex or base64 (argument or
// stdin) and prints the result as JSON.
package main

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"avl-svr/internal/codec"
)

var errEmptyInput = errors.New("empty input")

func main() {
	compact := flag.Bool("compact", false, "print single-line JSON")
	format := flag.String("format", "auto", "input encoding: hex, base64 or auto")
	flag.Parse()

	var in string
	if flag.NArg() > 0 {
		in = strings.Join(flag.Args(), "")
	} else {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read stdin:", err)
			os.Exit(1)
		}
		in = string(b)
	}

	if err := dump(os.Stdout, in, *format, !*compact); err != nil {
		fmt.Fprintln(os.Stderr, "avldump:", err)
		os.Exit(1)
	}
}

func dump(w io.Writer, in, format string, indent bool) error {
	data, err := parseInput(in, format)
	if err != nil {
		return err
	}
	pkt, err := codec.Decode(data)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(pkt)
}

// parseInput decodes in as hex or base64. In auto mode input is hex only
// when marked as such (0x prefix or space-separated byte pairs); otherwise
// base64 is tried before hex. A frame's base64 ("AAAAAA...") is often
// valid hex too.
func parseInput(in, format string) ([]byte, error) {
	trimmed := strings.TrimSpace(in)
	if trimmed == "" {
		return nil, errEmptyInput
	}
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, trimmed)

	switch format {
	case "hex":
		return decodeHex(s)
	case "base64":
		return base64.StdEncoding.DecodeString(s)
	case "auto", "":
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	if hasHexPrefix(s) || isSpacedHex(trimmed) {
		return decodeHex(s)
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("input is neither base64 nor hex: %w", err)
	}
	return b, nil
}

func hasHexPrefix(s string) bool {
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}

func decodeHex(s string) ([]byte, error) {
	if hasHexPrefix(s) {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

// isSpacedHex reports whether s is byte pairs separated by whitespace,
// e.g. "00 00 00 00 00 00 00 36 08 01".
func isSpacedHex(s string) bool {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return false
	}
	for _, f := range fields {
		if len(f) != 2 {
			return false
		}
		if _, err := hex.DecodeString(f); err != nil {
			return false
		}
	}
	return true
}
