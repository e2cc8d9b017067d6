package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

type tokenKind int

const (
	tokenKey tokenKind = iota
	tokenString
	tokenBool
	tokenNull
	tokenNumber
)

var palette = map[tokenKind]string{
	tokenKey:    Blue,
	tokenString: Green,
	tokenBool:   Yellow,
	tokenNull:   DimCode,
	tokenNumber: Purple,
}

// a quoted string with an optional trailing colon, a literal, or a number
var jsonToken = regexp.MustCompile(`"(?:\\u[0-9a-fA-F]{4}|\\[^u]|[^\\"])*"(?:\s*:)?|\b(?:true|false|null)\b|-?\d+(?:\.\d*)?(?:[eE][+\-]?\d+)?`)

func classify(tok string) tokenKind {
	switch {
	case strings.HasSuffix(tok, ":"):
		return tokenKey
	case tok[0] == '"':
		return tokenString
	case tok == "true", tok == "false":
		return tokenBool
	case tok == "null":
		return tokenNull
	}
	return tokenNumber
}

// HighlightJSON colors keys, strings, literals and numbers in an encoded JSON document.
func HighlightJSON(doc string) string {
	if !Enabled() {
		return doc
	}

	return jsonToken.ReplaceAllStringFunc(doc, func(tok string) string {
		kind := classify(tok)
		if kind == tokenKey {
			return palette[kind] + strings.TrimRight(strings.TrimSuffix(tok, ":"), " \t") + ResetCode + ":"
		}
		return palette[kind] + tok + ResetCode
	})
}

// PrettyFormat renders v as indented, highlighted JSON. Strings and byte slices holding
// JSON are re-indented; anything else that is not JSON is returned as text.
func PrettyFormat(v any) string {
	var doc string
	switch t := v.(type) {
	case []byte:
		doc = reindent(t)
	case string:
		doc = reindent([]byte(t))
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%+v", v)
		}
		doc = string(b)
	}
	return HighlightJSON(doc)
}

func reindent(raw []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(raw), "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

// PrettyPrint writes PrettyFormat(v) to stdout.
func PrettyPrint(v any) {
	Fprint(os.Stdout, v)
}

func Fprint(w io.Writer, v any) {
	fmt.Fprintln(w, PrettyFormat(v))
}
