package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/chrissnell/domonode/internal/constants"
)

const crlf = "\r\n"

// Kind tells how a Command was obtained.
type Kind int

const (
	// KindUnknown is an unparseable request. Text holds the placeholder or the
	// raw POST body and is only meant for logging and the response title.
	KindUnknown Kind = iota
	KindPath
	KindBody
)

// Command is what a client asked for: a GET target or a decoded POST body.
type Command struct {
	Kind Kind
	Path string
	Body any
	Text string
}

func unknownCommand(text string) Command {
	return Command{Kind: KindUnknown, Text: text}
}

// Title is the value echoed back in the response title.
func (c Command) Title() any {
	switch c.Kind {
	case KindPath:
		return c.Path
	case KindBody:
		return c.Body
	default:
		return c.Text
	}
}

func (c Command) String() string {
	switch c.Kind {
	case KindPath:
		return c.Path
	case KindBody:
		b, err := json.Marshal(c.Body)
		if err != nil {
			return fmt.Sprintf("%v", c.Body)
		}
		return string(b)
	default:
		return c.Text
	}
}

// Framing selects how a POST body is located in the raw request.
type Framing string

const (
	// FramingHeaderBlock takes everything after the first blank line as the
	// body, trimmed to Content-Length when one is sent.
	FramingHeaderBlock Framing = "header-block"

	// FramingLegacyLineCount requires at least 8 CRLF separated lines and
	// decodes the last one.
	FramingLegacyLineCount Framing = "legacy-line-count"
)

const legacyMinLines = 8

// ParseGetRequest extracts the request target from a raw GET request. The
// request line must split on single spaces into exactly three tokens.
func ParseGetRequest(raw []byte) (Command, bool) {
	text := string(raw)
	line, _, _ := strings.Cut(text, crlf)

	tokens := strings.Split(line, " ")
	if len(tokens) != 3 {
		return unknownCommand(constants.MessageCmdUnknown), false
	}
	return Command{Kind: KindPath, Path: tokens[1]}, true
}

// ParsePostRequest extracts and decodes the JSON body of a raw POST request.
// When the body is present but not valid JSON the returned command carries
// the raw body text.
func ParsePostRequest(raw []byte, framing Framing) (Command, bool) {
	var body string
	switch framing {
	case FramingLegacyLineCount:
		lines := strings.Split(string(raw), crlf)
		if len(lines) < legacyMinLines {
			return unknownCommand(constants.MessageCmdUnknown), false
		}
		body = lines[len(lines)-1]
	default:
		var ok bool
		body, ok = splitBody(raw)
		if !ok {
			return unknownCommand(constants.MessageCmdUnknown), false
		}
	}

	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return unknownCommand(body), false
	}
	return Command{Kind: KindBody, Body: v}, true
}

// splitBody returns the non-empty body following the header block.
func splitBody(raw []byte) (string, bool) {
	idx := bytes.Index(raw, []byte(crlf+crlf))
	if idx < 0 {
		return "", false
	}
	body := raw[idx+4:]
	if n, ok := contentLength(raw[:idx]); ok && n < len(body) {
		body = body[:n]
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", false
	}
	return string(body), true
}

// contentLength returns the Content-Length declared in a header block.
func contentLength(header []byte) (int, bool) {
	for _, line := range strings.Split(string(header), crlf)[1:] {
		name, value, found := strings.Cut(line, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// requestMethod returns the first token of the request line.
func requestMethod(raw []byte) string {
	line, _, _ := bytes.Cut(raw, []byte(crlf))
	method, _, _ := bytes.Cut(line, []byte(" "))
	return string(method)
}

// requestComplete reports whether raw holds a full header block and the body
// it declares.
func requestComplete(raw []byte) bool {
	idx := bytes.Index(raw, []byte(crlf+crlf))
	if idx < 0 {
		return false
	}
	n, ok := contentLength(raw[:idx])
	if !ok {
		return true
	}
	return len(raw)-(idx+4) >= n
}

// requestReadable reports whether raw holds enough to parse in mode. A GET
// only needs its request line; a POST needs the header block and its body.
func requestReadable(raw []byte, mode Mode) bool {
	if mode == ModePost {
		return requestComplete(raw)
	}
	if !bytes.Contains(raw, []byte(crlf)) {
		return false
	}
	if mode == ModeAuto && requestMethod(raw) == "POST" {
		return requestComplete(raw)
	}
	return true
}
