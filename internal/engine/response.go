package engine

import (
	"encoding/json"

	"github.com/chrissnell/domonode/internal/constants"
)

const responseHeader = "HTTP/1.1 200 OK" + crlf + "content-type: application/json" + crlf + crlf

// Response is the JSON document sent back for every inbound exchange.
type Response struct {
	Status  string `json:"status"`
	Title   any    `json:"title"`
	Message any    `json:"message"`
}

func OK(title, message any) Response {
	return Response{Status: constants.StateOK, Title: title, Message: message}
}

func Warning(title, message any) Response {
	return Response{Status: constants.StateWarning, Title: title, Message: message}
}

func Error(title, message any) Response {
	return Response{Status: constants.StateError, Title: title, Message: message}
}

// UnknownCommand is the reply to anything that could not be parsed or
// dispatched.
func UnknownCommand(title any) Response {
	return Error(title, constants.MessageCmdUnknown)
}

// normalized coerces r into a sendable envelope: unknown statuses become
// ERROR and missing fields become empty strings.
func (r Response) normalized() Response {
	switch r.Status {
	case constants.StateOK, constants.StateWarning, constants.StateError:
	default:
		r.Status = constants.StateError
	}
	if r.Title == nil {
		r.Title = ""
	}
	if r.Message == nil {
		r.Message = ""
	}
	return r
}

// Encode returns the JSON body for r.
func (r Response) Encode() []byte {
	r = r.normalized()
	b, err := json.Marshal(r)
	if err != nil {
		b, _ = json.Marshal(Error(constants.MessageCmdUnknown, err.Error()))
	}
	return b
}

// wire returns the full HTTP response for r.
func (r Response) wire() []byte {
	body := r.Encode()
	out := make([]byte, 0, len(responseHeader)+len(body))
	out = append(out, responseHeader...)
	return append(out, body...)
}
