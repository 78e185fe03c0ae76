package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"kiln/internal/api"
)

// dataPrefix marks payload-carrying lines; anything else on the wire
// (keep-alives, comments) is ignored.
const dataPrefix = "data: "

const readChunkSize = 4 * 1024

// FrameKind discriminates the decoded frame union.
type FrameKind int

const (
	// FrameToken carries one text fragment; decoding continues.
	FrameToken FrameKind = iota
	// FrameDone carries the fully assembled text and terminates the decode.
	FrameDone
	// FrameError carries a failure message plus whatever partial text the
	// server assembled, and terminates the decode.
	FrameError
)

// Frame is one decoded unit of the generation stream.
type Frame struct {
	Kind     FrameKind
	Token    string // FrameToken
	Text     string // FrameDone: full text; FrameError: partial text
	Provider string // FrameDone
	Message  string // FrameError
}

// ProtocolError reports an explicit error frame sent by the server.
type ProtocolError struct {
	Message string
	Partial string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("generation stream failed: %s", e.Message)
}

// TruncatedError reports a stream that ended without a done or error frame.
type TruncatedError struct {
	Partial string
}

func (e *TruncatedError) Error() string {
	return "generation stream ended before completion"
}

// ErrTruncated matches TruncatedError in errors.Is checks.
var ErrTruncated = errors.New("stream truncated")

func (e *TruncatedError) Is(target error) bool { return target == ErrTruncated }

// Decode consumes r chunk by chunk and emits structured frames as soon as
// complete lines are available. Lines without the data prefix are skipped, as
// are lines whose payload fails to parse; a malformed line never aborts the
// decode.
//
// Decode returns nil after a done frame, a *ProtocolError after an error
// frame (the frame is emitted first), and a *TruncatedError carrying the
// accumulated partial text when the transport ends without a terminal frame.
// Cancelling ctx stops further reads and returns ctx.Err(); no error frame is
// emitted for cancellation.
func Decode(ctx context.Context, r io.Reader, emit func(Frame)) error {
	var pending []byte
	var assembled strings.Builder
	chunk := make([]byte, readChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)
			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				line := string(pending[:idx])
				pending = pending[idx+1:]
				if done, err := decodeLine(line, &assembled, emit); done {
					return err
				}
			}
		}

		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if !errors.Is(readErr, io.EOF) {
				return fmt.Errorf("read stream: %w", readErr)
			}
			// Flush a final unterminated line before declaring truncation.
			if len(pending) > 0 {
				if done, err := decodeLine(string(pending), &assembled, emit); done {
					return err
				}
			}
			return &TruncatedError{Partial: assembled.String()}
		}
	}
}

// decodeLine parses one candidate line. The bool result reports whether the
// decode is finished; the error is the decode's final result in that case.
func decodeLine(line string, assembled *strings.Builder, emit func(Frame)) (bool, error) {
	line = strings.TrimRight(line, "\r")
	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return false, nil
	}

	var event api.StreamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		// Malformed payloads are skipped, never fatal.
		return false, nil
	}

	switch {
	case event.Error != "":
		partial := event.PartialText
		if partial == "" {
			partial = assembled.String()
		}
		if emit != nil {
			emit(Frame{Kind: FrameError, Message: event.Error, Text: partial})
		}
		return true, &ProtocolError{Message: event.Error, Partial: partial}
	case event.Done:
		if emit != nil {
			emit(Frame{Kind: FrameDone, Text: event.FullText, Provider: event.Provider})
		}
		return true, nil
	case event.Token != "":
		assembled.WriteString(event.Token)
		if emit != nil {
			emit(Frame{Kind: FrameToken, Token: event.Token})
		}
	}
	return false, nil
}
