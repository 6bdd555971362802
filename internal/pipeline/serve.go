package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultSession is the session used by line requests that name none, so a
// single stdio client gets one continuous conversation.
const DefaultSession = "default"

// maxLineSize bounds one request line. Longer lines are discarded and
// answered with errLineTooLong.
const maxLineSize = 1 << 20

const errLineTooLong = "invalid request: line too long"

// Request is one line of the line protocol.
type Request struct {
	Query   *string `json:"query"`
	Session string  `json:"session,omitempty"`
}

// Response is one line written back. Exactly one of Response and Error is set.
type Response struct {
	Response []string `json:"response,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Serve reads one JSON request per line from r and writes one JSON response
// per line to w, in order, until r is exhausted or ctx is done. A malformed
// line or a failed turn produces an error response and the loop continues.
// Serve returns nil at end of input.
func (p *Pipeline) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan requestLine)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		br := bufio.NewReaderSize(r, 64*1024)
		for {
			line, err := readLine(br, maxLineSize)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	p.logger.Info("ready", "transport", "lines")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return fmt.Errorf("pipeline: read: %w", err)
				default:
				}
				return ctx.Err()
			}
			var resp Response
			switch {
			case line.tooLong:
				p.logger.Warn("request line dropped", "limit", maxLineSize)
				resp = Response{Error: errLineTooLong}
			case strings.TrimSpace(line.text) == "":
				continue
			default:
				resp = p.handleLine(ctx, line.text)
			}
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("pipeline: write: %w", err)
			}
			if err := bw.Flush(); err != nil {
				return fmt.Errorf("pipeline: write: %w", err)
			}
		}
	}
}

type requestLine struct {
	text    string
	tooLong bool
}

// readLine returns the next line without its line ending. A line longer than
// limit is consumed to its end and reported as tooLong with no text. A final
// line without a newline is returned before io.EOF.
func readLine(br *bufio.Reader, limit int) (requestLine, error) {
	var (
		buf     []byte
		tooLong bool
		read    bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		read = read || len(chunk) > 0
		if !tooLong {
			if len(buf)+len(chunk) > limit+len("\r\n") {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && read:
		case err != nil:
			return requestLine{}, err
		}
		text := strings.TrimSuffix(strings.TrimSuffix(string(buf), "\n"), "\r")
		if tooLong || len(text) > limit {
			return requestLine{tooLong: true}, nil
		}
		return requestLine{text: text}, nil
	}
}

func (p *Pipeline) handleLine(ctx context.Context, line string) Response {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return Response{Error: "invalid request: " + err.Error()}
	}
	if req.Query == nil {
		return Response{Error: `invalid request: missing "query"`}
	}
	id := req.Session
	if id == "" {
		id = DefaultSession
	}
	ans, err := p.Ask(ctx, id, *req.Query)
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{Response: ans.Texts()}
}
