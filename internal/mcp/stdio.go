package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"

	"issueshepherd/server/internal/jsonrpc"
	"issueshepherd/server/internal/observability"
)

// maxLineBytes bounds a single JSON-RPC message on the wire.
const maxLineBytes = 10 * 1024 * 1024

// ServeStdio runs the line-delimited JSON-RPC loop until the input stream
// closes or the context is cancelled. Requests are processed sequentially;
// stdout carries protocol messages only, so all logging goes through the
// observability package.
func ServeStdio(ctx context.Context, h *Handler, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	writer := bufio.NewWriter(out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req jsonrpc.Request
		if err := json.Unmarshal(line, &req); err != nil {
			if err := writeResponse(writer, &jsonrpc.Response{
				JSONRPC: "2.0",
				Error:   &jsonrpc.Error{Code: ParseError, Message: "Parse error"},
			}); err != nil {
				return err
			}
			continue
		}

		start := time.Now()
		result, rpcErr := h.ProcessRequest(ctx, &req)
		observability.LogRequest(req.Method, req.ID, time.Since(start))

		// Notifications produce no response.
		if req.ID == nil {
			continue
		}

		resp := &jsonrpc.Response{JSONRPC: "2.0", ID: req.ID}
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			resp.Result = result
		}
		if err := writeResponse(writer, resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func writeResponse(w *bufio.Writer, resp *jsonrpc.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		observability.LogError("marshal response", err)
		data, _ = json.Marshal(&jsonrpc.Response{
			JSONRPC: "2.0",
			ID:      resp.ID,
			Error:   &jsonrpc.Error{Code: InternalError, Message: "failed to serialize response"},
		})
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
