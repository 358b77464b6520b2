// ABOUTME: Newline-delimited JSON-RPC over stdin/stdout for local MCP clients
// ABOUTME: The whole stream is a single connection for the authorization gate

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// ServeStdio reads one JSON-RPC message per line from r and writes one
// response per line to w until r is exhausted or ctx is canceled. The
// connection's session is released on return.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	conn := "stdio-" + uuid.New().String()
	defer s.release(context.WithoutCancel(ctx), conn)

	s.logger.Info("serving MCP over stdio", "conn", conn)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxRequestBodySize)
	enc := json.NewEncoder(w)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				scanErr <- nil
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				err := <-scanErr
				if errors.Is(err, bufio.ErrTooLong) {
					return fmt.Errorf("reading stdio: message exceeds %d bytes", MaxRequestBodySize)
				}
				if err != nil {
					return fmt.Errorf("reading stdio: %w", err)
				}
				s.logger.Info("stdio closed", "conn", conn)
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			resp, respond := s.handleLine(ctx, conn, []byte(line))
			if !respond {
				continue
			}
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("writing stdio: %w", err)
			}
		}
	}
}

// handleLine processes one message. respond is false for notifications.
func (s *Server) handleLine(ctx context.Context, conn string, line []byte) (resp JSONRPCResponse, respond bool) {
	var req JSONRPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   &JSONRPCError{Code: JSONRPCParseError, Message: "invalid JSON"},
		}, true
	}
	if req.JSONRPC != "2.0" {
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &JSONRPCError{Code: JSONRPCInvalidRequest, Message: "invalid JSON-RPC version"},
		}, true
	}
	if req.isNotification() {
		s.logger.Debug("accepted MCP notification", "method", req.Method, "conn", conn)
		return JSONRPCResponse{}, false
	}

	s.logger.Debug("MCP request", "method", req.Method, "conn", conn)
	return s.handleRequest(ctx, conn, req), true
}
