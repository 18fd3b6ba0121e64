// Package connection provides server connectivity for credgate-cli.
package connection

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// SocketClient talks to the server's local management socket. The
// protocol is one command per connection: a single request line, a
// response terminated by the server closing its end.
type SocketClient struct {
	path    string
	timeout time.Duration
}

// NewSocketClient creates a client for the given Unix socket path.
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		path:    socketPath,
		timeout: 10 * time.Second,
	}
}

// Execute sends one command and returns the full raw response.
func (c *SocketClient) Execute(cmd string, args ...string) (string, error) {
	conn, err := net.DialTimeout("unix", c.path, c.timeout)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", c.path, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	line := cmd
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(data), nil
}

// Reply is a parsed management-socket response.
type Reply struct {
	OK     bool
	Reason string            // set when the status line is ERR
	Fields map[string]string // key: value lines after the status line
}

// ParseReply parses a raw socket response. The first line is "OK" or
// "ERR <reason>"; any following "key: value" lines become Fields.
func ParseReply(raw string) (*Reply, error) {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty response")
	}

	reply := &Reply{Fields: make(map[string]string)}
	status := scanner.Text()
	switch {
	case strings.HasPrefix(status, "OK"):
		reply.OK = true
	case strings.HasPrefix(status, "ERR"):
		reply.Reason = strings.TrimSpace(strings.TrimPrefix(status, "ERR"))
	default:
		return nil, fmt.Errorf("malformed status line: %q", status)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			// Free-form detail line, e.g. "shutting down"
			reply.Fields[strings.TrimSpace(line)] = ""
			continue
		}
		reply.Fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return reply, scanner.Err()
}
