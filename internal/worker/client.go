package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/tree"
)

// Transport carries messages between a controller and an executor.
type Transport interface {
	Send(ctx context.Context, req Request) error
	Recv(ctx context.Context) (Response, error)
	Close() error
}

// Stream identifies an output stream of a tool.
type Stream int

const (
	// Stdout is the standard output stream.
	Stdout Stream = iota
	// Stderr is the standard error stream.
	Stderr
)

// String returns the stream name.
func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// ChunkFunc receives output chunks in arrival order.
type ChunkFunc func(s Stream, data []byte)

// Client is the controller side of the channel. One command is in flight
// at a time.
type Client struct {
	mu        sync.Mutex
	transport Transport
	broken    error
}

// NewClient creates a client over t.
func NewClient(t Transport) *Client {
	return &Client{transport: t}
}

// Run executes tool name on the executor and waits for its terminal
// message. Chunks are passed to onChunk as they arrive. A CommandFailure
// is returned as a PIPE-002 error carrying the executor's message.
func (c *Client) Run(ctx context.Context, name string, args []string, files tree.Tree, onChunk ChunkFunc) (tree.Tree, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return nil, c.broken
	}
	if onChunk == nil {
		onChunk = func(Stream, []byte) {}
	}

	if err := c.transport.Send(ctx, RunCommand{Tool: name, Args: args, Files: files}); err != nil {
		return nil, c.fail(err, "send run request")
	}

	for {
		resp, err := c.transport.Recv(ctx)
		if err != nil {
			return nil, c.fail(err, "receive from executor")
		}
		if IsTerminal(resp) {
			return commandResult(resp)
		}
		switch r := resp.(type) {
		case StdoutChunk:
			onChunk(Stdout, r.Data)
		case StderrChunk:
			onChunk(Stderr, r.Data)
		default:
			return nil, c.fail(errors.New(errors.ErrCodeProtocol, fmt.Sprintf("unexpected response %T", resp)), "receive from executor")
		}
	}
}

func commandResult(resp Response) (tree.Tree, error) {
	if failure, ok := resp.(CommandFailure); ok {
		return nil, errors.NewCommandFailedError(failure.Message)
	}
	return resp.(CommandDone).Tree, nil
}

// LoadPackages forwards a preload request. The executor does not reply.
func (c *Client) LoadPackages(ctx context.Context, names ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return c.broken
	}
	if err := c.transport.Send(ctx, LoadPackages{Names: names}); err != nil {
		return c.fail(err, "send preload request")
	}
	return nil
}

// Close closes the transport.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken == nil {
		c.broken = errors.New(errors.ErrCodeChannelClosed, "executor channel is closed")
	}
	return c.transport.Close()
}

// fail marks the client unusable. After an interrupted exchange the
// responses of the abandoned command could still arrive.
func (c *Client) fail(err error, op string) error {
	if errors.HasCode(err, errors.ErrCodeChannelClosed) {
		c.broken = err
		return err
	}
	c.broken = errors.NewTransportError(op, err)
	return c.broken
}
