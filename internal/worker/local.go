package worker

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
)

// responseBuffer bounds the chunks queued between executor and client.
const responseBuffer = 64

// localTransport connects a client to an executor goroutine in the same
// process.
type localTransport struct {
	requests  chan Request
	responses chan Response
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewLocal starts exec in a background goroutine and returns a client
// connected to it. Closing the client stops the goroutine.
func NewLocal(exec *Executor) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	t := &localTransport{
		requests:  make(chan Request),
		responses: make(chan Response, responseBuffer),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		_ = exec.Serve(ctx, t.requests, t.responses)
	}()
	return NewClient(t)
}

func (t *localTransport) Send(ctx context.Context, req Request) error {
	select {
	case t.requests <- req:
		return nil
	case <-t.done:
		return errClosed()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *localTransport) Recv(ctx context.Context) (Response, error) {
	select {
	case resp := <-t.responses:
		return resp, nil
	case <-t.done:
		return nil, errClosed()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *localTransport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		<-t.done
	})
	return nil
}

func errClosed() error {
	return errors.New(errors.ErrCodeChannelClosed, "executor channel is closed")
}
