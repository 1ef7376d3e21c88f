package worker

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/log"
	"github.com/felixgeelhaar/hdlplay/internal/version"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Handler serves exec over websocket. Each connection is an independent
// channel; requests on one connection are processed in arrival order.
func Handler(exec *Executor, logger *log.Logger) http.Handler {
	logger = log.OrDefault(logger).WithComponent("ws")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()

		logger.Info("controller connected", "remote", r.RemoteAddr, "agent", r.UserAgent())
		if err := serveConn(r.Context(), conn, exec, logger); err != nil {
			logger.WithError(err).Warn("connection ended with error", "remote", r.RemoteAddr)
			return
		}
		logger.Info("controller disconnected", "remote", r.RemoteAddr)
	})
}

func serveConn(parent context.Context, conn *websocket.Conn, exec *Executor, logger *log.Logger) error {
	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	requests := make(chan Request)
	responses := make(chan Response, responseBuffer)

	g, ctx := errgroup.WithContext(parent)

	// reader
	g.Go(func() error {
		defer close(requests)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			req, err := DecodeRequest(data)
			if err != nil {
				logger.WithError(err).Warn("dropping malformed request")
				continue
			}
			select {
			case requests <- req:
			case <-ctx.Done():
				return nil
			}
		}
	})

	// executor
	g.Go(func() error {
		defer close(responses)
		err := exec.Serve(ctx, requests, responses)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	})

	// writer
	g.Go(func() error {
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case resp, ok := <-responses:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(wsWriteWait))
					return nil
				}
				data, err := EncodeResponse(resp)
				if err != nil {
					return err
				}
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return err
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return err
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return err
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return err
				}
			}
		}
	})

	return g.Wait()
}

// wsTransport is the controller side of a websocket channel.
type wsTransport struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	incoming  chan Response
	done      chan struct{}
	stopped   chan struct{}
	readErr   error
	closeOnce sync.Once
}

// Dial connects to an executor served by Handler at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Client, error) {
	header := http.Header{"User-Agent": {version.GetInfo().UserAgent()}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, errors.NewTransportError("dial executor at "+url, err)
	}
	t := &wsTransport{
		conn:     conn,
		incoming: make(chan Response, responseBuffer),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go t.readLoop()
	return NewClient(t), nil
}

// readLoop drains the connection so control frames are answered even when
// no command is in flight. It exits on read errors and on Close, even if
// nobody receives the responses of an abandoned command.
func (t *wsTransport) readLoop() {
	defer close(t.stopped)
	defer close(t.incoming)
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.readErr = err
			return
		}
		resp, err := DecodeResponse(data)
		if err != nil {
			t.readErr = err
			return
		}
		select {
		case t.incoming <- resp:
		case <-t.done:
			return
		}
	}
}

func (t *wsTransport) Send(ctx context.Context, req Request) error {
	data, err := EncodeRequest(req)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Now().Add(wsWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Recv(ctx context.Context) (Response, error) {
	select {
	case resp, ok := <-t.incoming:
		if !ok {
			if t.readErr != nil && !websocket.IsCloseError(t.readErr, websocket.CloseNormalClosure) {
				return nil, t.readErr
			}
			return nil, errClosed()
		}
		return resp, nil
	case <-t.done:
		return nil, errClosed()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteWait))
		t.writeMu.Unlock()
		err = t.conn.Close()
		<-t.stopped
	})
	return err
}
