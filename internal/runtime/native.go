package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/event"

	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

const (
	frameRequest  = "request"
	frameResponse = "response"
	frameEvent    = "event"
)

// nativeFrame is one native-messaging message.
type nativeFrame struct {
	Kind     string                   `json:"kind"`
	ID       string                   `json:"id,omitempty"`
	Request  *protocol.BrokerRequest  `json:"request,omitempty"`
	Response *protocol.BrokerResponse `json:"response,omitempty"`
	Event    *protocol.RuntimeEvent   `json:"event,omitempty"`
}

type frameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (fw *frameWriter) write(f nativeFrame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", f.Kind, err)
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return WriteFrame(fw.w, b)
}

// NativeClient is a Port over a native-messaging stream to a host process.
type NativeClient struct {
	out    *frameWriter
	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan protocol.BrokerResponse
	closed  bool

	feed event.Feed
	done chan struct{}
}

// NewNativeClient starts reading frames from r. The client stops when r
// returns an error; pending and later calls then fail with
// ErrBackendUnavailable.
func NewNativeClient(r io.Reader, w io.Writer) *NativeClient {
	c := &NativeClient{
		out:     &frameWriter{w: w},
		pending: map[string]chan protocol.BrokerResponse{},
		done:    make(chan struct{}),
	}
	go c.readLoop(r)
	return c
}

func (c *NativeClient) SendMessage(ctx context.Context, req protocol.BrokerRequest) (protocol.BrokerResponse, error) {
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan protocol.BrokerResponse, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return protocol.BrokerResponse{}, ErrBackendUnavailable
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.out.write(nativeFrame{Kind: frameRequest, ID: id, Request: &req}); err != nil {
		return protocol.BrokerResponse{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-c.done:
		return protocol.BrokerResponse{}, ErrBackendUnavailable
	case <-ctx.Done():
		return protocol.BrokerResponse{}, ctx.Err()
	}
}

func (c *NativeClient) SubscribeEvents(ch chan<- protocol.RuntimeEvent) event.Subscription {
	return c.feed.Subscribe(ch)
}

// Done is closed once the stream is gone.
func (c *NativeClient) Done() <-chan struct{} { return c.done }

func (c *NativeClient) readLoop(r io.Reader) {
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	}()

	for {
		payload, err := ReadFrame(r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("native port read failed", "error", err)
			}
			return
		}

		var f nativeFrame
		if err := json.Unmarshal(payload, &f); err != nil {
			log.Warn("native port: invalid frame", "error", err)
			continue
		}

		switch f.Kind {
		case frameResponse:
			if f.Response == nil {
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			c.mu.Unlock()
			if ok {
				select {
				case ch <- *f.Response:
				default:
				}
			}
		case frameEvent:
			if f.Event != nil {
				c.feed.Send(*f.Event)
			}
		}
	}
}

// ServeNative serves a native-messaging stream from a relay by forwarding
// its requests to backend and pushing backend events back. It returns when
// r is exhausted or ctx is done.
func ServeNative(ctx context.Context, r io.Reader, w io.Writer, backend Port) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := &frameWriter{w: w}

	evCh := make(chan protocol.RuntimeEvent, 16)
	sub := backend.SubscribeEvents(evCh)
	defer sub.Unsubscribe()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					log.Warn("native event subscription ended", "error", err)
				}
				return
			case ev := <-evCh:
				if err := out.write(nativeFrame{Kind: frameEvent, Event: &ev}); err != nil {
					log.Error("native port: write event failed", "event", ev.Event, "error", err)
					cancel()
					return
				}
			}
		}
	}()

	frames := make(chan nativeFrame)
	readErr := make(chan error, 1)
	go func() {
		for {
			payload, err := ReadFrame(r)
			if err != nil {
				readErr <- err
				return
			}
			var f nativeFrame
			if err := json.Unmarshal(payload, &f); err != nil {
				log.Warn("native port: invalid frame", "error", err)
				continue
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read native frame: %w", err)
		case f := <-frames:
			if f.Kind != frameRequest || f.Request == nil {
				continue
			}
			wg.Add(1)
			go func(f nativeFrame) {
				defer wg.Done()
				resp, err := backend.SendMessage(ctx, *f.Request)
				if err != nil {
					resp = protocol.BrokerFail(err.Error())
				}
				if err := out.write(nativeFrame{Kind: frameResponse, ID: f.ID, Response: &resp}); err != nil {
					log.Error("native port: write response failed", "type", f.Request.Type, "error", err)
				}
			}(f)
		}
	}
}
