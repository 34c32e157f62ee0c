// Package wayland is a minimal Wayland client that can show frames in
// an xdg-shell toplevel using wl_shm buffers.
//
// Incoming messages are read on a background goroutine but are only
// dispatched, and outgoing requests only sent, when the Client is
// flushed. A Client and everything created from it must be used from
// a single goroutine.
package wayland

import (
	"errors"
	"fmt"
	"net"

	"deedles.dev/swpresent/internal/cq"
	"deedles.dev/swpresent/internal/debug"
	"deedles.dev/swpresent/internal/objstore"
	"deedles.dev/swpresent/wire"
	"deedles.dev/xsync"
)

// ErrClientClosed is returned when waiting on a Client that has been
// closed.
var ErrClientClosed = errors.New("client closed")

type Client struct {
	// Error, if not nil, is called when the compositor reports a fatal
	// protocol error.
	Error func(DisplayError)

	stop    xsync.Stopper
	conn    *wire.Conn
	objects *objstore.Store
	queue   *cq.Queue[func() error]
	display *Display
	pending int
	err     error
}

// Dial connects to the compositor named by the environment.
func Dial() (*Client, error) {
	c, err := wire.Dial()
	if err != nil {
		return nil, fmt.Errorf("dial compositor: %w", err)
	}

	return NewClient(c), nil
}

// NewClient creates a client that talks over conn. The Client takes
// ownership of conn.
func NewClient(conn *wire.Conn) *Client {
	client := Client{
		conn:    conn,
		objects: objstore.New(1),
		queue:   cq.New[func() error](),
	}
	client.display = &Display{object: object{
		version: 1,
		client:  &client,
		iface:   displayInterface,
		events:  []string{"error", "delete_id"},
	}}
	client.add(client.display)
	go client.listen()

	return &client
}

func (client *Client) listen() {
	for {
		msg, err := wire.ReadMessage(client.conn)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			select {
			case <-client.stop.Done():
			case client.queue.Add() <- func() error { return fmt.Errorf("read message: %w", err) }:
			}
			return
		}

		select {
		case <-client.stop.Done():
			msg.Close()
			return
		case client.queue.Add() <- func() error { return client.dispatch(msg) }:
		}
	}
}

// Display returns the client's wl_display.
func (client *Client) Display() *Display {
	return client.display
}

// Err returns the fatal protocol error reported by the compositor, if
// there has been one.
func (client *Client) Err() error {
	return client.err
}

// Close closes the connection to the compositor.
func (client *Client) Close() error {
	client.stop.Stop()
	client.queue.Stop()
	return client.conn.Close()
}

func (client *Client) add(obj wire.Object) {
	client.objects.Add(obj)
}

func (client *Client) dispatch(msg *wire.MessageBuffer) error {
	defer msg.Close()

	obj := client.objects.Get(msg.Sender())
	if obj == nil {
		return wire.UnknownSenderIDError{Msg: msg}
	}

	err := obj.Dispatch(msg)
	debug.Printf("%v", msg.Debug(obj))
	if err != nil {
		return err
	}
	return msg.Err()
}

// Enqueue queues msg to be sent the next time the client is flushed.
func (client *Client) Enqueue(msg *wire.MessageBuilder) {
	ev := func() error {
		client.pending--
		debug.Printf(" -> %v", msg)
		return msg.Build(client.conn)
	}

	select {
	case <-client.stop.Done():
	case client.queue.Add() <- ev:
		client.pending++
	}
}

func (client *Client) request(sender wire.Object, op uint16, method string, args ...any) {
	client.Enqueue(wire.NewRequest(sender, op, method, args...))
}

// Flush sends every queued request and dispatches the events that
// have arrived so far. It does not wait for more events.
func (client *Client) Flush() error {
	select {
	case <-client.stop.Done():
		return ErrClientClosed
	default:
	}

	var errs []error
	for client.pending > 0 {
		select {
		case <-client.stop.Done():
			return ErrClientClosed
		case events := <-client.queue.Get():
			errs = append(errs, cq.Flush(events)...)
		}
	}

	select {
	case events := <-client.queue.Get():
		errs = append(errs, cq.Flush(events)...)
	default:
	}
	return errors.Join(errs...)
}

// Wait blocks until at least one event or request has been processed.
func (client *Client) Wait() error {
	select {
	case <-client.stop.Done():
		return ErrClientClosed
	case events := <-client.queue.Get():
		return cq.FlushJoined(events)
	}
}

// RoundTrip sends every queued request and processes events until
// the compositor has handled all of them.
func (client *Client) RoundTrip() error {
	var done bool
	client.display.Sync(func(uint32) { done = true })

	var errs []error
	for !done {
		select {
		case <-client.stop.Done():
			return errors.Join(append(errs, ErrClientClosed)...)
		case events := <-client.queue.Get():
			errs = append(errs, cq.Flush(events)...)
		}
		if client.err != nil {
			return errors.Join(errs...)
		}
	}

	// Send anything the events just handled queued up, such as
	// configure acknowledgements.
	errs = append(errs, client.Flush())
	return errors.Join(errs...)
}

// DisplayError is a fatal error reported by the compositor.
type DisplayError struct {
	ObjectID uint32
	Code     uint32
	Message  string
}

func (err DisplayError) Error() string {
	return fmt.Sprintf("protocol error on object %v, code %v: %v", err.ObjectID, err.Code, err.Message)
}

// MissingGlobalError is returned when the compositor doesn't
// advertise an interface the client needs.
type MissingGlobalError struct {
	Interface string
}

func (err MissingGlobalError) Error() string {
	return fmt.Sprintf("compositor does not support %v", err.Interface)
}
