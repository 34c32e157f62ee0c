// Package wire implements the Wayland wire protocol: framing,
// argument encoding, and passing file descriptors over the socket.
package wire

import (
	"errors"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// maxFDs is the most file descriptors a single message can carry.
const maxFDs = 28

// Object represents a Wayland protocol object.
type Object interface {
	// ID returns the object's ID, or 0 if it hasn't been given one
	// yet.
	ID() uint32

	// SetID sets the object's ID.
	SetID(id uint32)

	// Dispatch pertforms the operation requested by the message in the
	// buffer.
	Dispatch(msg *MessageBuffer) error

	// Delete is called when the object's ID has been released.
	Delete()

	// MethodName returns the name of the event or request with the
	// given opcode. It is only used for debugging.
	MethodName(op uint16) string
}

// NewID is an untyped new_id argument, as used by wl_registry.bind.
type NewID struct {
	Interface string
	Version   uint32
	ID        uint32
}

func padding(length uint32) uint32 {
	return (4 - length%4) % 4
}

// unixTee reads from c, but also reads out-of-band data
// simultaneously, writing it into oob.
type unixTee struct {
	c   *net.UnixConn
	oob io.Writer
}

func (t unixTee) Read(buf []byte) (int, error) {
	oob := make([]byte, unix.CmsgSpace(maxFDs*4))
	n, oobn, _, _, err := t.c.ReadMsgUnix(buf, oob)
	_, ooberr := t.oob.Write(oob[:oobn])
	return n, errors.Join(err, ooberr)
}
