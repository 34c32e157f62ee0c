package wire

import (
	"fmt"
)

// UnknownOpError is returned by Object.Dispatch if it is given a
// message with an invalid opcode.
type UnknownOpError struct {
	Interface string
	Type      string
	Op        uint16
}

func (err UnknownOpError) Error() string {
	return fmt.Sprintf("unknown %v opcode for %v: %v", err.Type, err.Interface, err.Op)
}

// UnknownSenderIDError is returned by an attempt to dispatch an
// incoming message that indicates a method call on an object that the
// client doesn't know about.
type UnknownSenderIDError struct {
	Msg *MessageBuffer
}

func (err UnknownSenderIDError) Error() string {
	return fmt.Sprintf("unknown sender object ID: %v", err.Msg.Sender())
}

// MessageSizeError is returned when a message's size is outside of
// what its 16-bit header field can describe: smaller than the header
// itself or larger than 0xFFFF bytes.
type MessageSizeError struct {
	Size int
}

func (err MessageSizeError) Error() string {
	if err.Size < 8 {
		return fmt.Sprintf("message size %v is smaller than its header", err.Size)
	}
	return fmt.Sprintf("message is too long: %v bytes", err.Size)
}
