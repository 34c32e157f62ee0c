// Package bin converts 32-bit wire values to and from bytes in the
// host's byte order, which is the order the Wayland protocol uses.
package bin

import (
	"io"
	"unsafe"
)

// Bytes returns the in-memory representation of v.
func Bytes[T ~int32 | ~uint32](v T) [4]byte {
	return *(*[4]byte)(unsafe.Pointer(&v))
}

// Value is the inverse of Bytes.
func Value[T ~int32 | ~uint32](data [4]byte) T {
	return *(*T)(unsafe.Pointer(&data))
}

// Read reads one value from r. It returns io.EOF only if nothing at
// all could be read.
func Read[T ~int32 | ~uint32](r io.Reader) (T, error) {
	var data [4]byte
	_, err := io.ReadFull(r, data[:])
	if err != nil {
		return 0, err
	}

	return Value[T](data), nil
}

func Write[T ~int32 | ~uint32](w io.Writer, v T) error {
	data := Bytes(v)
	n, err := w.Write(data[:])
	if (err == nil) && (n < len(data)) {
		return io.ErrShortWrite
	}
	return err
}
