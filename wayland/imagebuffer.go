package wayland

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	"deedles.dev/swpresent/format"
	"deedles.dev/swpresent/shm"
	"golang.org/x/sys/unix"
)

// ImageBuffer is a wl_buffer backed by a shared memory file that is
// mapped into the client.
type ImageBuffer struct {
	w, h   int32
	format format.Format
	sf     ShmFormat
	shm    *Shm
	pool   *ShmPool
	buf    *Buffer
	file   *os.File
	mmap   shm.Mmap
	busy   bool
}

func NewImageBuffer(s *Shm, f format.Format, w, h int32) (buf *ImageBuffer, err error) {
	sf, ok := ShmFormatFor(f)
	if !ok {
		return nil, format.UnsupportedFormatError{Format: f}
	}

	defer func() {
		if err != nil {
			buf.Destroy()
		}
	}()

	buf = &ImageBuffer{
		w:      w,
		h:      h,
		format: f,
		sf:     sf,
		shm:    s,
	}

	file, err := shm.Create()
	if err != nil {
		return buf, fmt.Errorf("create SHM file: %w", err)
	}
	buf.file = file

	err = buf.file.Truncate(int64(buf.Len()))
	if err != nil {
		return buf, fmt.Errorf("truncate SHM file: %w", err)
	}

	mmap, err := shm.MapShared(file, int(buf.Len()), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return buf, fmt.Errorf("mmap SHM file: %w", err)
	}
	buf.mmap = mmap

	buf.pool = buf.shm.CreatePool(file, int32(len(buf.mmap)))
	buf.createBuffer()

	return buf, nil
}

func (s *ImageBuffer) createBuffer() {
	s.buf = s.pool.CreateBuffer(0, s.w, s.h, s.Stride(), s.sf)
	s.buf.Release = func() { s.busy = false }
	s.busy = false
}

// destroyBuffer destroys the wl_buffer. A release that arrives for it
// afterwards must not mark its replacement as free.
func (s *ImageBuffer) destroyBuffer() {
	s.buf.Release = nil
	s.buf.Destroy()
	s.buf = nil
}

func (s *ImageBuffer) Destroy() {
	if s.mmap != nil {
		s.mmap.Unmap()
		s.mmap = nil
	}
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	if s.buf != nil {
		s.destroyBuffer()
	}
	if s.pool != nil {
		s.pool.Destroy()
		s.pool = nil
	}
}

func (s *ImageBuffer) Buffer() *Buffer {
	return s.buf
}

// Busy reports whether the compositor may still be reading the
// buffer.
func (s *ImageBuffer) Busy() bool {
	return s.busy
}

// Stride returns the distance between rows in bytes.
func (s *ImageBuffer) Stride() int32 {
	return s.w * int32(format.BytesPerPixel(s.format))
}

func (s *ImageBuffer) Len() int32 {
	return s.Stride() * s.h
}

func (s *ImageBuffer) Cap() int32 {
	return int32(cap(s.mmap))
}

func (s *ImageBuffer) Bounds() image.Rectangle {
	return image.Rect(
		0,
		0,
		int(s.w),
		int(s.h),
	)
}

// Bytes returns the mapped pixel memory.
func (s *ImageBuffer) Bytes() []byte {
	return s.mmap
}

func (s *ImageBuffer) Resize(w, h int32) error {
	if (w == s.w) && (h == s.h) {
		return nil
	}

	s.w = w
	s.h = h
	if s.Len() <= s.Cap() {
		s.mmap = s.mmap[:s.Len()]
		s.destroyBuffer()
		s.createBuffer()
		return nil
	}

	err := s.file.Truncate(int64(s.Len()))
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	err = s.mmap.Unmap()
	if err != nil {
		return fmt.Errorf("unmap: %w", err)
	}
	s.mmap = nil
	mmap, err := shm.MapShared(s.file, int(s.Len()), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return fmt.Errorf("mmap: %w", err)
	}
	s.mmap = mmap

	s.destroyBuffer()
	s.pool.Resize(s.Len())
	s.createBuffer()

	return nil
}

// Image returns an image that reads and writes the buffer's memory
// directly.
func (s *ImageBuffer) Image() (draw.Image, error) {
	return format.Image(s.format, s.mmap, int(s.w), int(s.w), int(s.h))
}
