package wayland

import (
	"os"
	"sync"
	"testing"

	"deedles.dev/swpresent/wire"
)

type remote struct {
	id uint32
}

func (r *remote) ID() uint32                             { return r.id }
func (r *remote) SetID(id uint32)                        { r.id = id }
func (r *remote) Dispatch(msg *wire.MessageBuffer) error { return nil }
func (r *remote) Delete()                                {}
func (r *remote) MethodName(op uint16) string            { return "" }

type fakeBuffer struct {
	pool          uint32
	offset        int32
	width, height int32
	stride        int32
	format        ShmFormat
}

// fakeCompositor is just enough of a Wayland compositor to drive a
// Window: it advertises globals, configures toplevels, and records
// the contents of every committed buffer.
type fakeCompositor struct {
	t    *testing.T
	conn *wire.Conn

	m         sync.Mutex
	globals   []string
	formats   []ShmFormat
	width     int32
	height    int32
	noRelease bool

	ifaces     map[uint32]string
	pools      map[uint32]*os.File
	buffers    map[uint32]fakeBuffer
	attached   uint32
	xdgSurface uint32
	toplevel   uint32
	configured bool
	serial     uint32
	acked      []uint32
	frames     [][]byte
	destroyed  []string
	title      string
	appID      string
}

func startCompositor(t *testing.T, setup func(*fakeCompositor)) (*Client, *fakeCompositor) {
	t.Helper()

	cc, sc, err := wire.Pair()
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}

	fc := fakeCompositor{
		t:       t,
		conn:    sc,
		globals: []string{compositorInterface, shmInterface, xdgWmBaseInterface},
		formats: []ShmFormat{ShmFormatARGB8888, ShmFormatXRGB8888, ShmFormatABGR8888},
		width:   320,
		height:  200,
		ifaces:  map[uint32]string{1: displayInterface},
		pools:   make(map[uint32]*os.File),
		buffers: make(map[uint32]fakeBuffer),
	}
	if setup != nil {
		setup(&fc)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		fc.run()
	}()

	client := NewClient(cc)
	t.Cleanup(func() {
		client.Close()
		sc.Close()
		<-done
		for _, f := range fc.pools {
			f.Close()
		}
	})

	return client, &fc
}

func (fc *fakeCompositor) run() {
	for {
		msg, err := wire.ReadMessage(fc.conn)
		if err != nil {
			return
		}

		fc.m.Lock()
		fc.handle(msg)
		fc.m.Unlock()
	}
}

func (fc *fakeCompositor) send(id uint32, op uint16, args ...any) {
	err := wire.NewRequest(&remote{id: id}, op, "event", args...).Build(fc.conn)
	if err != nil {
		fc.t.Errorf("send event %v to %v: %v", op, id, err)
	}
}

func (fc *fakeCompositor) handle(msg *wire.MessageBuffer) {
	iface := fc.ifaces[msg.Sender()]
	op := msg.Op()

	switch iface {
	case displayInterface:
		switch op {
		case 0:
			id := msg.ReadUint()
			fc.send(id, 0, fc.serial)
			fc.send(1, 1, id)
		case 1:
			id := msg.ReadUint()
			fc.ifaces[id] = registryInterface
			for i, name := range fc.globals {
				fc.send(id, 0, uint32(i+1), name, uint32(4))
			}
		}

	case registryInterface:
		msg.ReadUint()
		nid := msg.ReadNewID()
		fc.ifaces[nid.ID] = nid.Interface
		if nid.Interface == shmInterface {
			for _, f := range fc.formats {
				fc.send(nid.ID, 0, uint32(f))
			}
		}

	case compositorInterface:
		fc.ifaces[msg.ReadUint()] = surfaceInterface

	case shmInterface:
		id := msg.ReadUint()
		fc.ifaces[id] = shmPoolInterface
		fc.pools[id] = msg.ReadFile()
		msg.ReadInt()

	case shmPoolInterface:
		switch op {
		case 0:
			id := msg.ReadUint()
			fc.ifaces[id] = bufferInterface
			fc.buffers[id] = fakeBuffer{
				pool:   msg.Sender(),
				offset: msg.ReadInt(),
				width:  msg.ReadInt(),
				height: msg.ReadInt(),
				stride: msg.ReadInt(),
				format: ShmFormat(msg.ReadUint()),
			}
		case 1:
			fc.destroy(msg.Sender())
		}

	case bufferInterface:
		delete(fc.buffers, msg.Sender())
		fc.destroy(msg.Sender())

	case surfaceInterface:
		switch op {
		case 0:
			fc.destroy(msg.Sender())
		case 1:
			fc.attached = msg.ReadUint()
		case 6:
			fc.commit()
		}

	case xdgWmBaseInterface:
		if op == 2 {
			fc.xdgSurface = msg.ReadUint()
			fc.ifaces[fc.xdgSurface] = xdgSurfaceInterface
		}

	case xdgSurfaceInterface:
		switch op {
		case 0:
			fc.destroy(msg.Sender())
		case 1:
			fc.toplevel = msg.ReadUint()
			fc.ifaces[fc.toplevel] = xdgToplevelInterface
		case 4:
			fc.acked = append(fc.acked, msg.ReadUint())
		}

	case xdgToplevelInterface:
		switch op {
		case 0:
			fc.destroy(msg.Sender())
		case 2:
			fc.title = msg.ReadString()
		case 3:
			fc.appID = msg.ReadString()
		}
	}

	if err := msg.Err(); err != nil {
		fc.t.Errorf("decode %v request %v: %v", iface, op, err)
	}
}

func (fc *fakeCompositor) destroy(id uint32) {
	fc.destroyed = append(fc.destroyed, fc.ifaces[id])
	delete(fc.ifaces, id)
	fc.send(1, 1, id)
}

func (fc *fakeCompositor) commit() {
	if !fc.configured {
		fc.configured = true
		fc.sendConfigure(fc.width, fc.height)
		return
	}

	id := fc.attached
	fc.attached = 0
	buf, ok := fc.buffers[id]
	if !ok {
		return
	}

	data := make([]byte, buf.stride*buf.height)
	_, err := fc.pools[buf.pool].ReadAt(data, int64(buf.offset))
	if err != nil {
		fc.t.Errorf("read committed buffer: %v", err)
	}
	fc.frames = append(fc.frames, data)

	if !fc.noRelease {
		fc.send(id, 0)
	}
}

func (fc *fakeCompositor) sendConfigure(w, h int32) {
	fc.serial++
	fc.send(fc.toplevel, 0, w, h, []byte{})
	fc.send(fc.xdgSurface, 0, fc.serial)
}

// Configure sends a new size to the toplevel.
func (fc *fakeCompositor) Configure(w, h int32) {
	fc.m.Lock()
	defer fc.m.Unlock()

	fc.sendConfigure(w, h)
}

// Close asks the toplevel to close.
func (fc *fakeCompositor) Close() {
	fc.m.Lock()
	defer fc.m.Unlock()

	fc.send(fc.toplevel, 1)
}

// ReleaseAll releases every buffer.
func (fc *fakeCompositor) ReleaseAll() {
	fc.m.Lock()
	defer fc.m.Unlock()

	for id := range fc.buffers {
		fc.send(id, 0)
	}
}

// Error sends a fatal protocol error.
func (fc *fakeCompositor) Error(code uint32, msg string) {
	fc.m.Lock()
	defer fc.m.Unlock()

	fc.send(1, 0, uint32(1), code, msg)
}

func (fc *fakeCompositor) Frames() [][]byte {
	fc.m.Lock()
	defer fc.m.Unlock()

	return append([][]byte(nil), fc.frames...)
}

func (fc *fakeCompositor) Destroyed() []string {
	fc.m.Lock()
	defer fc.m.Unlock()

	return append([]string(nil), fc.destroyed...)
}
