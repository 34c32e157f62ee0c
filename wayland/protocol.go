package wayland

import (
	"fmt"
	"os"

	"deedles.dev/swpresent/internal/set"
	"deedles.dev/swpresent/wire"
	"golang.org/x/exp/maps"
)

const (
	displayInterface     = "wl_display"
	registryInterface    = "wl_registry"
	callbackInterface    = "wl_callback"
	compositorInterface  = "wl_compositor"
	shmInterface         = "wl_shm"
	shmPoolInterface     = "wl_shm_pool"
	bufferInterface      = "wl_buffer"
	surfaceInterface     = "wl_surface"
	xdgWmBaseInterface   = "xdg_wm_base"
	xdgSurfaceInterface  = "xdg_surface"
	xdgToplevelInterface = "xdg_toplevel"
)

// The highest versions of the globals this package knows how to use.
const (
	compositorVersion = 4
	shmVersion        = 1
	xdgWmBaseVersion  = 1
)

// object holds what every protocol object has in common.
type object struct {
	id      uint32
	version uint32
	client  *Client
	iface   string
	events  []string
}

func (obj *object) ID() uint32 {
	return obj.id
}

func (obj *object) SetID(id uint32) {
	obj.id = id
}

func (obj *object) Delete() {}

func (obj *object) MethodName(op uint16) string {
	if int(op) < len(obj.events) {
		return obj.events[op]
	}
	return fmt.Sprintf("event%v", op)
}

func (obj *object) String() string {
	return fmt.Sprintf("%v@%v", obj.iface, obj.id)
}

func (obj *object) unknown(op uint16) error {
	return wire.UnknownOpError{Interface: obj.iface, Type: "event", Op: op}
}

func (obj *object) child(iface string, events ...string) object {
	return object{
		version: obj.version,
		client:  obj.client,
		iface:   iface,
		events:  events,
	}
}

type Display struct {
	object
}

func (display *Display) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		err := DisplayError{
			ObjectID: msg.ReadUint(),
			Code:     msg.ReadUint(),
			Message:  msg.ReadString(),
		}
		client := display.client
		if client.err == nil {
			client.err = err
		}
		if client.Error != nil {
			client.Error(err)
		}
		return err

	case 1:
		display.client.objects.Delete(msg.ReadUint())
		return nil

	default:
		return display.unknown(msg.Op())
	}
}

// Sync asks the compositor to call done once it has handled every
// request sent before it.
func (display *Display) Sync(done func(uint32)) *Callback {
	callback := Callback{object: display.child(callbackInterface, "done"), Done: done}
	display.client.add(&callback)
	display.client.request(display, 0, "sync", &callback)
	return &callback
}

// GetRegistry creates a registry object.
func (display *Display) GetRegistry() *Registry {
	registry := Registry{
		object:  display.child(registryInterface, "global", "global_remove"),
		globals: make(map[uint32]Global),
	}
	display.client.add(&registry)
	display.client.request(display, 1, "get_registry", &registry)
	return &registry
}

type Callback struct {
	object
	Done func(data uint32)
}

func (c *Callback) Dispatch(msg *wire.MessageBuffer) error {
	if msg.Op() != 0 {
		return c.unknown(msg.Op())
	}

	data := msg.ReadUint()
	if c.Done != nil {
		c.Done(data)
	}
	return nil
}

// Global is an interface advertised by the compositor.
type Global struct {
	Interface string
	Version   uint32
}

type Registry struct {
	object
	globals map[uint32]Global
}

func (registry *Registry) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		name := msg.ReadUint()
		global := Global{Interface: msg.ReadString(), Version: msg.ReadUint()}
		registry.globals[name] = global
		return nil
	case 1:
		delete(registry.globals, msg.ReadUint())
		return nil
	default:
		return registry.unknown(msg.Op())
	}
}

// Globals returns a copy of the globals advertised so far, keyed by
// name.
func (registry *Registry) Globals() map[uint32]Global {
	return maps.Clone(registry.globals)
}

// Find returns the lowest-named global implementing iface.
func (registry *Registry) Find(iface string) (name uint32, global Global, ok bool) {
	for n, g := range registry.globals {
		if g.Interface != iface {
			continue
		}
		if !ok || (n < name) {
			name, global, ok = n, g, true
		}
	}
	return name, global, ok
}

func (registry *Registry) bind(name uint32, obj wire.Object, iface string, version uint32) {
	registry.client.add(obj)
	registry.client.request(registry, 0, "bind", name, wire.NewID{
		Interface: iface,
		Version:   version,
		ID:        obj.ID(),
	})
}

// bindGlobal binds the global implementing iface at the highest
// version both sides support.
func (registry *Registry) bindGlobal(iface string, highest uint32, bind func(object) wire.Object) (wire.Object, error) {
	name, global, ok := registry.Find(iface)
	if !ok {
		return nil, MissingGlobalError{Interface: iface}
	}

	base := registry.child(iface)
	base.version = min(global.Version, highest)
	obj := bind(base)
	registry.bind(name, obj, iface, base.version)
	return obj, nil
}

type Compositor struct {
	object
}

func BindCompositor(registry *Registry) (*Compositor, error) {
	obj, err := registry.bindGlobal(compositorInterface, compositorVersion, func(base object) wire.Object {
		return &Compositor{object: base}
	})
	if err != nil {
		return nil, err
	}
	return obj.(*Compositor), nil
}

func (c *Compositor) Dispatch(msg *wire.MessageBuffer) error {
	return c.unknown(msg.Op())
}

func (c *Compositor) CreateSurface() *Surface {
	surface := Surface{object: c.child(surfaceInterface, "enter", "leave")}
	c.client.add(&surface)
	c.client.request(c, 0, "create_surface", &surface)
	return &surface
}

type Shm struct {
	object

	// Format, if not nil, is called for each format the compositor
	// advertises.
	Format func(ShmFormat)

	formats set.Set[ShmFormat]
}

func BindShm(registry *Registry) (*Shm, error) {
	obj, err := registry.bindGlobal(shmInterface, shmVersion, func(base object) wire.Object {
		base.events = []string{"format"}
		return &Shm{object: base, formats: set.New[ShmFormat]()}
	})
	if err != nil {
		return nil, err
	}
	return obj.(*Shm), nil
}

func (shm *Shm) Dispatch(msg *wire.MessageBuffer) error {
	if msg.Op() != 0 {
		return shm.unknown(msg.Op())
	}

	f := ShmFormat(msg.ReadUint())
	shm.formats.Add(f)
	if shm.Format != nil {
		shm.Format(f)
	}
	return nil
}

// HasFormat reports whether the compositor has advertised f.
func (shm *Shm) HasFormat(f ShmFormat) bool {
	return shm.formats.Has(f)
}

func (shm *Shm) CreatePool(file *os.File, size int32) *ShmPool {
	pool := ShmPool{object: shm.child(shmPoolInterface)}
	shm.client.add(&pool)
	shm.client.request(shm, 0, "create_pool", &pool, file, size)
	return &pool
}

type ShmPool struct {
	object
}

func (pool *ShmPool) Dispatch(msg *wire.MessageBuffer) error {
	return pool.unknown(msg.Op())
}

func (pool *ShmPool) CreateBuffer(offset, width, height, stride int32, format ShmFormat) *Buffer {
	buf := Buffer{object: pool.child(bufferInterface, "release")}
	pool.client.add(&buf)
	pool.client.request(pool, 0, "create_buffer", &buf, offset, width, height, stride, uint32(format))
	return &buf
}

func (pool *ShmPool) Destroy() {
	pool.client.request(pool, 1, "destroy")
}

func (pool *ShmPool) Resize(size int32) {
	pool.client.request(pool, 2, "resize", size)
}

type Buffer struct {
	object

	// Release, if not nil, is called when the compositor is done
	// reading the buffer.
	Release func()
}

func (buf *Buffer) Dispatch(msg *wire.MessageBuffer) error {
	if msg.Op() != 0 {
		return buf.unknown(msg.Op())
	}

	if buf.Release != nil {
		buf.Release()
	}
	return nil
}

func (buf *Buffer) Destroy() {
	buf.client.request(buf, 0, "destroy")
}

type Surface struct {
	object
}

func (s *Surface) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0, 1:
		msg.ReadUint()
		return nil
	default:
		return s.unknown(msg.Op())
	}
}

func (s *Surface) Destroy() {
	s.client.request(s, 0, "destroy")
}

// Attach attaches buf as the surface's pending content. A nil buf
// removes the surface's content.
func (s *Surface) Attach(buf *Buffer, x, y int32) {
	s.client.request(s, 1, "attach", buf, x, y)
}

func (s *Surface) Damage(x, y, width, height int32) {
	s.client.request(s, 2, "damage", x, y, width, height)
}

// Frame asks the compositor to call done when it is a good time to
// draw a new frame.
func (s *Surface) Frame(done func(uint32)) *Callback {
	callback := Callback{object: s.child(callbackInterface, "done"), Done: done}
	s.client.add(&callback)
	s.client.request(s, 3, "frame", &callback)
	return &callback
}

func (s *Surface) Commit() {
	s.client.request(s, 6, "commit")
}

// DamageBuffer marks a region of the attached buffer as changed. It
// falls back to Damage on compositors older than version 4, where
// buffer and surface coordinates are the same without a scale or
// transform.
func (s *Surface) DamageBuffer(x, y, width, height int32) {
	if s.version < 4 {
		s.Damage(x, y, width, height)
		return
	}
	s.client.request(s, 9, "damage_buffer", x, y, width, height)
}

type XdgWmBase struct {
	object
}

func BindXdgWmBase(registry *Registry) (*XdgWmBase, error) {
	obj, err := registry.bindGlobal(xdgWmBaseInterface, xdgWmBaseVersion, func(base object) wire.Object {
		base.events = []string{"ping"}
		return &XdgWmBase{object: base}
	})
	if err != nil {
		return nil, err
	}
	return obj.(*XdgWmBase), nil
}

func (wm *XdgWmBase) Dispatch(msg *wire.MessageBuffer) error {
	if msg.Op() != 0 {
		return wm.unknown(msg.Op())
	}

	wm.client.request(wm, 3, "pong", msg.ReadUint())
	return nil
}

func (wm *XdgWmBase) Destroy() {
	wm.client.request(wm, 0, "destroy")
}

func (wm *XdgWmBase) GetXdgSurface(s *Surface) *XdgSurface {
	xs := XdgSurface{object: wm.child(xdgSurfaceInterface, "configure")}
	wm.client.add(&xs)
	wm.client.request(wm, 2, "get_xdg_surface", &xs, s)
	return &xs
}

type XdgSurface struct {
	object

	// Configure, if not nil, is called at the end of each configure
	// sequence, before it is acknowledged.
	Configure func(serial uint32)
}

func (xs *XdgSurface) Dispatch(msg *wire.MessageBuffer) error {
	if msg.Op() != 0 {
		return xs.unknown(msg.Op())
	}

	serial := msg.ReadUint()
	if xs.Configure != nil {
		xs.Configure(serial)
	}
	xs.client.request(xs, 4, "ack_configure", serial)
	return nil
}

func (xs *XdgSurface) Destroy() {
	xs.client.request(xs, 0, "destroy")
}

func (xs *XdgSurface) GetToplevel() *XdgToplevel {
	top := XdgToplevel{object: xs.child(xdgToplevelInterface, "configure", "close", "configure_bounds", "wm_capabilities")}
	xs.client.add(&top)
	xs.client.request(xs, 1, "get_toplevel", &top)
	return &top
}

type XdgToplevel struct {
	object

	// Configure, if not nil, is called with the size the compositor
	// suggests. A zero size leaves the choice to the client.
	Configure func(width, height int32, states []byte)

	// Close, if not nil, is called when the user asks for the window
	// to be closed.
	Close func()
}

func (top *XdgToplevel) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		w, h, states := msg.ReadInt(), msg.ReadInt(), msg.ReadArray()
		if top.Configure != nil {
			top.Configure(w, h, states)
		}
		return nil
	case 1:
		if top.Close != nil {
			top.Close()
		}
		return nil
	case 2:
		msg.ReadInt()
		msg.ReadInt()
		return nil
	case 3:
		msg.ReadArray()
		return nil
	default:
		return top.unknown(msg.Op())
	}
}

func (top *XdgToplevel) Destroy() {
	top.client.request(top, 0, "destroy")
}

func (top *XdgToplevel) SetTitle(title string) {
	top.client.request(top, 2, "set_title", title)
}

func (top *XdgToplevel) SetAppID(id string) {
	top.client.request(top, 3, "set_app_id", id)
}
