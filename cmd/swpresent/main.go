// Command swpresent renders an animated test pattern with the
// software driver and presents it in a host window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"deedles.dev/swpresent/config"
	"deedles.dev/swpresent/format"
	"deedles.dev/swpresent/native"
	"deedles.dev/swpresent/procaddr"
	"deedles.dev/swpresent/shm"
	"deedles.dev/swpresent/surface"
	"deedles.dev/swpresent/swrast"
	"deedles.dev/swpresent/wayland"
	"golang.org/x/image/bmp"
	"golang.org/x/image/colornames"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// host is a window that can also show what it last displayed.
type host interface {
	native.Window
	Frame() (image.Image, error)
}

type state struct {
	image  image.Image
	frames int
	out    string

	client  *wayland.Client
	win     host
	closed  func() bool
	driver  *swrast.Driver
	display *surface.Display
	surface *surface.Surface

	drawImage   func(image.Image, image.Rectangle) error
	swapBuffers func() error
}

func (s *state) initHost(backend string, w, h int, title string) error {
	switch backend {
	case "shm":
		win, err := shm.NewWindow(format.RGBA8888, w, h)
		if err != nil {
			return fmt.Errorf("create shm window: %w", err)
		}
		s.win = win
		s.closed = func() bool { return false }
		return nil

	case "wayland":
		client, err := wayland.Dial()
		if err != nil {
			return err
		}
		client.Error = func(err wayland.DisplayError) {
			log.Printf("display error: %v", err)
		}
		s.client = client

		win, err := wayland.Open(client, &wayland.Options{
			Title:  title,
			AppID:  "dev.deedles.swpresent",
			Width:  w,
			Height: h,
		})
		if err != nil {
			return fmt.Errorf("open window: %w", err)
		}
		s.win = win
		s.closed = win.Closed
		return nil

	default:
		return fmt.Errorf("unknown backend %q", backend)
	}
}

func (s *state) init() error {
	s.driver = swrast.New()

	display, err := surface.Initialize(s.driver, nil)
	if err != nil {
		return fmt.Errorf("initialize display: %w", err)
	}
	s.display = display

	configs := display.ChooseConfig(config.Attribs{
		RedSize:   5,
		GreenSize: 6,
		BlueSize:  5,
		Kinds:     config.Window,
	})
	if len(configs) == 0 {
		return errors.New("no window config")
	}
	log.Printf("using %v", configs[0])

	s.surface, err = display.CreateWindowSurface(configs[0], s.win, surface.Attribs{})
	if err != nil {
		return fmt.Errorf("create surface: %w", err)
	}

	err = s.driver.MakeCurrent(s.surface.Drawable())
	if err != nil {
		return err
	}
	return s.resolve()
}

// resolve looks up the driver entry points the renderer uses, going
// through glXGetProcAddressARB the same way a GL client would.
func (s *state) resolve() error {
	r := procaddr.New(s.driver.Procs())

	proc, ok := r.Lookup("glXGetProcAddressARB")
	if !ok {
		return errors.New("no glXGetProcAddressARB")
	}
	getProcAddress := proc.(procaddr.Func)

	s.drawImage, ok = getProcAddress("glDrawImage").(func(image.Image, image.Rectangle) error)
	if !ok {
		return errors.New("driver has no usable glDrawImage")
	}
	s.swapBuffers, ok = getProcAddress("glSwapBuffers").(func() error)
	if !ok {
		return errors.New("driver has no usable glSwapBuffers")
	}
	return nil
}

func (s *state) close() {
	if s.display != nil {
		s.display.Terminate()
	}
	if s.win != nil {
		s.win.Release()
	}
	if s.client != nil {
		s.client.Close()
	}
}

func (s *state) render(frame int) error {
	back, err := s.driver.Current().Back()
	if err != nil {
		return err
	}
	bounds := back.Bounds()

	checkerboard(back, bounds, 16, frame, colornames.Dimgray, colornames.Whitesmoke)
	if s.image != nil {
		err = s.drawImage(s.image, fit(s.image.Bounds(), bounds.Inset(bounds.Dx()/8)))
		if err != nil {
			return err
		}
	}

	return s.swapBuffers()
}

func (s *state) dump(frame int) error {
	img, err := s.win.Frame()
	if err != nil {
		return err
	}

	file, err := os.Create(filepath.Join(s.out, fmt.Sprintf("frame-%04d.bmp", frame)))
	if err != nil {
		return err
	}
	defer file.Close()

	err = bmp.Encode(file, img)
	if err != nil {
		return fmt.Errorf("encode %v: %w", file.Name(), err)
	}
	return file.Close()
}

func (s *state) run(ctx context.Context) error {
	for frame := 0; (s.frames <= 0) || (frame < s.frames); frame++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if s.closed() {
			return nil
		}

		err := s.render(frame)
		if err != nil {
			var serr surface.SizeMismatchError
			if errors.As(err, &serr) {
				// The window was resized between locks. The next frame
				// is drawn at the new size.
				continue
			}
			return fmt.Errorf("render frame %v: %w", frame, err)
		}

		if s.out != "" {
			err = s.dump(frame)
			if err != nil {
				return fmt.Errorf("dump frame %v: %w", frame, err)
			}
		}
	}
	return nil
}

// checkerboard fills r with squares of the given size, scrolled
// diagonally by offset pixels.
func checkerboard(img draw.Image, r image.Rectangle, size, offset int, c1, c2 color.Color) {
	u1, u2 := image.NewUniform(c1), image.NewUniform(c2)
	for y := r.Min.Y - offset%(2*size); y < r.Max.Y; y += size {
		for x := r.Min.X - offset%(2*size); x < r.Max.X; x += size {
			src := u1
			if ((x-r.Min.X+offset)/size+(y-r.Min.Y+offset)/size)%2 != 0 {
				src = u2
			}
			square := image.Rect(x, y, x+size, y+size).Intersect(r)
			draw.Draw(img, square, src, image.Point{}, draw.Src)
		}
	}
}

// fit returns the largest rectangle with the aspect ratio of src
// centered in dst.
func fit(src, dst image.Rectangle) image.Rectangle {
	if src.Empty() || dst.Empty() {
		return image.Rectangle{}
	}

	w, h := dst.Dx(), src.Dy()*dst.Dx()/src.Dx()
	if h > dst.Dy() {
		w, h = src.Dx()*dst.Dy()/src.Dy(), dst.Dy()
	}

	origin := dst.Min.Add(image.Pt((dst.Dx()-w)/2, (dst.Dy()-h)/2))
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(w, h))}
}

func parseSize(v string) (w, h int, err error) {
	_, err = fmt.Sscanf(v, "%dx%d", &w, &h)
	if err != nil {
		return 0, 0, fmt.Errorf("parse size %q: %w", v, err)
	}
	if (w <= 0) || (h <= 0) {
		return 0, 0, fmt.Errorf("invalid size %q", v)
	}
	return w, h, nil
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	return img, err
}

func main() {
	backend := flag.String("backend", "wayland", "host window system (wayland or shm)")
	size := flag.String("size", "640x480", "initial window size")
	frames := flag.Int("frames", 0, "number of frames to present, or 0 to run until closed")
	out := flag.String("out", "", "directory to write presented frames to as BMP files")
	title := flag.String("title", "swpresent", "window title")
	imgpath := flag.String("image", "", "image to draw over the pattern")
	flag.Parse()

	w, h, err := parseSize(*size)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	s := state{frames: *frames, out: *out}
	if (*backend == "shm") && (s.frames <= 0) {
		s.frames = 1
	}
	if *imgpath != "" {
		s.image, err = loadImage(*imgpath)
		if err != nil {
			log.Fatalf("load image: %v", err)
		}
	}

	err = s.initHost(*backend, w, h, *title)
	if err != nil {
		log.Fatalf("init host: %v", err)
	}
	defer s.close()

	err = s.init()
	if err != nil {
		log.Printf("init: %v", err)
		return
	}

	err = s.run(ctx)
	if err != nil {
		log.Printf("run: %v", err)
	}
}
