//go:build linux
// +build linux

package platform

import (
	"encoding/binary"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/xinerama"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// x11RetryInterval limits reconnect attempts when no display is reachable
const x11RetryInterval = 30 * time.Second

type linuxImpl struct {
	logger *zap.Logger

	mu        sync.Mutex
	x         *x11Client
	lastDial  time.Time
	sessionID string

	hasXprintidle bool
	hasXssstate   bool
	hasXdotool    bool
	hasGnomeSS    bool
	hasLoginctl   bool
	hasScrot      bool
}

func newPlatform(logger *zap.Logger) (Platform, error) {
	return &linuxImpl{
		logger:        logger,
		hasXprintidle: commandExists("xprintidle"),
		hasXssstate:   commandExists("xssstate"),
		hasXdotool:    commandExists("xdotool"),
		hasGnomeSS:    commandExists("gnome-screensaver-command"),
		hasLoginctl:   commandExists("loginctl"),
		hasScrot:      commandExists("scrot"),
	}, nil
}

// x11Client is a connection to the X server with the atoms the probes need
type x11Client struct {
	conn        *xgb.Conn
	root        xproto.Window
	atoms       map[string]xproto.Atom
	screensaver bool
	xinerama    bool
}

func dialX11() (*x11Client, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to X server")
	}

	c := &x11Client{
		conn:  conn,
		root:  xproto.Setup(conn).DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom),
	}
	for _, name := range []string{"_NET_ACTIVE_WINDOW", "_NET_WM_NAME", "WM_NAME", "UTF8_STRING"} {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "failed to intern atom %s", name)
		}
		c.atoms[name] = reply.Atom
	}
	c.screensaver = screensaver.Init(conn) == nil
	c.xinerama = xinerama.Init(conn) == nil
	return c, nil
}

// display returns the X connection, dialing at most once per retry interval
func (p *linuxImpl) display() *x11Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.x != nil {
		return p.x
	}
	if time.Since(p.lastDial) < x11RetryInterval {
		return nil
	}
	p.lastDial = time.Now()

	x, err := dialX11()
	if err != nil {
		p.logger.Debug("X11 unavailable, using command-line probes", zap.Error(err))
		return nil
	}
	p.x = x
	return x
}

func (p *linuxImpl) dropDisplay(x *x11Client, err error) {
	p.logger.Debug("X11 request failed, dropping connection", zap.Error(err))
	p.mu.Lock()
	if p.x == x {
		p.x = nil
	}
	p.mu.Unlock()
	x.conn.Close()
}

func (p *linuxImpl) SecondsIdle() float64 {
	if x := p.display(); x != nil && x.screensaver {
		reply, err := screensaver.QueryInfo(x.conn, xproto.Drawable(x.root)).Reply()
		if err == nil {
			return float64(reply.MsSinceUserInput) / 1000.0
		}
		p.dropDisplay(x, err)
	}

	type idleCmd struct {
		ok   bool
		name string
		args []string
	}
	for _, c := range []idleCmd{
		{p.hasXprintidle, "xprintidle", nil},
		{p.hasXssstate, "xssstate", []string{"-i"}},
	} {
		if !c.ok {
			continue
		}
		out, err := runCommand(c.name, c.args...)
		if err != nil {
			p.logger.Debug("Idle probe failed", zap.String("command", c.name), zap.Error(err))
			continue
		}
		if secs, err := parseMillisIdle(out); err == nil {
			return secs
		}
	}
	return UnknownIdle
}

func (p *linuxImpl) IsLocked() bool {
	if p.hasGnomeSS {
		if out, err := runCommand("gnome-screensaver-command", "-q"); err == nil && screensaverActive(out) {
			return true
		}
	}

	if p.hasLoginctl {
		id := p.currentSession()
		if id == "" {
			return false
		}
		out, err := runCommand("loginctl", "show-session", id, "-p", "LockedHint")
		if err != nil {
			p.logger.Debug("Lock probe failed", zap.Error(err))
			return false
		}
		return parseLockedHint(out)
	}
	return false
}

func (p *linuxImpl) currentSession() string {
	p.mu.Lock()
	id := p.sessionID
	p.mu.Unlock()
	if id != "" {
		return id
	}

	if id = os.Getenv("XDG_SESSION_ID"); id == "" {
		out, err := runCommand("loginctl", "list-sessions", "--no-legend")
		if err != nil {
			p.logger.Debug("Failed to list sessions", zap.Error(err))
			return ""
		}
		id, _ = findSessionID(out, unix.Getuid(), os.Getenv("USER"))
	}

	p.mu.Lock()
	p.sessionID = id
	p.mu.Unlock()
	return id
}

func (p *linuxImpl) CurrentWindowTitle() string {
	if x := p.display(); x != nil {
		title, err := x.activeWindowTitle()
		if err == nil {
			return titleOrUnknown(title)
		}
		if _, ok := err.(xgb.Error); !ok {
			p.dropDisplay(x, err)
		}
	}

	if p.hasXdotool {
		id, err := runCommand("xdotool", "getwindowfocus")
		if err != nil {
			return UnknownWindowTitle
		}
		title, err := runCommand("xdotool", "getwindowname", id)
		if err != nil {
			return UnknownWindowTitle
		}
		return titleOrUnknown(title)
	}
	return UnknownWindowTitle
}

func (c *x11Client) property(w xproto.Window, atom, typ xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(c.conn, false, w, atom, typ, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (c *x11Client) activeWindowTitle() (string, error) {
	data, err := c.property(c.root, c.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if err != nil {
		return "", err
	}
	if len(data) < 4 {
		return "", nil
	}
	win := xproto.Window(binary.LittleEndian.Uint32(data))
	if win == 0 {
		return "", nil
	}

	data, err = c.property(win, c.atoms["_NET_WM_NAME"], c.atoms["UTF8_STRING"], 256)
	if err == nil && len(data) > 0 {
		return string(data), nil
	}
	data, err = c.property(win, c.atoms["WM_NAME"], xproto.AtomString, 256)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *linuxImpl) CaptureScreens() ([]image.Image, error) {
	if x := p.display(); x != nil {
		imgs, err := x.captureMonitors()
		if err == nil {
			return imgs, nil
		}
		p.logger.Warn("X11 capture failed", zap.Error(err))
	}

	if !p.hasScrot {
		return nil, errors.New("no screen capture method available")
	}
	return captureWithScrot()
}

func (c *x11Client) captureMonitors() ([]image.Image, error) {
	var rects []image.Rectangle
	if c.xinerama {
		if reply, err := xinerama.QueryScreens(c.conn).Reply(); err == nil {
			for _, s := range reply.ScreenInfo {
				rects = append(rects, image.Rect(int(s.XOrg), int(s.YOrg),
					int(s.XOrg)+int(s.Width), int(s.YOrg)+int(s.Height)))
			}
		}
	}
	if len(rects) == 0 {
		screen := xproto.Setup(c.conn).DefaultScreen(c.conn)
		rects = append(rects, image.Rect(0, 0, int(screen.WidthInPixels), int(screen.HeightInPixels)))
	}

	imgs := make([]image.Image, 0, len(rects))
	for _, r := range rects {
		img, err := c.grab(r)
		if err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
	}
	return imgs, nil
}

// grab reads a region of the root window as 32-bit BGRX pixels
func (c *x11Client) grab(r image.Rectangle) (*image.RGBA, error) {
	reply, err := xproto.GetImage(c.conn, xproto.ImageFormatZPixmap, xproto.Drawable(c.root),
		int16(r.Min.X), int16(r.Min.Y), uint16(r.Dx()), uint16(r.Dy()), 0xffffffff).Reply()
	if err != nil {
		return nil, errors.Wrap(err, "GetImage failed")
	}
	if len(reply.Data) < r.Dx()*r.Dy()*4 {
		return nil, errors.Errorf("unsupported pixel format (depth %d)", reply.Depth)
	}

	img := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for i := 0; i < r.Dx()*r.Dy(); i++ {
		src := reply.Data[i*4:]
		dst := img.Pix[i*4:]
		dst[0], dst[1], dst[2], dst[3] = src[2], src[1], src[0], 0xff
	}
	return img, nil
}

func captureWithScrot() ([]image.Image, error) {
	dir, err := os.MkdirTemp("", "devpulse-scrot")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp dir")
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "screen.png")
	if _, err := runCommand("scrot", path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "scrot produced no image")
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode scrot output")
	}
	return []image.Image{img}, nil
}

func (p *linuxImpl) GetSystemInfo() (*SystemInfo, error) {
	hostname, _ := os.Hostname()
	version := ""
	if data, err := os.ReadFile("/proc/sys/kernel/osrelease"); err == nil {
		version = strings.TrimSpace(string(data))
	}
	return &SystemInfo{
		OS:        "linux",
		OSVersion: version,
		Arch:      runtime.GOARCH,
		Hostname:  hostname,
	}, nil
}
