//go:build darwin
// +build darwin

package platform

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const cgSessionPath = "/System/Library/CoreServices/Menu Extras/User.menu/Contents/Resources/CGSession"

const frontmostTitleScript = `tell application "System Events" to get title of (process 1 where frontmost is true)`

// maxDisplays bounds the screencapture call; unused slots produce no file
const maxDisplays = 8

type darwinImpl struct {
	logger *zap.Logger
}

func newPlatform(logger *zap.Logger) (Platform, error) {
	return &darwinImpl{logger: logger}, nil
}

func (p *darwinImpl) SecondsIdle() float64 {
	out, err := runCommand("ioreg", "-c", "IOHIDSystem")
	if err != nil {
		p.logger.Debug("Idle probe failed", zap.Error(err))
		return UnknownIdle
	}
	secs, err := parseHIDIdleTime(out)
	if err != nil {
		p.logger.Debug("Idle probe failed", zap.Error(err))
		return UnknownIdle
	}
	return secs
}

func (p *darwinImpl) IsLocked() bool {
	out, err := runCommand(cgSessionPath, "-s")
	if err != nil {
		p.logger.Debug("Lock probe failed", zap.Error(err))
		return false
	}
	return parseCGSessionLocked(out)
}

func (p *darwinImpl) CurrentWindowTitle() string {
	out, err := runCommand("osascript", "-e", frontmostTitleScript)
	if err != nil {
		return UnknownWindowTitle
	}
	return titleOrUnknown(out)
}

// CaptureScreens asks screencapture for one file per display
func (p *darwinImpl) CaptureScreens() ([]image.Image, error) {
	dir, err := os.MkdirTemp("", "devpulse-capture")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp dir")
	}
	defer os.RemoveAll(dir)

	args := []string{"-x", "-t", "png"}
	paths := make([]string, 0, maxDisplays)
	for i := 0; i < maxDisplays; i++ {
		path := filepath.Join(dir, "display"+strconv.Itoa(i)+".png")
		paths = append(paths, path)
		args = append(args, path)
	}
	if _, err := runCommand("screencapture", args...); err != nil {
		return nil, err
	}

	var imgs []image.Image
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", filepath.Base(path))
		}
		imgs = append(imgs, img)
	}
	if len(imgs) == 0 {
		return nil, errors.New("screencapture produced no images")
	}
	return imgs, nil
}

func (p *darwinImpl) GetSystemInfo() (*SystemInfo, error) {
	hostname, _ := os.Hostname()
	version, _ := runCommand("sw_vers", "-productVersion")
	return &SystemInfo{
		OS:        "darwin",
		OSVersion: version,
		Arch:      runtime.GOARCH,
		Hostname:  hostname,
	}, nil
}
