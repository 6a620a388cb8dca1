//go:build windows
// +build windows

package platform

import (
	"fmt"
	"image"
	"os"
	"runtime"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

type windowsImpl struct {
	logger *zap.Logger
}

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")
	gdi32    = windows.NewLazySystemDLL("gdi32.dll")

	procGetForegroundWindow = user32.NewProc("GetForegroundWindow")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procGetWindowTextLength = user32.NewProc("GetWindowTextLengthW")
	procGetLastInputInfo    = user32.NewProc("GetLastInputInfo")
	procOpenDesktopW        = user32.NewProc("OpenDesktopW")
	procSwitchDesktop       = user32.NewProc("SwitchDesktop")
	procCloseDesktop        = user32.NewProc("CloseDesktop")
	procGetDC               = user32.NewProc("GetDC")
	procReleaseDC           = user32.NewProc("ReleaseDC")
	procGetSystemMetrics    = user32.NewProc("GetSystemMetrics")

	procGetTickCount = kernel32.NewProc("GetTickCount")

	procCreateCompatibleDC     = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject           = gdi32.NewProc("SelectObject")
	procBitBlt                 = gdi32.NewProc("BitBlt")
	procDeleteDC               = gdi32.NewProc("DeleteDC")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
	procGetDIBits              = gdi32.NewProc("GetDIBits")
)

const (
	DESKTOP_SWITCHDESKTOP = 0x0100
	SM_XVIRTUALSCREEN     = 76
	SM_YVIRTUALSCREEN     = 77
	SM_CXVIRTUALSCREEN    = 78
	SM_CYVIRTUALSCREEN    = 79
	SRCCOPY               = 0x00CC0020
	BI_RGB                = 0
	DIB_RGB_COLORS        = 0
)

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

type bitmapInfo struct {
	BmiHeader bitmapInfoHeader
	BmiColors [1]uint32
}

func newPlatform(logger *zap.Logger) (Platform, error) {
	return &windowsImpl{logger: logger}, nil
}

func (p *windowsImpl) SecondsIdle() float64 {
	info := lastInputInfo{cbSize: uint32(unsafe.Sizeof(lastInputInfo{}))}
	ret, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		p.logger.Debug("GetLastInputInfo failed", zap.Error(err))
		return UnknownIdle
	}
	now, _, _ := procGetTickCount.Call()
	// uint32 arithmetic handles the 49.7-day tick wraparound
	millis := uint32(now) - info.dwTime
	return float64(millis) / 1000.0
}

// IsLocked reports true when the input desktop cannot be switched to,
// which is the case while the Winlogon desktop is active.
func (p *windowsImpl) IsLocked() bool {
	name, err := windows.UTF16PtrFromString("Default")
	if err != nil {
		return false
	}
	desk, _, _ := procOpenDesktopW.Call(uintptr(unsafe.Pointer(name)), 0, 0, DESKTOP_SWITCHDESKTOP)
	if desk == 0 {
		return false
	}
	defer procCloseDesktop.Call(desk)

	ret, _, _ := procSwitchDesktop.Call(desk)
	return ret == 0
}

func (p *windowsImpl) CurrentWindowTitle() string {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return UnknownWindowTitle
	}

	length, _, _ := procGetWindowTextLength.Call(hwnd)
	if length == 0 {
		return UnknownWindowTitle
	}

	length++ // Include null terminator
	buf := make([]uint16, length)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), length)
	return titleOrUnknown(windows.UTF16ToString(buf))
}

// CaptureScreens copies the whole virtual desktop with GDI
func (p *windowsImpl) CaptureScreens() ([]image.Image, error) {
	x, _, _ := procGetSystemMetrics.Call(SM_XVIRTUALSCREEN)
	y, _, _ := procGetSystemMetrics.Call(SM_YVIRTUALSCREEN)
	width, _, _ := procGetSystemMetrics.Call(SM_CXVIRTUALSCREEN)
	height, _, _ := procGetSystemMetrics.Call(SM_CYVIRTUALSCREEN)
	if width == 0 || height == 0 {
		return nil, errors.New("GetSystemMetrics returned an empty desktop")
	}

	hDC, _, _ := procGetDC.Call(0)
	if hDC == 0 {
		return nil, errors.New("GetDC failed")
	}
	defer procReleaseDC.Call(0, hDC)

	hMemDC, _, _ := procCreateCompatibleDC.Call(hDC)
	if hMemDC == 0 {
		return nil, errors.New("CreateCompatibleDC failed")
	}
	defer procDeleteDC.Call(hMemDC)

	hBitmap, _, _ := procCreateCompatibleBitmap.Call(hDC, width, height)
	if hBitmap == 0 {
		return nil, errors.New("CreateCompatibleBitmap failed")
	}
	defer procDeleteObject.Call(hBitmap)

	hOld, _, _ := procSelectObject.Call(hMemDC, hBitmap)
	if hOld == 0 {
		return nil, errors.New("SelectObject failed")
	}
	defer procSelectObject.Call(hMemDC, hOld)

	if ret, _, _ := procBitBlt.Call(hMemDC, 0, 0, width, height, hDC, x, y, SRCCOPY); ret == 0 {
		return nil, errors.New("BitBlt failed")
	}

	w, h := int(int32(width)), int(int32(height))
	var bi bitmapInfo
	bi.BmiHeader.BiSize = uint32(unsafe.Sizeof(bi.BmiHeader))
	bi.BmiHeader.BiWidth = int32(w)
	bi.BmiHeader.BiHeight = -int32(h) // top-down rows
	bi.BmiHeader.BiPlanes = 1
	bi.BmiHeader.BiBitCount = 32
	bi.BmiHeader.BiCompression = BI_RGB

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	ret, _, _ := procGetDIBits.Call(
		hMemDC,
		hBitmap,
		0,
		uintptr(h),
		uintptr(unsafe.Pointer(&img.Pix[0])),
		uintptr(unsafe.Pointer(&bi)),
		DIB_RGB_COLORS,
	)
	if ret == 0 {
		return nil, errors.New("GetDIBits failed")
	}

	// BGRA -> RGBA in place
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		img.Pix[i+3] = 0xff
	}
	return []image.Image{img}, nil
}

func (p *windowsImpl) GetSystemInfo() (*SystemInfo, error) {
	hostname, _ := os.Hostname()
	v := windows.RtlGetVersion()
	return &SystemInfo{
		OS:        "windows",
		OSVersion: fmt.Sprintf("%d.%d.%d", v.MajorVersion, v.MinorVersion, v.BuildNumber),
		Arch:      runtime.GOARCH,
		Hostname:  hostname,
	}, nil
}
