package platform

import "image"

// Platform defines the OS probes sampled by the tracking tasks
type Platform interface {
	LockDetector
	IdleDetector
	WindowTitleProvider
	ScreenGrabber

	// GetSystemInfo returns system information
	GetSystemInfo() (*SystemInfo, error)
}

// LockDetector reports whether the session is locked.
// Implementations report true when the state cannot be determined on an
// unsupported desktop.
type LockDetector interface {
	IsLocked() bool
}

// IdleDetector reports seconds since the last user input, or UnknownIdle
type IdleDetector interface {
	SecondsIdle() float64
}

// WindowTitleProvider returns the focused window title, or UnknownWindowTitle
type WindowTitleProvider interface {
	CurrentWindowTitle() string
}

// ScreenGrabber captures every attached display
type ScreenGrabber interface {
	CaptureScreens() ([]image.Image, error)
}

const (
	UnknownWindowTitle = "N/A"
	UnknownIdle        = -1.0
)

// SystemInfo contains system information
type SystemInfo struct {
	OS        string
	OSVersion string
	Arch      string
	Hostname  string
}
