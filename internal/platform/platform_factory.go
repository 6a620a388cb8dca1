package platform

import (
	"runtime"
	"slices"

	"go.uber.org/zap"
)

// SupportedSystems lists the GOOS values the agent can run on
var SupportedSystems = []string{"windows", "darwin", "linux"}

// IsSupported reports whether goos is one of SupportedSystems
func IsSupported(goos string) bool {
	return slices.Contains(SupportedSystems, goos)
}

// NewPlatform creates a platform-specific implementation based on the current OS
func NewPlatform(logger *zap.Logger) (Platform, error) {
	if !IsSupported(runtime.GOOS) {
		return nil, &UnsupportedPlatformError{OS: runtime.GOOS}
	}
	return newPlatform(logger)
}

// UnsupportedPlatformError represents an error for unsupported platforms
type UnsupportedPlatformError struct {
	OS string
}

func (e *UnsupportedPlatformError) Error() string {
	return "unsupported platform: " + e.OS
}
