//go:build !windows && !darwin && !linux
// +build !windows,!darwin,!linux

package platform

import (
	"runtime"

	"go.uber.org/zap"
)

func newPlatform(_ *zap.Logger) (Platform, error) {
	return nil, &UnsupportedPlatformError{OS: runtime.GOOS}
}
