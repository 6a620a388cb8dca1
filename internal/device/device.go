package device

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"go.uber.org/zap"
)

// placeholder serials written by board vendors that identify nothing
var placeholderSerials = map[string]bool{
	"to be filled by o.e.m.": true,
	"default string":         true,
	"system serial number":   true,
	"not specified":          true,
	"not applicable":         true,
	"none":                   true,
	"0":                      true,
	"0123456789":             true,
}

// DeviceManager handles device ID generation and fingerprinting
type DeviceManager struct {
	logger *zap.Logger
	run    func(ctx context.Context, name string, args ...string) (string, error)
}

// NewDeviceManager creates a new device manager
func NewDeviceManager(logger *zap.Logger) *DeviceManager {
	return &DeviceManager{logger: logger, run: runCommand}
}

// GetOrGenerateDeviceID gets the device ID from config or generates a new one
func (dm *DeviceManager) GetOrGenerateDeviceID(existingID string) (string, error) {
	if existingID != "" {
		return existingID, nil
	}

	// Try to get platform-specific device ID
	deviceID, err := dm.getPlatformDeviceID()
	if err == nil && deviceID != "" {
		return deviceID, nil
	}

	// Fallback: generate UUID
	newUUID := uuid.New()
	return newUUID.String(), nil
}

// CollectFingerprint gathers the hardware identifiers sent at enrollment.
// Missing pieces are left empty; only a failed host lookup is an error.
func (dm *DeviceManager) CollectFingerprint(ctx context.Context) (models.DeviceFingerprint, error) {
	fp := models.DeviceFingerprint{Architecture: runtime.GOARCH, Platform: runtime.GOOS}

	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return fp, fmt.Errorf("failed to read host info: %w", err)
	}
	fp.Hostname = hi.Hostname
	if hi.KernelArch != "" {
		fp.Architecture = hi.KernelArch
	}

	if ifaces, err := net.InterfacesWithContext(ctx); err == nil {
		fp.MACAddress = PrimaryMAC(ifaces)
	} else {
		dm.logger.Debug("Could not list network interfaces", zap.Error(err))
	}

	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		fp.Processor = strings.TrimSpace(infos[0].ModelName)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		fp.MemoryGB = math.Round(float64(vm.Total)/(1<<30)*100) / 100
	}

	fp.SerialNumber = dm.serialNumber(ctx)
	return fp, nil
}

// PrimaryMAC returns the hardware address of the first non-loopback
// interface that has one.
func PrimaryMAC(ifaces net.InterfaceStatList) string {
	for _, iface := range ifaces {
		if iface.HardwareAddr == "" || isLoopback(iface) {
			continue
		}
		return iface.HardwareAddr
	}
	return ""
}

func isLoopback(iface net.InterfaceStat) bool {
	for _, flag := range iface.Flags {
		if flag == "loopback" {
			return true
		}
	}
	return iface.Name == "lo"
}

func (dm *DeviceManager) serialNumber(ctx context.Context) string {
	switch runtime.GOOS {
	case "linux":
		if data, err := os.ReadFile("/sys/class/dmi/id/product_serial"); err == nil {
			if s := CleanSerial(string(data)); s != "" {
				return s
			}
		}
		if out, err := dm.run(ctx, "dmidecode", "-s", "system-serial-number"); err == nil {
			return CleanSerial(out)
		}
	case "darwin":
		if out, err := dm.run(ctx, "system_profiler", "SPHardwareDataType"); err == nil {
			return CleanSerial(fieldAfter(out, "Serial Number (system)"))
		}
	case "windows":
		if out, err := dm.run(ctx, "wmic", "bios", "get", "serialnumber"); err == nil {
			return CleanSerial(wmicValue(out, "SerialNumber"))
		}
	}
	return ""
}

// CleanSerial trims s and discards vendor placeholders
func CleanSerial(s string) string {
	s = strings.TrimSpace(s)
	if placeholderSerials[strings.ToLower(s)] {
		return ""
	}
	return s
}

// fieldAfter returns the value of the first "label: value" line
func fieldAfter(out, label string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, label) {
			if _, value, ok := strings.Cut(line, ":"); ok {
				return strings.TrimSpace(value)
			}
		}
	}
	return ""
}

// wmicValue returns the first non-header line of wmic output
func wmicValue(out, header string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && line != header {
			return line
		}
	}
	return ""
}

// getPlatformDeviceID gets a platform-specific device identifier
func (dm *DeviceManager) getPlatformDeviceID() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch runtime.GOOS {
	case "windows":
		if out, err := dm.run(ctx, "wmic", "csproduct", "get", "uuid"); err == nil {
			if id := wmicValue(out, "UUID"); len(id) > 10 {
				return id, nil
			}
		}
	case "darwin":
		if out, err := dm.run(ctx, "system_profiler", "SPHardwareDataType"); err == nil {
			if id := fieldAfter(out, "Hardware UUID"); id != "" {
				return id, nil
			}
		}
	case "linux":
		for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
			if machineID, err := os.ReadFile(path); err == nil && len(machineID) > 0 {
				return strings.TrimSpace(string(machineID)), nil
			}
		}
	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	// Fallback to hostname
	hostname, err := os.Hostname()
	if err == nil && hostname != "" {
		return runtime.GOOS + "-" + hostname, nil
	}

	return "", fmt.Errorf("could not determine %s device ID", runtime.GOOS)
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
