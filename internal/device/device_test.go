package device

import (
	"context"
	"testing"

	"github.com/shirou/gopsutil/v4/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCleanSerial(t *testing.T) {
	assert.Equal(t, "", CleanSerial("To Be Filled By O.E.M.\n"))
	assert.Equal(t, "", CleanSerial("  Default string "))
	assert.Equal(t, "", CleanSerial(""))
	assert.Equal(t, "PF2ABC12", CleanSerial(" PF2ABC12\n"))
}

func TestPrimaryMAC(t *testing.T) {
	ifaces := net.InterfaceStatList{
		{Name: "lo", HardwareAddr: "00:00:00:00:00:00", Flags: []string{"up", "loopback"}},
		{Name: "docker0", HardwareAddr: ""},
		{Name: "wlan0", HardwareAddr: "aa:bb:cc:dd:ee:ff", Flags: []string{"up"}},
		{Name: "eth0", HardwareAddr: "11:22:33:44:55:66"},
	}
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", PrimaryMAC(ifaces))
	assert.Equal(t, "", PrimaryMAC(nil))
}

func TestFieldAfter(t *testing.T) {
	out := `Hardware:

    Hardware Overview:

      Model Name: MacBook Pro
      Serial Number (system): C02XYZ
      Hardware UUID: 1234-ABCD
`
	assert.Equal(t, "C02XYZ", fieldAfter(out, "Serial Number (system)"))
	assert.Equal(t, "1234-ABCD", fieldAfter(out, "Hardware UUID"))
	assert.Equal(t, "", fieldAfter(out, "Boot ROM"))
}

func TestWmicValue(t *testing.T) {
	assert.Equal(t, "5CG1234", wmicValue("SerialNumber  \r\n5CG1234  \r\n\r\n", "SerialNumber"))
	assert.Equal(t, "", wmicValue("SerialNumber\r\n", "SerialNumber"))
}

func TestGetOrGenerateDeviceIDKeepsExisting(t *testing.T) {
	dm := NewDeviceManager(zap.NewNop())
	id, err := dm.GetOrGenerateDeviceID("configured")
	require.NoError(t, err)
	assert.Equal(t, "configured", id)

	id, err = dm.GetOrGenerateDeviceID("")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestCollectFingerprint(t *testing.T) {
	dm := NewDeviceManager(zap.NewNop())
	dm.run = func(context.Context, string, ...string) (string, error) {
		return "To Be Filled By O.E.M.", nil
	}

	fp, err := dm.CollectFingerprint(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, fp.Architecture)
	assert.NotEmpty(t, fp.Platform)
	assert.NotEqual(t, "To Be Filled By O.E.M.", fp.SerialNumber)
}
