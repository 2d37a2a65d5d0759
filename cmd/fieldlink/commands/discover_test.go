package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldlink/fieldlink-go/pkg/device"
)

func TestCollector(t *testing.T) {
	usb := &device.Info{Name: "bench", SerialNo: "SN-001", Transport: device.TransportUSB, Path: "/dev/ttyACM0"}
	wifi := &device.Info{Name: "bench", SerialNo: "sn-001", Transport: device.TransportWiFi, IPAddress: "10.0.0.5", Port: 9760, FirmwareVersion: "1.2.0", IsPowerOn: true}
	wifiAgain := &device.Info{Name: "bench", SerialNo: "SN-001", Transport: device.TransportWiFi, IPAddress: "10.0.0.5", Port: 9760}
	anon := &device.Info{Transport: device.TransportWiFi, IPAddress: "10.0.0.9", Port: 9760}
	anonAgain := &device.Info{Transport: device.TransportWiFi, IPAddress: "10.0.0.9", Port: 9760}

	c := NewCollector()
	assert.True(t, c.Add(usb))
	assert.True(t, c.Add(wifi))
	assert.False(t, c.Add(wifiAgain), "same serial on same transport")
	assert.True(t, c.Add(anon))
	assert.False(t, c.Add(anonAgain), "same address without serial")
	assert.False(t, c.Add(nil))

	assert.Equal(t, []*device.Info{usb, wifi, anon}, c.Devices())

	dups := c.Duplicates()
	if assert.Len(t, dups, 1) {
		assert.Same(t, usb, dups[0].Existing)
		assert.Same(t, wifi, dups[0].New)
		assert.Equal(t, "USB", dups[0].ExistingLabel)
		assert.Equal(t, "WiFi", dups[0].NewLabel)
	}
}

func TestPrintDevices(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var out bytes.Buffer
		PrintDevices(&out, NewCollector())
		assert.Equal(t, "No devices found.\n", out.String())
	})

	t.Run("table", func(t *testing.T) {
		c := NewCollector()
		c.Add(&device.Info{SerialNo: "SN-001", Transport: device.TransportUSB, Path: "/dev/ttyACM0"})
		c.Add(&device.Info{Name: "bench", SerialNo: "SN-001", Transport: device.TransportWiFi, IPAddress: "10.0.0.5", Port: 9760, FirmwareVersion: "1.2.0", IsPowerOn: true})

		var out bytes.Buffer
		PrintDevices(&out, c)
		s := out.String()
		assert.Contains(t, s, "TRANSPORT")
		assert.Regexp(t, `USB\s+-\s+SN-001\s+/dev/ttyACM0\s+-\s+-`, s)
		assert.Regexp(t, `WiFi\s+bench\s+SN-001\s+10\.0\.0\.5:9760\s+1\.2\.0\s+on`, s)
		assert.Contains(t, s, "Device SN-001 is reachable over USB (/dev/ttyACM0) and WiFi (10.0.0.5:9760).")
	})
}
