package gap

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigado/bthost"
)

func TestCacheLookup(t *testing.T) {
	c := NewRemoteDeviceCache()
	addr := bthost.NewAddr("00:11:22:33:44:55")

	d := c.NewDevice(addr, true)
	require.NotEmpty(t, d.ID)
	assert.True(t, d.Temporary)
	assert.True(t, d.Connectable)
	assert.Equal(t, RSSIInvalid, d.RSSI)

	byID, ok := c.FindDeviceByID(d.ID)
	require.True(t, ok)
	assert.Equal(t, d.ID, byID.ID)

	byAddr, ok := c.FindDeviceByAddress(addr)
	require.True(t, ok)
	assert.Equal(t, d.ID, byAddr.ID)

	_, ok = c.FindDeviceByID("dev-nope")
	assert.False(t, ok)
	_, ok = c.FindDeviceByAddress(bthost.NewAddr("AA:BB:CC:DD:EE:FF"))
	assert.False(t, ok)
}

func TestCacheNewDeviceDedupesByAddress(t *testing.T) {
	c := NewRemoteDeviceCache()
	addr := bthost.NewAddr("00:11:22:33:44:55")

	first := c.NewDevice(addr, true)
	second := c.NewDevice(addr, false)
	assert.Equal(t, first.ID, second.ID)
	// The existing entry is returned untouched.
	assert.True(t, second.Connectable)
	assert.Len(t, c.Devices(), 1)
}

func TestCacheUpdateCallback(t *testing.T) {
	c := NewRemoteDeviceCache()
	var updates []RemoteDevice
	c.SetUpdateCallback(func(d RemoteDevice) { updates = append(updates, d) })

	d := c.NewDevice(bthost.NewAddr("00:11:22:33:44:55"), true)
	c.SetAdvertisingData(d.ID, -40, []byte{0x02, 0x01, 0x06})
	c.SetName(d.ID, "thermo")

	require.Len(t, updates, 3)
	assert.Equal(t, int8(-40), updates[1].RSSI)
	assert.Equal(t, []byte{0x02, 0x01, 0x06}, updates[1].AdvertisingData)
	assert.Equal(t, "thermo", updates[2].Name)

	// Updates for unknown devices are dropped silently.
	c.SetName("dev-nope", "ghost")
	assert.Len(t, updates, 3)
}

func TestCacheTryMakeNonTemporary(t *testing.T) {
	c := NewRemoteDeviceCache()

	pub := c.NewDevice(bthost.NewAddr("00:11:22:33:44:55"), true)
	assert.True(t, c.TryMakeNonTemporary(pub.ID))
	d, _ := c.FindDeviceByID(pub.ID)
	assert.False(t, d.Temporary)

	nonConn := c.NewDevice(bthost.NewAddr("00:11:22:33:44:56"), false)
	assert.False(t, c.TryMakeNonTemporary(nonConn.ID))

	random := c.NewDevice(bthost.RandomAddress{Addr: bthost.NewAddr("C0:11:22:33:44:55")}, true)
	assert.False(t, c.TryMakeNonTemporary(random.ID))

	assert.False(t, c.TryMakeNonTemporary("dev-nope"))
}

func TestCacheTemporaryExpiry(t *testing.T) {
	c := NewRemoteDeviceCache()
	current := time.Now()
	c.now = func() time.Time { return current }

	temp := c.NewDevice(bthost.NewAddr("00:11:22:33:44:55"), true)
	pinned := c.NewDevice(bthost.NewAddr("00:11:22:33:44:56"), true)
	require.True(t, c.TryMakeNonTemporary(pinned.ID))
	connected := c.NewDevice(bthost.NewAddr("00:11:22:33:44:57"), true)
	c.SetConnected(connected.ID, true)

	current = current.Add(deviceTTL + time.Second)

	_, ok := c.FindDeviceByID(temp.ID)
	assert.False(t, ok, "temporary device survived its TTL")
	_, ok = c.FindDeviceByID(pinned.ID)
	assert.True(t, ok)
	_, ok = c.FindDeviceByID(connected.ID)
	assert.True(t, ok)

	// A refresh restarts the clock.
	fresh := c.NewDevice(bthost.NewAddr("00:11:22:33:44:58"), true)
	current = current.Add(deviceTTL - time.Second)
	c.SetAdvertisingData(fresh.ID, -50, nil)
	current = current.Add(deviceTTL - time.Second)
	_, ok = c.FindDeviceByID(fresh.ID)
	assert.True(t, ok)
}

func TestCacheConnectionLifecycle(t *testing.T) {
	c := NewRemoteDeviceCache()
	d := c.NewDevice(bthost.NewAddr("00:11:22:33:44:55"), true)

	c.SetConnected(d.ID, true)
	got, _ := c.FindDeviceByID(d.ID)
	assert.True(t, got.Connected)
	assert.False(t, got.Temporary)

	// Disconnecting an unpinned device makes it temporary again.
	c.SetConnected(d.ID, false)
	got, _ = c.FindDeviceByID(d.ID)
	assert.False(t, got.Connected)
	assert.True(t, got.Temporary)

	// A disconnect with no prior connection changes nothing.
	other := c.NewDevice(bthost.NewAddr("00:11:22:33:44:56"), true)
	require.True(t, c.TryMakeNonTemporary(other.ID))
	c.SetConnected(other.ID, false)
	got, _ = c.FindDeviceByID(other.ID)
	assert.False(t, got.Temporary)
}

func TestCacheExportImport(t *testing.T) {
	src := NewRemoteDeviceCache()

	pinned := src.NewDevice(bthost.NewAddr("00:11:22:33:44:55"), true)
	require.True(t, src.TryMakeNonTemporary(pinned.ID))
	src.SetName(pinned.ID, "thermo")
	// Temporary devices never leave the process.
	src.NewDevice(bthost.NewAddr("00:11:22:33:44:56"), true)

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))

	dst := NewRemoteDeviceCache()
	require.NoError(t, dst.Import(&buf))

	devices := dst.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, pinned.ID, devices[0].ID)
	assert.Equal(t, "00:11:22:33:44:55", devices[0].Address.String())
	assert.Equal(t, "thermo", devices[0].Name)
	assert.False(t, devices[0].Temporary)
}

func TestCacheImportSkipsLiveCollisions(t *testing.T) {
	src := NewRemoteDeviceCache()
	pinned := src.NewDevice(bthost.NewAddr("00:11:22:33:44:55"), true)
	require.True(t, src.TryMakeNonTemporary(pinned.ID))

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))

	dst := NewRemoteDeviceCache()
	live := dst.NewDevice(bthost.NewAddr("00:11:22:33:44:55"), false)
	require.NoError(t, dst.Import(&buf))

	devices := dst.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, live.ID, devices[0].ID)
}
