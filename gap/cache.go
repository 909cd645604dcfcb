package gap

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rigado/bthost"
)

// deviceTTL is how long a temporary device stays cached after it was last
// seen.
const deviceTTL = 60 * time.Second

var deviceIDCounter uint64

// RemoteDevice is one peer the stack has observed. All fields are
// maintained by the cache; readers get copies.
type RemoteDevice struct {
	ID          string
	Address     bthost.Addr
	Connectable bool

	RSSI            int8
	AdvertisingData []byte
	Name            string

	// Connected devices and devices made non-temporary explicitly never
	// expire.
	Temporary bool
	Connected bool

	lastSeen time.Time
}

// RemoteDeviceCache indexes every peer seen through discovery or
// connections, by identifier and by address. Temporary entries expire
// once they have not been seen for a minute.
type RemoteDeviceCache struct {
	mu        sync.Mutex
	byID      map[string]*RemoteDevice
	byAddress map[string]string

	updateCb func(RemoteDevice)

	now func() time.Time
}

// NewRemoteDeviceCache returns an empty cache.
func NewRemoteDeviceCache() *RemoteDeviceCache {
	return &RemoteDeviceCache{
		byID:      make(map[string]*RemoteDevice),
		byAddress: make(map[string]string),
		now:       time.Now,
	}
}

// SetUpdateCallback registers cb to observe every device mutation. The
// callback receives a copy and runs under no cache lock guarantee about
// ordering with concurrent mutations.
func (c *RemoteDeviceCache) SetUpdateCallback(cb func(RemoteDevice)) {
	c.mu.Lock()
	c.updateCb = cb
	c.mu.Unlock()
}

// NewDevice adds a device for address, or returns the existing entry when
// the address is already cached.
func (c *RemoteDeviceCache) NewDevice(address bthost.Addr, connectable bool) RemoteDevice {
	c.mu.Lock()
	c.expireLocked()
	if id, ok := c.byAddress[address.String()]; ok {
		d := *c.byID[id]
		c.mu.Unlock()
		return d
	}

	d := &RemoteDevice{
		ID:          fmt.Sprintf("dev-%d", atomic.AddUint64(&deviceIDCounter, 1)),
		Address:     address,
		Connectable: connectable,
		RSSI:        RSSIInvalid,
		Temporary:   true,
		lastSeen:    c.now(),
	}
	c.byID[d.ID] = d
	c.byAddress[address.String()] = d.ID
	cp := *d
	cb := c.updateCb
	c.mu.Unlock()

	if cb != nil {
		cb(cp)
	}
	return cp
}

// FindDeviceByID looks a device up by identifier.
func (c *RemoteDeviceCache) FindDeviceByID(id string) (RemoteDevice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	d, ok := c.byID[id]
	if !ok {
		return RemoteDevice{}, false
	}
	return *d, true
}

// FindDeviceByAddress looks a device up by its BD_ADDR.
func (c *RemoteDeviceCache) FindDeviceByAddress(address bthost.Addr) (RemoteDevice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	id, ok := c.byAddress[address.String()]
	if !ok {
		return RemoteDevice{}, false
	}
	return *c.byID[id], true
}

// Devices returns a snapshot of every live entry.
func (c *RemoteDeviceCache) Devices() []RemoteDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	out := make([]RemoteDevice, 0, len(c.byID))
	for _, d := range c.byID {
		out = append(out, *d)
	}
	return out
}

// SetAdvertisingData records fresh advertising data for a device and
// refreshes its expiry.
func (c *RemoteDeviceCache) SetAdvertisingData(id string, rssi int8, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	c.update(id, func(d *RemoteDevice) {
		d.RSSI = rssi
		d.AdvertisingData = cp
	})
}

// SetName records the device name learned from advertising or from the
// peer directly.
func (c *RemoteDeviceCache) SetName(id string, name string) {
	c.update(id, func(d *RemoteDevice) { d.Name = name })
}

// SetConnected marks a device connected or disconnected. A connected
// device stops being temporary; disconnecting returns it to temporary
// unless it was pinned with TryMakeNonTemporary.
func (c *RemoteDeviceCache) SetConnected(id string, connected bool) {
	c.update(id, func(d *RemoteDevice) {
		if connected {
			d.Connected = true
			d.Temporary = false
		} else if d.Connected {
			d.Connected = false
			d.Temporary = true
		}
	})
}

// TryMakeNonTemporary pins a device so it never expires. Only connectable
// devices with a public address can be pinned.
func (c *RemoteDeviceCache) TryMakeNonTemporary(id string) bool {
	ok := false
	c.update(id, func(d *RemoteDevice) {
		if !d.Connectable {
			return
		}
		if _, random := d.Address.(bthost.RandomAddress); random {
			return
		}
		d.Temporary = false
		ok = true
	})
	return ok
}

func (c *RemoteDeviceCache) update(id string, f func(*RemoteDevice)) {
	c.mu.Lock()
	d, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	f(d)
	d.lastSeen = c.now()
	cp := *d
	cb := c.updateCb
	c.mu.Unlock()

	if cb != nil {
		cb(cp)
	}
}

// expireLocked drops temporary entries not seen within deviceTTL. Callers
// hold c.mu.
func (c *RemoteDeviceCache) expireLocked() {
	cutoff := c.now().Add(-deviceTTL)
	for id, d := range c.byID {
		if d.Temporary && !d.Connected && d.lastSeen.Before(cutoff) {
			delete(c.byID, id)
			delete(c.byAddress, d.Address.String())
		}
	}
}

// exportedDevice is the stable JSON form of a cached device.
type exportedDevice struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	RandomAddr  bool   `json:"random_address,omitempty"`
	Connectable bool   `json:"connectable"`
	Name        string `json:"name,omitempty"`
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Export writes the non-temporary entries as JSON, so known devices
// survive a restart.
func (c *RemoteDeviceCache) Export(w io.Writer) error {
	c.mu.Lock()
	var out []exportedDevice
	for _, d := range c.byID {
		if d.Temporary {
			continue
		}
		_, random := d.Address.(bthost.RandomAddress)
		out = append(out, exportedDevice{
			ID:          d.ID,
			Address:     d.Address.String(),
			RandomAddr:  random,
			Connectable: d.Connectable,
			Name:        d.Name,
		})
	}
	c.mu.Unlock()

	enc := json.NewEncoder(w)
	return errors.Wrap(enc.Encode(out), "export device cache")
}

// Import merges previously exported entries into the cache. Imported
// devices are non-temporary; entries colliding with a live address are
// skipped.
func (c *RemoteDeviceCache) Import(r io.Reader) error {
	var in []exportedDevice
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return errors.Wrap(err, "import device cache")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range in {
		if _, ok := c.byAddress[e.Address]; ok {
			continue
		}
		var address bthost.Addr = bthost.NewAddr(e.Address)
		if e.RandomAddr {
			address = bthost.RandomAddress{Addr: address}
		}
		d := &RemoteDevice{
			ID:          e.ID,
			Address:     address,
			Connectable: e.Connectable,
			Name:        e.Name,
			RSSI:        RSSIInvalid,
			lastSeen:    c.now(),
		}
		c.byID[d.ID] = d
		c.byAddress[e.Address] = d.ID
	}
	return nil
}
