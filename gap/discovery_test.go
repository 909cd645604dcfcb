package gap

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigado/bthost"
	"github.com/rigado/bthost/hci"
)

type fakeScanner struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error

	found   func(ScanResult)
	status  func(error)
	stopped func()
}

func (f *fakeScanner) StartScan(opts ScanOptions, found func(ScanResult), statusCb func(error), stopped func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.found = found
	f.status = statusCb
	f.stopped = stopped
	return nil
}

func (f *fakeScanner) StopScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeScanner) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func setupDiscovery(t *testing.T) (*LEDiscoveryManager, *fakeScanner, *RemoteDeviceCache) {
	t.Helper()
	runner := hci.NewTaskRunner()
	t.Cleanup(runner.Stop)
	scanner := &fakeScanner{}
	cache := NewRemoteDeviceCache()
	return NewDiscoveryManager(scanner, runner, cache), scanner, cache
}

func awaitSession(t *testing.T, ch chan *DiscoverySession) *DiscoverySession {
	t.Helper()
	select {
	case s := <-ch:
		require.NotNil(t, s)
		return s
	case <-time.After(time.Second):
		t.Fatal("session never delivered")
		return nil
	}
}

func TestDiscoveryCoalescesConcurrentStarts(t *testing.T) {
	m, scanner, _ := setupDiscovery(t)

	sessions := make(chan *DiscoverySession, 2)
	m.StartDiscovery(nil, func(s *DiscoverySession, err error) {
		require.NoError(t, err)
		sessions <- s
	})
	// Still starting; the second request piggybacks on the same scan.
	m.StartDiscovery(nil, func(s *DiscoverySession, err error) {
		require.NoError(t, err)
		sessions <- s
	})

	starts, _ := scanner.counts()
	assert.Equal(t, 1, starts)

	scanner.status(nil)
	s1 := awaitSession(t, sessions)
	s2 := awaitSession(t, sessions)

	// Only the last session's teardown stops the scan.
	s1.Stop()
	_, stops := scanner.counts()
	assert.Equal(t, 0, stops)
	s2.Stop()
	_, stops = scanner.counts()
	assert.Equal(t, 1, stops)

	// A second Stop is inert.
	s2.Stop()
	_, stops = scanner.counts()
	assert.Equal(t, 1, stops)
}

func TestDiscoveryStartFailure(t *testing.T) {
	m, scanner, _ := setupDiscovery(t)
	scanner.startErr = errors.New("controller refused")

	done := make(chan error, 1)
	m.StartDiscovery(nil, func(s *DiscoverySession, err error) {
		assert.Nil(t, s)
		done <- err
	})
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("failed start never resolved")
	}

	// The manager is idle again and a later start tries afresh.
	scanner.startErr = nil
	m.StartDiscovery(nil, func(*DiscoverySession, error) {})
	starts, _ := scanner.counts()
	assert.Equal(t, 1, starts)
}

func TestDiscoveryResultFanOutAndCache(t *testing.T) {
	m, scanner, cache := setupDiscovery(t)

	sessions := make(chan *DiscoverySession, 1)
	m.StartDiscovery(nil, func(s *DiscoverySession, err error) {
		require.NoError(t, err)
		sessions <- s
	})
	scanner.status(nil)
	s := awaitSession(t, sessions)

	got := make(chan ScanResult, 2)
	s.SetResultCallback(func(r ScanResult) { got <- r })

	result := ScanResult{
		Address:     bthost.NewAddr("00:11:22:33:44:55"),
		Connectable: true,
		RSSI:        -40,
		Data:        append(advField(0x01, 0x06), advField(0x09, 'H', 'R')...),
	}
	scanner.found(result)

	select {
	case r := <-got:
		assert.Equal(t, result.Address.String(), r.Address.String())
	case <-time.After(time.Second):
		t.Fatal("result never fanned out")
	}

	d, ok := cache.FindDeviceByAddress(result.Address)
	require.True(t, ok)
	assert.Equal(t, int8(-40), d.RSSI)
	assert.Equal(t, "HR", d.Name)
	assert.Equal(t, result.Data, d.AdvertisingData)
}

func TestDiscoverySessionFilter(t *testing.T) {
	m, scanner, _ := setupDiscovery(t)

	var filter DiscoveryFilter
	filter.SetNameSubstring("HR")

	sessions := make(chan *DiscoverySession, 1)
	m.StartDiscovery(&filter, func(s *DiscoverySession, err error) {
		require.NoError(t, err)
		sessions <- s
	})
	scanner.status(nil)
	s := awaitSession(t, sessions)

	got := make(chan ScanResult, 2)
	s.SetResultCallback(func(r ScanResult) { got <- r })

	scanner.found(ScanResult{
		Address: bthost.NewAddr("00:11:22:33:44:55"),
		RSSI:    -40,
		Data:    advField(0x09, 'o', 't', 'h', 'e', 'r'),
	})
	scanner.found(ScanResult{
		Address: bthost.NewAddr("00:11:22:33:44:56"),
		RSSI:    -40,
		Data:    advField(0x09, 'H', 'R'),
	})

	select {
	case r := <-got:
		assert.Equal(t, "00:11:22:33:44:56", r.Address.String())
	case <-time.After(time.Second):
		t.Fatal("matching result never delivered")
	}
	select {
	case r := <-got:
		t.Fatalf("filtered-out result delivered: %v", r.Address)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDiscoveryLateSessionReplaysCached(t *testing.T) {
	m, scanner, _ := setupDiscovery(t)

	sessions := make(chan *DiscoverySession, 2)
	m.StartDiscovery(nil, func(s *DiscoverySession, err error) {
		require.NoError(t, err)
		sessions <- s
	})
	scanner.status(nil)
	awaitSession(t, sessions)

	result := ScanResult{Address: bthost.NewAddr("00:11:22:33:44:55"), RSSI: -40}
	scanner.found(result)

	// A session attaching after the result was seen still receives it.
	m.StartDiscovery(nil, func(s *DiscoverySession, err error) {
		require.NoError(t, err)
		sessions <- s
	})
	late := awaitSession(t, sessions)

	got := make(chan ScanResult, 1)
	late.SetResultCallback(func(r ScanResult) { got <- r })
	select {
	case r := <-got:
		assert.Equal(t, result.Address.String(), r.Address.String())
	case <-time.After(time.Second):
		t.Fatal("cached result never replayed")
	}
}

func TestDiscoveryRestartsForStartDuringStop(t *testing.T) {
	m, scanner, _ := setupDiscovery(t)

	sessions := make(chan *DiscoverySession, 2)
	m.StartDiscovery(nil, func(s *DiscoverySession, err error) {
		require.NoError(t, err)
		sessions <- s
	})
	scanner.status(nil)
	s := awaitSession(t, sessions)

	stopped := scanner.stopped
	s.Stop()
	_, stops := scanner.counts()
	require.Equal(t, 1, stops)

	// A start request lands while the stop sequence is still in flight.
	m.StartDiscovery(nil, func(s *DiscoverySession, err error) {
		require.NoError(t, err)
		sessions <- s
	})
	starts, _ := scanner.counts()
	assert.Equal(t, 1, starts)

	stopped()
	starts, _ = scanner.counts()
	assert.Equal(t, 2, starts)

	scanner.status(nil)
	awaitSession(t, sessions)
}

func TestDiscoveryErrorNotifiesSessions(t *testing.T) {
	m, scanner, _ := setupDiscovery(t)

	sessions := make(chan *DiscoverySession, 1)
	m.StartDiscovery(nil, func(s *DiscoverySession, err error) {
		require.NoError(t, err)
		sessions <- s
	})
	scanner.status(nil)
	s := awaitSession(t, sessions)

	failed := make(chan struct{}, 1)
	s.SetErrorCallback(func() { failed <- struct{}{} })

	m.notifyError()
	select {
	case <-failed:
	case <-time.After(time.Second):
		t.Fatal("session never told discovery died")
	}

	// The dead session's Stop must not touch the scanner again.
	s.Stop()
	_, stops := scanner.counts()
	assert.Equal(t, 0, stops)
}
