package gap

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/bthost/adv"
	"github.com/rigado/bthost/hci"
)

const defaultScanPeriod = 10 * time.Second

// DiscoverySession is a reference-counting handle on LE discovery. The
// underlying scan runs for as long as at least one session is alive.
type DiscoverySession struct {
	m      *LEDiscoveryManager
	filter *DiscoveryFilter

	mu       sync.Mutex
	active   bool
	resultCb func(ScanResult)
	errorCb  func()
}

// SetResultCallback registers cb for this session's filtered results.
// Results already cached by the manager are replayed immediately.
func (s *DiscoverySession) SetResultCallback(cb func(ScanResult)) {
	s.mu.Lock()
	s.resultCb = cb
	s.mu.Unlock()
	s.m.replayCached(s)
}

// SetErrorCallback registers cb to fire if discovery dies underneath the
// session (scan failure or transport loss).
func (s *DiscoverySession) SetErrorCallback(cb func()) {
	s.mu.Lock()
	s.errorCb = cb
	s.mu.Unlock()
}

// Stop releases the session. The last live session stopping tears the
// scan down. Stopping twice is a no-op.
func (s *DiscoverySession) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()
	s.m.removeSession(s)
}

func (s *DiscoverySession) notify(r ScanResult) {
	s.mu.Lock()
	cb := s.resultCb
	filter := s.filter
	s.mu.Unlock()
	if cb == nil {
		return
	}
	if filter != nil && !filter.MatchLowEnergyResult(r.Connectable, r.RSSI, r.Data) {
		return
	}
	cb(r)
}

type discoveryState int

const (
	discoveryIdle discoveryState = iota
	discoveryStarting
	discoveryActive
	discoveryStopping
)

type pendingStart struct {
	filter *DiscoveryFilter
	cb     func(*DiscoverySession, error)
}

// NewDiscoveryManager wires the manager to its scanner. Scan results
// update cache as they arrive, before session callbacks run.
func NewDiscoveryManager(scanner Scanner, runner *hci.TaskRunner, cache *RemoteDeviceCache) *LEDiscoveryManager {
	return &LEDiscoveryManager{
		scanner: scanner,
		runner:  runner,
		cache:   cache,
		cached:  make(map[string]ScanResult),
		period:  defaultScanPeriod,
	}
}

// Scanner is the slice of LegacyScanner the manager drives.
type Scanner interface {
	StartScan(opts ScanOptions, found func(ScanResult), statusCb func(error), stopped func()) error
	StopScan() error
}

// LEDiscoveryManager multiplexes any number of DiscoverySessions onto one
// scanner. Start requests arriving while a start or stop sequence is in
// flight are queued and resolved together once the transition lands, so
// an early session's teardown can never strand a later request.
type LEDiscoveryManager struct {
	scanner Scanner
	runner  *hci.TaskRunner
	cache   *RemoteDeviceCache

	mu       sync.Mutex
	state    discoveryState
	sessions []*DiscoverySession
	pending  []pendingStart
	cached   map[string]ScanResult
	period   time.Duration
}

// SetScanPeriod overrides the duplicate-filter refresh period for scans
// the manager starts.
func (m *LEDiscoveryManager) SetScanPeriod(d time.Duration) {
	m.mu.Lock()
	m.period = d
	m.mu.Unlock()
}

// StartDiscovery requests a discovery session. cb always fires on the gap
// runner: with a live session once scanning is up, or with the error that
// kept it down. filter may be nil to receive everything.
func (m *LEDiscoveryManager) StartDiscovery(filter *DiscoveryFilter, cb func(*DiscoverySession, error)) {
	m.mu.Lock()
	switch m.state {
	case discoveryActive:
		// Hand the session back asynchronously so callers observe results
		// only after StartDiscovery returned.
		s := m.newSessionLocked(filter)
		m.mu.Unlock()
		m.runner.Post(func() { cb(s, nil) })

	case discoveryStarting, discoveryStopping:
		m.pending = append(m.pending, pendingStart{filter: filter, cb: cb})
		m.mu.Unlock()

	default: // discoveryIdle
		m.pending = append(m.pending, pendingStart{filter: filter, cb: cb})
		m.state = discoveryStarting
		period := m.period
		m.mu.Unlock()
		m.startScan(period)
	}
}

func (m *LEDiscoveryManager) startScan(period time.Duration) {
	err := m.scanner.StartScan(ScanOptions{
		Active:           true,
		Interval:         0x0010,
		Window:           0x0010,
		FilterDuplicates: true,
		Period:           period,
	}, m.onScanResult, m.onScanStatus, m.onScanStopped)
	if err != nil {
		m.onScanStatus(err)
	}
}

// onScanStatus resolves every queued start request together. Runs on the
// gap runner.
func (m *LEDiscoveryManager) onScanStatus(err error) {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil

	if err != nil {
		m.state = discoveryIdle
		m.mu.Unlock()
		for _, p := range pending {
			p.cb(nil, errors.Wrap(err, "start discovery"))
		}
		return
	}

	m.state = discoveryActive
	sessions := make([]*DiscoverySession, 0, len(pending))
	for _, p := range pending {
		sessions = append(sessions, m.newSessionLocked(p.filter))
	}
	m.mu.Unlock()

	for i, p := range pending {
		p.cb(sessions[i], nil)
	}
}

func (m *LEDiscoveryManager) newSessionLocked(filter *DiscoveryFilter) *DiscoverySession {
	s := &DiscoverySession{m: m, filter: filter, active: true}
	m.sessions = append(m.sessions, s)
	return s
}

func (m *LEDiscoveryManager) removeSession(s *DiscoverySession) {
	m.mu.Lock()
	for i, live := range m.sessions {
		if live == s {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			break
		}
	}
	if len(m.sessions) > 0 || m.state != discoveryActive {
		m.mu.Unlock()
		return
	}
	m.state = discoveryStopping
	m.mu.Unlock()

	if err := m.scanner.StopScan(); err != nil {
		logger.Error("can't stop scan:", err)
		m.onScanStopped()
	}
}

// onScanStopped completes a teardown. Start requests that arrived during
// the stop sequence kick the scan straight back off.
func (m *LEDiscoveryManager) onScanStopped() {
	m.mu.Lock()
	m.state = discoveryIdle
	m.cached = make(map[string]ScanResult)
	restart := len(m.pending) > 0
	period := m.period
	if restart {
		m.state = discoveryStarting
	}
	m.mu.Unlock()

	if restart {
		m.startScan(period)
	}
}

// onScanResult updates the device cache, remembers the result for
// late-attaching sessions and fans it out. Runs on the gap runner.
func (m *LEDiscoveryManager) onScanResult(r ScanResult) {
	if m.cache != nil {
		d := m.cache.NewDevice(r.Address, r.Connectable)
		m.cache.SetAdvertisingData(d.ID, r.RSSI, r.Data)
		if rec, err := parseName(r.Data); err == nil && rec != "" {
			m.cache.SetName(d.ID, rec)
		}
	}

	m.mu.Lock()
	m.cached[r.Address.String()] = r
	sessions := append([]*DiscoverySession(nil), m.sessions...)
	m.mu.Unlock()

	for _, s := range sessions {
		s.notify(r)
	}
}

// replayCached delivers already-seen results to a session that attached
// its callback late.
func (m *LEDiscoveryManager) replayCached(s *DiscoverySession) {
	m.mu.Lock()
	results := make([]ScanResult, 0, len(m.cached))
	for _, r := range m.cached {
		results = append(results, r)
	}
	m.mu.Unlock()

	m.runner.Post(func() {
		for _, r := range results {
			s.notify(r)
		}
	})
}

func parseName(data []byte) (string, error) {
	rec, err := adv.ParseRecords(data)
	if err != nil {
		return "", err
	}
	return rec.LocalName(), nil
}

// notifyError tells every live session discovery died under it.
func (m *LEDiscoveryManager) notifyError() {
	m.mu.Lock()
	sessions := append([]*DiscoverySession(nil), m.sessions...)
	m.sessions = nil
	m.state = discoveryIdle
	m.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		s.active = false
		cb := s.errorCb
		s.mu.Unlock()
		if cb != nil {
			cb()
		}
	}
}
