package gap

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/hci"
	"github.com/rigado/bthost/hci/cmd"
	"github.com/rigado/bthost/hci/evt"
)

// ScanState is the legacy scanner's lifecycle state.
type ScanState int

const (
	ScanIdle ScanState = iota
	ScanInitiating
	ScanScanning
	ScanStopping
)

func (s ScanState) String() string {
	switch s {
	case ScanIdle:
		return "idle"
	case ScanInitiating:
		return "initiating"
	case ScanScanning:
		return "scanning"
	case ScanStopping:
		return "stopping"
	}
	return "unknown"
}

// Advertising PDU types in the legacy report's event type field.
const (
	advTypAdvInd        = 0x00
	advTypAdvDirectInd  = 0x01
	advTypAdvScanInd    = 0x02
	advTypAdvNonconnInd = 0x03
	advTypScanRsp       = 0x04
)

// ScanResult is one discovered device: its address, the connectable
// property derived from the PDU type, the last RSSI and the advertising
// payload, with the scan response appended when one arrived.
type ScanResult struct {
	Address     bthost.Addr
	Connectable bool
	RSSI        int8
	Data        []byte
}

// ScanOptions configures one scan run.
type ScanOptions struct {
	// Active scans request scan responses and hold advertisements until
	// the response arrives or the period ends.
	Active           bool
	Interval, Window uint16
	FilterDuplicates bool
	// Period of 0 scans until stopped. A finite period stops and restarts
	// the scan so the controller's duplicate filter resets.
	Period time.Duration
}

// pendingScanResult holds advertising data awaiting its scan response.
type pendingScanResult struct {
	result ScanResult
}

// LegacyScanner drives legacy LE scanning: Idle, Initiating, Scanning,
// Stopping and back to Idle, with a periodic non-terminal restart when a
// finite period is configured. State is only mutated on the gap runner.
type LegacyScanner struct {
	cc     *hci.CommandChannel
	runner *hci.TaskRunner

	mu      sync.Mutex
	state   ScanState
	opts    ScanOptions
	found   func(ScanResult)
	stopped func()

	// Keyed by address string; only touched on the runner.
	pending     map[string]*pendingScanResult
	periodTimer *time.Timer
	userStopped bool

	handlerID uint64
}

// NewLegacyScanner registers the advertising report handler and returns
// an idle scanner. All callbacks are delivered on runner.
func NewLegacyScanner(cc *hci.CommandChannel, runner *hci.TaskRunner) (*LegacyScanner, error) {
	s := &LegacyScanner{
		cc:      cc,
		runner:  runner,
		pending: make(map[string]*pendingScanResult),
	}
	s.handlerID = cc.AddLEMetaEventHandler(evt.LEAdvertisingReportSubCode, s.onAdvertisingReport, runner)
	if s.handlerID == 0 {
		return nil, errors.New("advertising report handler already taken")
	}
	return s, nil
}

// Close unregisters the scanner's event handler.
func (s *LegacyScanner) Close() {
	s.cc.RemoveEventHandler(s.handlerID)
}

// State returns the current scan state.
func (s *LegacyScanner) State() ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartScan begins scanning. It is rejected unless the scanner is idle.
// statusCb fires once when the controller confirmed (or refused) the
// scan; found fires per completed result; stopped fires when a scan that
// was successfully started later returns to idle.
func (s *LegacyScanner) StartScan(opts ScanOptions, found func(ScanResult), statusCb func(error), stopped func()) error {
	s.mu.Lock()
	if s.state != ScanIdle {
		s.mu.Unlock()
		return errors.Errorf("scan already in progress (%v)", s.state)
	}
	s.state = ScanInitiating
	s.opts = opts
	s.found = found
	s.stopped = stopped
	s.userStopped = false
	s.mu.Unlock()

	scanType := uint8(0x00)
	if opts.Active {
		scanType = 0x01
	}

	seq := hci.NewSequentialCommandRunner(s.cc, s.runner)
	seq.QueueCommand(&cmd.LESetScanParameters{
		LEScanType:     scanType,
		LEScanInterval: opts.Interval,
		LEScanWindow:   opts.Window,
	}, nil)
	seq.QueueCommand(&cmd.LESetScanEnable{
		LEScanEnable:     1,
		FilterDuplicates: boolToByte(opts.FilterDuplicates),
	}, nil)
	seq.RunCommands(func(err error) {
		s.mu.Lock()
		if err != nil {
			s.state = ScanIdle
			s.mu.Unlock()
			statusCb(err)
			return
		}
		s.state = ScanScanning
		s.mu.Unlock()
		s.armPeriodTimer()
		statusCb(nil)
	})
	return nil
}

// StopScan terminates the scan. Pending unmatched advertisements are
// discarded for a user-initiated stop.
func (s *LegacyScanner) StopScan() error {
	s.mu.Lock()
	if s.state != ScanScanning {
		s.mu.Unlock()
		return errors.Errorf("no scan to stop (%v)", s.state)
	}
	s.state = ScanStopping
	s.userStopped = true
	s.mu.Unlock()

	s.runner.Post(func() {
		s.cancelPeriodTimer()
		s.pending = make(map[string]*pendingScanResult)
		s.sendDisable(func() {
			s.mu.Lock()
			s.state = ScanIdle
			stopped := s.stopped
			s.mu.Unlock()
			if stopped != nil {
				stopped()
			}
		})
	})
	return nil
}

func (s *LegacyScanner) sendDisable(done func()) {
	id := s.cc.SendCommand(&cmd.LESetScanEnable{LEScanEnable: 0},
		func(id uint64, err error) {
			if err != nil {
				logger.Error("can't disable scan:", err)
				done()
			}
		},
		func(id uint64, p hci.EventPacket) { done() },
		s.runner, evt.CommandCompleteCode)
	if id == 0 {
		done()
	}
}

// armPeriodTimer schedules the period-end restart. Runs once the scan is
// live; reset on every restart.
func (s *LegacyScanner) armPeriodTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.Period <= 0 {
		return
	}
	s.periodTimer = time.AfterFunc(s.opts.Period, func() {
		s.runner.Post(s.onPeriodEnd)
	})
}

func (s *LegacyScanner) cancelPeriodTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.periodTimer != nil {
		s.periodTimer.Stop()
		s.periodTimer = nil
	}
}

// onPeriodEnd flushes results still waiting on a scan response and
// restarts the scan so duplicate filtering starts over. The scanner never
// appears to leave Scanning. Runs on the runner.
func (s *LegacyScanner) onPeriodEnd() {
	s.mu.Lock()
	if s.state != ScanScanning {
		s.mu.Unlock()
		return
	}
	active := s.opts.Active
	found := s.found
	filterDup := s.opts.FilterDuplicates
	s.mu.Unlock()

	if active && found != nil {
		for _, p := range s.pending {
			found(p.result)
		}
	}
	s.pending = make(map[string]*pendingScanResult)

	s.sendDisable(func() {
		s.mu.Lock()
		if s.state != ScanScanning {
			// A stop raced the restart; leave the scan down.
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		id := s.cc.SendCommand(&cmd.LESetScanEnable{
			LEScanEnable:     1,
			FilterDuplicates: boolToByte(filterDup),
		},
			func(id uint64, err error) {
				if err != nil {
					logger.Error("can't restart periodic scan:", err)
				}
			},
			func(id uint64, p hci.EventPacket) { s.armPeriodTimer() },
			s.runner, evt.CommandCompleteCode)
		if id == 0 {
			logger.Error("can't queue periodic scan restart")
		}
	})
}

// onAdvertisingReport handles one LE meta advertising report event. Runs
// on the runner.
func (s *LegacyScanner) onAdvertisingReport(p hci.EventPacket) {
	s.mu.Lock()
	if s.state != ScanScanning {
		s.mu.Unlock()
		return
	}
	active := s.opts.Active
	found := s.found
	s.mu.Unlock()

	e := evt.LEAdvertisingReport(p.Payload())
	n, err := e.NumReportsWErr()
	if err != nil {
		logger.Warn("truncated advertising report")
		return
	}

	for i := 0; i < int(n); i++ {
		typ, err := e.EventTypeWErr(i)
		if err != nil {
			logger.Warn("truncated advertising report entry")
			return
		}
		addrBytes, _ := e.AddressWErr(i)
		data, _ := e.DataWErr(i)
		rssi, _ := e.RSSIWErr(i)

		addrType, _ := e.AddressTypeWErr(i)
		var address bthost.Addr = bthost.AddrFromBytes(addrBytes)
		if addrType == 0x01 {
			address = bthost.RandomAddress{Addr: address}
		}

		switch typ {
		case advTypAdvDirectInd:
			// Directed advertisements target a specific peer; discovery
			// ignores them.
			logger.Debugf("ignoring directed advertisement from %v", address)

		case advTypScanRsp:
			pr, ok := s.pending[address.String()]
			if !ok {
				// Scan response with no advertisement on record.
				continue
			}
			delete(s.pending, address.String())
			pr.result.Data = append(pr.result.Data, data...)
			pr.result.RSSI = rssi
			if found != nil {
				found(pr.result)
			}

		case advTypAdvInd, advTypAdvScanInd:
			result := ScanResult{
				Address:     address,
				Connectable: typ == advTypAdvInd,
				RSSI:        rssi,
				Data:        append([]byte(nil), data...),
			}
			if active {
				// Hold for the scan response; a repeat advertisement from
				// the same address replaces the held data.
				s.pending[address.String()] = &pendingScanResult{result: result}
				continue
			}
			if found != nil {
				found(result)
			}

		default:
			// Non-connectable, non-scannable: report as-is.
			if found != nil {
				found(ScanResult{
					Address: address,
					RSSI:    rssi,
					Data:    append([]byte(nil), data...),
				})
			}
		}
	}
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
