// Package gap implements the controller-facing Generic Access Profile
// layer: adapter initialization, LE discovery and LE connection
// establishment on top of the hci transport.
package gap

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/hci"
	"github.com/rigado/bthost/hci/cmd"
)

// AdapterInitState is the adapter's lifecycle state.
type AdapterInitState int

const (
	AdapterNotInitialized AdapterInitState = iota
	AdapterInitializing
	AdapterInitialized
)

func (s AdapterInitState) String() string {
	switch s {
	case AdapterNotInitialized:
		return "not initialized"
	case AdapterInitializing:
		return "initializing"
	case AdapterInitialized:
		return "initialized"
	}
	return "unknown"
}

// Feature bit positions within LMP feature page 0.
const (
	featureLESupported       = 8*4 + 6 // octet 4, bit 6
	featureBREDRNotSupported = 8*4 + 5 // octet 4, bit 5
	featureExtendedFeatures  = 8*7 + 7 // octet 7, bit 7
)

// Supported-commands bitmap position for Read Buffer Size: octet 14,
// bit 7.
const (
	cmdOctetReadBufferSize = 14
	cmdBitReadBufferSize   = 7
)

// Default event masks: the mandatory baseline plus everything this stack
// consumes (disconnection, encryption change, hardware error, completed
// packets, LE meta).
const (
	defaultEventMask   = 0x3DBFF807FFFBFFFF
	defaultLEEventMask = 0x000000000000001F
)

// AdapterState is the capability snapshot accumulated during
// initialization. It stops changing once the adapter is initialized and
// resets to zero when initialization fails.
type AdapterState struct {
	HCIVersion        uint8
	SupportedCommands [64]byte
	LMPFeatures       [3]uint64
	MaxLMPFeaturePage uint8
	Address           bthost.Addr

	BREDRBufferInfo hci.DataBufferInfo
	LEBufferInfo    hci.DataBufferInfo

	LEFeatures uint64
	LEStates   [8]byte
}

// HasLMPFeatureBit reports whether page 0 feature bit n is set.
func (s *AdapterState) HasLMPFeatureBit(n uint) bool {
	return s.LMPFeatures[0]&(1<<n) != 0
}

// SupportsCommand reports whether the supported-commands bitmap has the
// given octet/bit set.
func (s *AdapterState) SupportsCommand(octet int, bit uint) bool {
	return s.SupportedCommands[octet]&(1<<bit) != 0
}

// Adapter drives the controller from cold to ready in three sequential
// command batches, then exposes discovery and connections. It owns the
// gap task runner all higher-level callbacks are delivered on.
type Adapter struct {
	transport *hci.Transport
	runner    *hci.TaskRunner

	mu        sync.Mutex
	initState AdapterInitState
	state     AdapterState

	conns map[uint16]hci.Connection

	scanner   *LegacyScanner
	discovery *LEDiscoveryManager
	connector *Connector
	cache     *RemoteDeviceCache

	closedCb func()
}

// NewAdapter returns an uninitialized adapter over dev. The transport
// closed callback is wired here, once, and is the owner's only signal
// that the controller went away after a successful initialization.
func NewAdapter(dev hci.DeviceWrapper) *Adapter {
	a := &Adapter{
		transport: hci.NewTransport(dev),
		runner:    hci.NewTaskRunner(),
		conns:     make(map[uint16]hci.Connection),
		cache:     NewRemoteDeviceCache(),
	}
	a.transport.SetClosedCallback(a.onTransportClosed, a.runner)
	return a
}

// SetClosedCallback registers cb to run on the gap runner when the
// transport dies underneath an initialized adapter.
func (a *Adapter) SetClosedCallback(cb func()) {
	a.mu.Lock()
	a.closedCb = cb
	a.mu.Unlock()
}

// State returns a copy of the capability snapshot.
func (a *Adapter) State() AdapterState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// InitState returns the adapter lifecycle state.
func (a *Adapter) InitState() AdapterInitState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initState
}

// DeviceCache returns the remote device cache.
func (a *Adapter) DeviceCache() *RemoteDeviceCache { return a.cache }

// Discovery returns the discovery manager, nil before initialization.
func (a *Adapter) Discovery() *LEDiscoveryManager {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discovery
}

// Connector returns the LE connector, nil before initialization.
func (a *Adapter) Connector() *Connector {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connector
}

// Transport exposes the underlying transport.
func (a *Adapter) Transport() *hci.Transport { return a.transport }

// Initialize runs the three-phase startup sequence and reports the
// outcome once through cb on the gap runner. Failure at any phase tears
// everything back down to NotInitialized with no partial capability
// state retained.
func (a *Adapter) Initialize(cb func(error)) error {
	a.mu.Lock()
	if a.initState != AdapterNotInitialized {
		a.mu.Unlock()
		return hci.ErrAlreadyInitialized
	}
	a.initState = AdapterInitializing
	a.mu.Unlock()

	if err := a.transport.Initialize(); err != nil {
		a.cleanUp()
		return errors.Wrap(err, "transport")
	}

	a.runPhase1(cb)
	return nil
}

// ShutDown stops discovery, closes handlers and tears the transport
// down. Safe to call in any state.
func (a *Adapter) ShutDown() {
	a.mu.Lock()
	scanner, connector := a.scanner, a.connector
	a.scanner, a.discovery, a.connector = nil, nil, nil
	a.initState = AdapterNotInitialized
	a.state = AdapterState{}
	a.mu.Unlock()

	if scanner != nil {
		scanner.Close()
	}
	if connector != nil {
		connector.Close()
	}
	a.transport.ShutDown()
	a.runner.Stop()
}

// AddConnection registers a live link so the data channel can route its
// packets and credits.
func (a *Adapter) AddConnection(c hci.Connection) {
	a.mu.Lock()
	a.conns[c.Handle()] = c
	a.mu.Unlock()
}

// RemoveConnection drops a link from the registry.
func (a *Adapter) RemoveConnection(handle uint16) {
	a.mu.Lock()
	delete(a.conns, handle)
	a.mu.Unlock()
}

func (a *Adapter) lookupConnection(handle uint16) hci.Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conns[handle]
}

// runPhase1 resets the controller and reads its identity: version,
// supported commands, LMP features page 0 and the controller address.
func (a *Adapter) runPhase1(cb func(error)) {
	seq := hci.NewSequentialCommandRunner(a.transport.CommandChannel(), a.runner)

	seq.QueueCommand(&cmd.Reset{}, nil)
	seq.QueueCommand(&cmd.ReadLocalVersionInformation{}, func(rp []byte) {
		var v cmd.ReadLocalVersionInformationRP
		if v.Unmarshal(rp) == nil {
			a.mu.Lock()
			a.state.HCIVersion = v.HCIVersion
			a.mu.Unlock()
		}
	})
	seq.QueueCommand(&cmd.ReadLocalSupportedCommands{}, func(rp []byte) {
		var v cmd.ReadLocalSupportedCommandsRP
		if v.Unmarshal(rp) == nil {
			a.mu.Lock()
			a.state.SupportedCommands = v.SupportedCommands
			a.mu.Unlock()
		}
	})
	seq.QueueCommand(&cmd.ReadLocalSupportedFeatures{}, func(rp []byte) {
		var v cmd.ReadLocalSupportedFeaturesRP
		if v.Unmarshal(rp) == nil {
			a.mu.Lock()
			a.state.LMPFeatures[0] = v.LMPFeatures
			a.mu.Unlock()
		}
	})
	seq.QueueCommand(&cmd.ReadBDADDR{}, func(rp []byte) {
		var v cmd.ReadBDADDRRP
		if v.Unmarshal(rp) == nil {
			a.mu.Lock()
			a.state.Address = bthost.AddrFromBytes(v.BDADDR)
			a.mu.Unlock()
		}
	})

	seq.RunCommands(func(err error) {
		if err != nil {
			a.failInit(cb, errors.Wrap(err, "init phase 1"))
			return
		}
		a.runPhase2(cb)
	})
}

// runPhase2 requires LE support and reads the buffer and feature state
// that phase 3 needs.
func (a *Adapter) runPhase2(cb func(error)) {
	a.mu.Lock()
	leSupported := a.state.HasLMPFeatureBit(featureLESupported)
	bredrSupported := !a.state.HasLMPFeatureBit(featureBREDRNotSupported)
	readBufferSize := bredrSupported && a.state.SupportsCommand(cmdOctetReadBufferSize, cmdBitReadBufferSize)
	extendedFeatures := a.state.HasLMPFeatureBit(featureExtendedFeatures)
	a.mu.Unlock()

	if !leSupported {
		a.failInit(cb, errors.New("controller does not support LE"))
		return
	}

	seq := hci.NewSequentialCommandRunner(a.transport.CommandChannel(), a.runner)

	if readBufferSize {
		seq.QueueCommand(&cmd.ReadBufferSize{}, func(rp []byte) {
			var v cmd.ReadBufferSizeRP
			if v.Unmarshal(rp) == nil {
				a.mu.Lock()
				a.state.BREDRBufferInfo = hci.DataBufferInfo{
					MaxDataLength: int(v.HCACLDataPacketLength),
					MaxNumPackets: int(v.HCTotalNumACLDataPackets),
				}
				a.mu.Unlock()
			}
		})
	}
	seq.QueueCommand(&cmd.LEReadBufferSize{}, func(rp []byte) {
		var v cmd.LEReadBufferSizeRP
		if v.Unmarshal(rp) == nil {
			a.mu.Lock()
			a.state.LEBufferInfo = hci.DataBufferInfo{
				MaxDataLength: int(v.HCLEDataPacketLength),
				MaxNumPackets: int(v.HCTotalNumLEDataPackets),
			}
			a.mu.Unlock()
		}
	})
	seq.QueueCommand(&cmd.LEReadLocalSupportedFeatures{}, func(rp []byte) {
		var v cmd.LEReadLocalSupportedFeaturesRP
		if v.Unmarshal(rp) == nil {
			a.mu.Lock()
			a.state.LEFeatures = v.LEFeatures
			a.mu.Unlock()
		}
	})
	seq.QueueCommand(&cmd.LEReadSupportedStates{}, func(rp []byte) {
		var v cmd.LEReadSupportedStatesRP
		if v.Unmarshal(rp) == nil {
			a.mu.Lock()
			a.state.LEStates = v.LEStates
			a.mu.Unlock()
		}
	})
	if extendedFeatures {
		seq.QueueCommand(&cmd.ReadLocalExtendedFeatures{PageNumber: 1}, func(rp []byte) {
			var v cmd.ReadLocalExtendedFeaturesRP
			if v.Unmarshal(rp) == nil {
				a.mu.Lock()
				a.state.LMPFeatures[1] = v.ExtendedLMPFeatures
				a.state.MaxLMPFeaturePage = v.MaximumPageNumber
				a.mu.Unlock()
			}
		})
	}

	seq.RunCommands(func(err error) {
		if err != nil {
			a.failInit(cb, errors.Wrap(err, "init phase 2"))
			return
		}
		a.runPhase3(cb)
	})
}

// runPhase3 brings up the data path and event masks, then declares the
// adapter initialized.
func (a *Adapter) runPhase3(cb func(error)) {
	a.mu.Lock()
	bredrInfo := a.state.BREDRBufferInfo
	leInfo := a.state.LEBufferInfo
	bredrSupported := !a.state.HasLMPFeatureBit(featureBREDRNotSupported)
	maxPage := a.state.MaxLMPFeaturePage
	a.mu.Unlock()

	if !bredrInfo.IsAvailable() && !leInfo.IsAvailable() {
		a.failInit(cb, errors.New("controller reported no usable data buffers"))
		return
	}

	if err := a.transport.InitializeACLDataChannel(bredrInfo, leInfo, a.lookupConnection); err != nil {
		a.failInit(cb, errors.Wrap(err, "acl data channel"))
		return
	}

	seq := hci.NewSequentialCommandRunner(a.transport.CommandChannel(), a.runner)
	seq.QueueCommand(&cmd.SetEventMask{EventMask: defaultEventMask}, nil)
	seq.QueueCommand(&cmd.LESetEventMask{LEEventMask: defaultLEEventMask}, nil)
	if bredrSupported {
		// Dual-mode controller; tell it the host speaks LE too.
		seq.QueueCommand(&cmd.WriteLEHostSupport{LESupportedHost: 1}, nil)
	}
	if maxPage >= 2 {
		seq.QueueCommand(&cmd.ReadLocalExtendedFeatures{PageNumber: 2}, func(rp []byte) {
			var v cmd.ReadLocalExtendedFeaturesRP
			if v.Unmarshal(rp) == nil {
				a.mu.Lock()
				a.state.LMPFeatures[2] = v.ExtendedLMPFeatures
				a.mu.Unlock()
			}
		})
	}

	seq.RunCommands(func(err error) {
		if err != nil {
			a.failInit(cb, errors.Wrap(err, "init phase 3"))
			return
		}
		if err := a.finishInit(); err != nil {
			a.failInit(cb, err)
			return
		}
		cb(nil)
	})
}

// finishInit constructs the higher-level managers once the command and
// data paths are live.
func (a *Adapter) finishInit() error {
	cc := a.transport.CommandChannel()

	scanner, err := NewLegacyScanner(cc, a.runner)
	if err != nil {
		return err
	}
	connector, err := NewConnector(cc, a.runner)
	if err != nil {
		scanner.Close()
		return err
	}

	a.mu.Lock()
	a.scanner = scanner
	a.connector = connector
	a.discovery = NewDiscoveryManager(scanner, a.runner, a.cache)
	a.initState = AdapterInitialized
	a.mu.Unlock()
	return nil
}

// failInit reports an initialization failure after tearing partial state
// down. cb runs on the gap runner.
func (a *Adapter) failInit(cb func(error), err error) {
	logger.Error("adapter initialization failed:", err)
	a.cleanUp()
	a.runner.Post(func() { cb(err) })
}

// cleanUp drops every trace of a failed initialization: capability
// state, managers and the transport itself.
func (a *Adapter) cleanUp() {
	a.mu.Lock()
	scanner, connector := a.scanner, a.connector
	a.scanner, a.discovery, a.connector = nil, nil, nil
	a.initState = AdapterNotInitialized
	a.state = AdapterState{}
	a.mu.Unlock()

	if scanner != nil {
		scanner.Close()
	}
	if connector != nil {
		connector.Close()
	}
	a.transport.ShutDown()
}

// onTransportClosed handles the controller disappearing. Runs on the gap
// runner.
func (a *Adapter) onTransportClosed() {
	a.mu.Lock()
	initialized := a.initState == AdapterInitialized
	discovery := a.discovery
	cb := a.closedCb
	a.mu.Unlock()

	if !initialized {
		return
	}
	logger.Error("transport closed underneath initialized adapter")
	if discovery != nil {
		discovery.notifyError()
	}
	if cb != nil {
		cb()
	}
}
