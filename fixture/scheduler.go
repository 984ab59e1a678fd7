package fixture

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lautenbacher.net/ble2led/transport"
	u "lautenbacher.net/ble2led/util"
)

// DefaultDebounce is the quiescence interval a fixture must see before
// its pending changes are transmitted.
const DefaultDebounce = 2 * time.Millisecond

// Scheduler accepts channel updates and reads for connected fixtures.
// Implementations decide when the updates reach the transport.
type Scheduler interface {
	SetChannel(address string, index, value int) error
	Channel(address string, index int) (byte, error)
	Channels(address string) ([ChannelCount]byte, error)
}

// WorkerScheduler runs one worker goroutine per fixture. SetChannel
// only wakes the worker; the worker performs the quiescence wait and
// the transmit. Wake-ups arriving during a wait collapse into a single
// pending signal and restart the wait, so a burst of updates produces
// exactly one packet. A wait that is restarted or abandoned never
// transmits.
type WorkerScheduler struct {
	transport transport.Transport
	debounce  time.Duration
	// Guards workers & order & closed
	mu      sync.RWMutex
	workers map[string]*worker
	order   []string
	closed  bool
}

type worker struct {
	fixture *Fixture
	wake    *u.Pulse
	// receives true to transmit a pending wait before exiting, false to
	// drop it
	stop chan bool
	done chan struct{}
}

// NewWorkerScheduler creates a scheduler writing to t. A debounce of
// zero or less selects DefaultDebounce.
func NewWorkerScheduler(t transport.Transport, debounce time.Duration) *WorkerScheduler {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &WorkerScheduler{
		transport: t,
		debounce:  debounce,
		workers:   make(map[string]*worker),
	}
}

// Connect creates the Fixture for address and starts its worker. It is
// called once the transport connected to the device. Connecting an
// already known address returns the existing fixture.
func (s *WorkerScheduler) Connect(address string) (*Fixture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSchedulerClosed
	}
	if w, ok := s.workers[address]; ok {
		return w.fixture, nil
	}
	w := &worker{
		fixture: newFixture(address),
		wake:    u.NewPulse(),
		stop:    make(chan bool, 1),
		done:    make(chan struct{}),
	}
	s.workers[address] = w
	s.order = append(s.order, address)
	go s.run(w)
	slog.Info("Scheduler: fixture connected", "fixture", address)
	return w.fixture, nil
}

// Disconnect stops the worker of address and forgets the fixture. A
// pending update is dropped.
func (s *WorkerScheduler) Disconnect(address string) error {
	s.mu.Lock()
	w, ok := s.workers[address]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownFixture, address)
	}
	delete(s.workers, address)
	for i, a := range s.order {
		if a == address {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	w.stop <- false
	<-w.done
	slog.Info("Scheduler: fixture disconnected", "fixture", address)
	return nil
}

// Close stops accepting updates. Every fixture with a wait in progress
// transmits once, then all workers exit. Close is idempotent.
func (s *WorkerScheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	workers := make([]*worker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()

	for _, w := range workers {
		w.stop <- true
	}
	for _, w := range workers {
		<-w.done
	}
	slog.Info("Scheduler: closed", "fixtures", len(workers))
}

func (s *WorkerScheduler) lookup(address string) (*worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSchedulerClosed
	}
	w, ok := s.workers[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFixture, address)
	}
	return w, nil
}

// SetChannel validates and stores an update and, if the value changed,
// (re)starts the quiescence wait of the fixture.
func (s *WorkerScheduler) SetChannel(address string, index, value int) error {
	w, err := s.lookup(address)
	if err != nil {
		return err
	}
	changed, err := w.fixture.set(index, value)
	if err != nil {
		return err
	}
	if changed {
		w.wake.Fire()
	}
	return nil
}

func (s *WorkerScheduler) Channel(address string, index int) (byte, error) {
	w, err := s.lookup(address)
	if err != nil {
		return 0, err
	}
	return w.fixture.Channel(index)
}

func (s *WorkerScheduler) Channels(address string) ([ChannelCount]byte, error) {
	w, err := s.lookup(address)
	if err != nil {
		return [ChannelCount]byte{}, err
	}
	return w.fixture.Channels(), nil
}

// Flush starts a new quiescence wait for a fixture that still holds
// untransmitted changes, e.g. after its transport reconnected. Nothing
// calls it implicitly: a fixture whose write was skipped stays dirty
// until the next update or an explicit Flush.
func (s *WorkerScheduler) Flush(address string) error {
	w, err := s.lookup(address)
	if err != nil {
		return err
	}
	if w.fixture.Dirty() {
		w.wake.Fire()
	}
	return nil
}

// Fixtures returns the connected addresses in connect order.
func (s *WorkerScheduler) Fixtures() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]string, len(s.order))
	copy(ret, s.order)
	return ret
}

// Snapshot returns the channel vectors of all connected fixtures.
func (s *WorkerScheduler) Snapshot() map[string][ChannelCount]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make(map[string][ChannelCount]byte, len(s.workers))
	for address, w := range s.workers {
		ret[address] = w.fixture.Channels()
	}
	return ret
}

// run is the worker of a single fixture. Idle until woken, then waits
// for s.debounce without further wake-ups before transmitting.
func (s *WorkerScheduler) run(w *worker) {
	defer close(w.done)
	for {
		select {
		case flush := <-w.stop:
			// a wake-up not picked up yet counts as a wait in progress
			if flush && w.wake.Drain() {
				s.transmit(w.fixture)
			}
			return
		case <-w.wake.C():
		}

		timer := time.NewTimer(s.debounce)
	quiesce:
		for {
			select {
			case <-w.wake.C():
				// another update, the wait starts over
				timer.Reset(s.debounce)
			case <-timer.C:
				break quiesce
			case flush := <-w.stop:
				timer.Stop()
				if flush {
					s.transmit(w.fixture)
				}
				return
			}
		}
		s.transmit(w.fixture)
	}
}

// transmit writes the pending packet of f if its transport is
// connected. A skipped or failed write leaves f dirty and is not
// retried.
func (s *WorkerScheduler) transmit(f *Fixture) {
	if !s.transport.IsConnected(f.address) {
		slog.Warn("Scheduler: fixture not connected, holding update", "fixture", f.address)
		return
	}
	packet, generation, ok := f.pending()
	if !ok {
		return
	}
	if err := s.transport.Write(f.address, packet); err != nil {
		slog.Warn("Scheduler: write failed, holding update", "fixture", f.address, "error", err)
		return
	}
	f.sent(generation)
	slog.Debug("Scheduler: sent", "fixture", f.address, "packet", packet)
}
