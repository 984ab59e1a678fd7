// Package monitor is the terminal view of a simulated show: fixture
// channels as colour swatches, the sequencer state and the log.
package monitor

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"lautenbacher.net/ble2led/controller"
	"lautenbacher.net/ble2led/events"
	"lautenbacher.net/ble2led/fixture"
	"lautenbacher.net/ble2led/logging"
	"lautenbacher.net/ble2led/transport"
	u "lautenbacher.net/ble2led/util"
)

type Monitor struct {
	tviewapp     *tview.Application
	intro        *tview.TextView
	fixtureView  *tview.TextView
	logView      *tview.TextView
	ossignalChan chan os.Signal
	events       chan<- events.Event
	addresses    []string
	snapshot     func() map[string][fixture.ChannelCount]byte
	states       *u.Latest[controller.State]
	packets      *u.LatestMap[transport.Packet]
	lastPackets  map[string]transport.Packet
	logFlushOnce sync.Once
	readyChan    chan bool
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

// New creates a monitor for the fixtures at addresses. snapshot reads
// the current channels, states reports the controller. Key presses are
// sent to ev and to ossignal.
func New(addresses []string, snapshot func() map[string][fixture.ChannelCount]byte,
	states *u.Latest[controller.State], ev chan<- events.Event, ossignal chan os.Signal,
) *Monitor {
	return &Monitor{
		ossignalChan: ossignal,
		events:       ev,
		addresses:    addresses,
		snapshot:     snapshot,
		states:       states,
		packets:      u.NewLatestMap[transport.Packet](),
		lastPackets:  make(map[string]transport.Packet),
		readyChan:    make(chan bool),
		stopChan:     make(chan struct{}),
	}
}

// Ready is closed after the first draw, once logging goes to the log
// pane.
func (m *Monitor) Ready() <-chan bool {
	return m.readyChan
}

// Observe is registered with the simulated transport and records the
// packets that went out.
func (m *Monitor) Observe(p transport.Packet) {
	m.packets.Send(p.Handle, p)
}

func (m *Monitor) Start() {
	m.init()
	m.wg.Add(1)
	go m.refresher()
}

func (m *Monitor) Stop() {
	close(m.stopChan)
	m.wg.Wait()
	if m.tviewapp != nil {
		m.tviewapp.Stop()
	}
}

func (m *Monitor) getIntroText() string {
	line1 := "Hit [#ff0000]b[-] for a beat, [#ff0000]m[-] to toggle beat stepping, [#ff0000]space[-] for blackout"
	line2 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload the playlist, [#ff0000]Up/Down[-] to scroll logs"
	return line1 + "\n" + line2
}

// toggleBeatStepping flips beat stepping as the controller last
// reported it, which may differ from the last override after the
// classifier switched mode.
func (m *Monitor) toggleBeatStepping() events.Event {
	return events.NewModeOverride(!m.states.Value().UseBeat)
}

func (m *Monitor) send(e events.Event) {
	select {
	case m.events <- e:
	default:
		slog.Warn("Monitor: controller busy, key ignored", "kind", e.Kind)
	}
}

func (m *Monitor) init() {
	m.tviewapp = tview.NewApplication()

	m.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	m.intro.SetText(m.getIntroText())
	m.intro.SetBorder(true).SetTitle(" BLE2LED Simulation ").SetTitleColor(tcell.ColorLightBlue)
	m.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	m.fixtureView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	m.fixtureView.SetBorder(true).SetTitle(" Fixtures ").SetTitleColor(tcell.ColorLightBlue)
	m.fixtureView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	m.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			m.logView.ScrollToEnd()
			m.tviewapp.Draw()
		})
	m.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	m.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	// state line, two devices and a packet line per fixture, border
	fixtureHeight := 1 + 3*len(m.addresses) + 2
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(m.intro, 4, 0, false).
		AddItem(m.fixtureView, fixtureHeight, 0, false).
		AddItem(m.logView, 0, 1, true)

	m.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		m.logFlushOnce.Do(func() {
			logging.SetOutput(tview.ANSIWriter(m.logView))
			close(m.readyChan)
		})
	})

	m.tviewapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			m.ossignalChan <- os.Interrupt
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				m.ossignalChan <- os.Interrupt
				return nil
			case 'r', 'R':
				m.ossignalChan <- syscall.SIGHUP
				return nil
			case 'b', 'B':
				m.send(events.NewBeat())
				return nil
			case 'm', 'M':
				m.send(m.toggleBeatStepping())
				return nil
			case ' ':
				m.send(events.NewBlackout())
				return nil
			}
		case tcell.KeyUp:
			row, col := m.logView.GetScrollOffset()
			m.logView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := m.logView.GetScrollOffset()
			m.logView.ScrollTo(row+1, col)
			return nil
		}
		return event
	})

	go func() {
		if err := m.tviewapp.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running monitor", "error", err)
			m.ossignalChan <- os.Interrupt
		}
	}()
}

// refresher redraws the fixture pane whenever a packet went out or the
// controller state changed.
func (m *Monitor) refresher() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopChan:
			return
		case <-m.packets.Channel():
			for handle, p := range m.packets.ConsumeValues() {
				m.lastPackets[handle] = p
			}
		case <-m.states.Channel():
		}
		text := m.render()
		m.tviewapp.QueueUpdateDraw(func() {
			m.fixtureView.SetText(text)
		})
	}
}

func (m *Monitor) render() string {
	state := m.states.Value()
	channels := m.snapshot()
	var buf strings.Builder
	buf.WriteString(stateLine(state))
	buf.WriteString("\n")
	for _, address := range m.addresses {
		ch := channels[address]
		for half := range 2 {
			buf.WriteString(deviceLine(fmt.Sprintf("%s/CH%d", address, half+1), lightOf(ch, half)))
			buf.WriteString("\n")
		}
		if p, ok := m.lastPackets[address]; ok {
			buf.WriteString(fmt.Sprintf("   [grey]last packet %s %v[-]\n", p.Time.Format("15:04:05.000"), p.Data))
		} else {
			buf.WriteString("   [grey]no packet yet[-]\n")
		}
	}
	return buf.String()
}
