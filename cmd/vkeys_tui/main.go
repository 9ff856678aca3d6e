package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cbegin/vkeys-go"
	"github.com/cbegin/vkeys-go/internal/arp"
	"github.com/cbegin/vkeys-go/internal/improv"
	"github.com/cbegin/vkeys-go/internal/pitch"
	"github.com/cbegin/vkeys-go/internal/sequencer"
)

const (
	refreshInterval = 100 * time.Millisecond
	bendHold        = 250 * time.Millisecond
	bendStep        = 12
)

type keyMap struct {
	Record  key.Binding
	Play    key.Binding
	Stop    key.Binding
	Clear   key.Binding
	Arp     key.Binding
	Hold    key.Binding
	Mode    key.Binding
	Improv  key.Binding
	Regen   key.Binding
	Style   key.Binding
	Sustain key.Binding
	BendUp  key.Binding
	BendDn  key.Binding
	VolUp   key.Binding
	VolDn   key.Binding
	TempoUp key.Binding
	TempoDn key.Binding
	Quit    key.Binding
}

func binding(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

// Controls use shifted letters so the lower-case keyboard stays playable.
var keys = keyMap{
	Record:  binding("record", "R"),
	Play:    binding("play", "P"),
	Stop:    binding("stop", "S"),
	Clear:   binding("clear", "C"),
	Arp:     binding("arp", "A"),
	Hold:    binding("hold", "H"),
	Mode:    binding("mode", "M"),
	Improv:  binding("improv", "I"),
	Regen:   binding("new idea", "G"),
	Style:   binding("style", "Y"),
	Sustain: binding("sustain", " "),
	BendUp:  binding("bend up", "up"),
	BendDn:  binding("bend down", "down"),
	VolUp:   binding("louder", "right"),
	VolDn:   binding("softer", "left"),
	TempoUp: binding("faster", "pgup"),
	TempoDn: binding("slower", "pgdown"),
	Quit:    binding("quit", "esc", "ctrl+c"),
}

func (k keyMap) help() []key.Binding {
	return []key.Binding{k.Record, k.Play, k.Stop, k.Clear, k.Arp, k.Hold, k.Mode, k.Improv, k.Regen, k.Style, k.Quit}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	recStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	activeStyle = lipgloss.NewStyle().Background(lipgloss.Color("63")).Foreground(lipgloss.Color("255"))
	whiteStyle  = lipgloss.NewStyle().Background(lipgloss.Color("252")).Foreground(lipgloss.Color("0"))
	blackStyle  = lipgloss.NewStyle().Background(lipgloss.Color("236")).Foreground(lipgloss.Color("250"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type eventMsg vkeys.Event

type refreshMsg struct{}

// releaseMsg ends a tapped note unless the key was tapped again since.
type releaseMsg struct {
	id  string
	gen int
}

type bendReturnMsg struct{ gen int }

type model struct {
	inst     *vkeys.Instrument
	events   <-chan vkeys.Event
	hold     time.Duration
	status   vkeys.Status
	message  string
	taps     map[string]int
	bendGen  int
	modeIdx  int
	styleIdx int
	quitting bool
}

func newModel(inst *vkeys.Instrument, hold time.Duration, message string) model {
	return model{
		inst:    inst,
		events:  inst.Watch(),
		hold:    hold,
		message: message,
		taps:    make(map[string]int),
		status:  inst.Status(),
	}
}

func listenForEvents(ch <-chan vkeys.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(listenForEvents(m.events), refresh())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.BlurMsg:
		m.inst.ReleaseAll()
		m.inst.ReleaseSustain()
	case releaseMsg:
		if m.taps[msg.id] == msg.gen {
			m.inst.NoteOff(msg.id)
			delete(m.taps, msg.id)
		}
	case bendReturnMsg:
		if msg.gen == m.bendGen {
			m.inst.ReturnPitchBend()
		}
	case eventMsg:
		m.message = describe(m.inst, vkeys.Event(msg))
		m.status = m.inst.Status()
		return m, listenForEvents(m.events)
	case refreshMsg:
		m.status = m.inst.Status()
		return m, refresh()
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, keys.Record):
		m.inst.ToggleRecording()
	case key.Matches(msg, keys.Play):
		if !m.inst.Play() {
			m.message = "nothing to play"
		}
	case key.Matches(msg, keys.Stop):
		m.inst.Stop()
	case key.Matches(msg, keys.Clear):
		m.inst.Clear()
		m.message = "cleared"
	case key.Matches(msg, keys.Arp):
		m.inst.ToggleArp()
	case key.Matches(msg, keys.Hold):
		m.inst.SetArpHold(!m.status.ArpHold)
	case key.Matches(msg, keys.Mode):
		m.modeIdx = (m.modeIdx + 1) % len(arp.Modes)
		m.inst.SetArpMode(arp.Modes[m.modeIdx])
	case key.Matches(msg, keys.Improv):
		if m.status.ImprovPlaying {
			m.inst.StopImprov()
		} else if !m.inst.StartImprov() {
			m.message = "improviser produced no notes"
		}
	case key.Matches(msg, keys.Regen):
		m.inst.RegenerateImprov()
	case key.Matches(msg, keys.Style):
		m.styleIdx = (m.styleIdx + 1) % len(improv.Styles)
		p := m.inst.ImprovParams()
		p.Style = improv.Styles[m.styleIdx]
		m.inst.SetImprovParams(p)
	case key.Matches(msg, keys.Sustain):
		// no key-up in a terminal, so space latches
		if m.status.Sustain {
			m.inst.ReleaseSustain()
		} else {
			m.inst.PressSustain()
		}
	case key.Matches(msg, keys.BendUp, keys.BendDn):
		step := bendStep
		if key.Matches(msg, keys.BendDn) {
			step = -bendStep
		}
		m.inst.SetPitchBend(m.status.PitchBend + step)
		m.bendGen++
		gen := m.bendGen
		m.status = m.inst.Status()
		return m, tea.Tick(bendHold, func(time.Time) tea.Msg { return bendReturnMsg{gen: gen} })
	case key.Matches(msg, keys.VolUp):
		m.inst.SetVolume(m.status.Volume + 0.05)
	case key.Matches(msg, keys.VolDn):
		m.inst.SetVolume(m.status.Volume - 0.05)
	case key.Matches(msg, keys.TempoUp):
		m.inst.SetTempo(m.status.Tempo + 5)
	case key.Matches(msg, keys.TempoDn):
		m.inst.SetTempo(max(40, m.status.Tempo-5))
	default:
		return m.handleNoteKey(msg.String())
	}
	m.status = m.inst.Status()
	return m, nil
}

func (m model) handleNoteKey(k string) (tea.Model, tea.Cmd) {
	switch k {
	case vkeys.OctaveDownKey:
		m.inst.ShiftOctave(-1)
	case vkeys.OctaveUpKey:
		m.inst.ShiftOctave(1)
	}
	id, ok := vkeys.NoteForKey(k)
	if !ok {
		m.status = m.inst.Status()
		return m, nil
	}
	if _, held := m.taps[id]; held {
		// auto-repeat retriggers so the note restarts from its attack
		m.inst.NoteOff(id)
	}
	gen := m.taps[id] + 1
	m.taps[id] = gen
	m.inst.NoteOn(id)
	m.status = m.inst.Status()
	return m, tea.Tick(m.hold, func(time.Time) tea.Msg { return releaseMsg{id: id, gen: gen} })
}

func describe(inst *vkeys.Instrument, ev vkeys.Event) string {
	switch ev.Kind {
	case vkeys.EventLoopCompleted, vkeys.EventImprovLoopCompleted:
		return fmt.Sprintf("%s (%d)", ev.Kind, ev.Iteration)
	case vkeys.EventAnalysisReady:
		if a, ok := inst.Analysis(); ok {
			return "analysis: " + a.String()
		}
	}
	return ev.Kind.String()
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	st := m.status
	var b strings.Builder
	b.WriteString(titleStyle.Render("vkeys"))
	b.WriteString("\n\n")

	seq := valueStyle.Render(st.State.String())
	if st.State == sequencer.Recording {
		seq = recStyle.Render("● recording")
	}
	if st.Recorded > 0 {
		seq += labelStyle.Render(fmt.Sprintf("  %d events", st.Recorded))
	}
	arpLine := "off"
	if st.ArpEnabled {
		arpLine = fmt.Sprintf("%s 1/%d gate %d%% x%d", st.ArpParams.Mode, st.ArpParams.Rate, st.ArpParams.Gate, st.ArpParams.Octaves)
		if st.ArpHold {
			arpLine += " hold"
		}
	}
	improvLine := fmt.Sprintf("%s c%d d%d", st.ImprovParams.Style, st.ImprovParams.Complexity, st.ImprovParams.Density)
	if st.ImprovPlaying {
		improvLine += " playing"
	}
	rows := [][2]string{
		{"octave", fmt.Sprintf("%d  bend %+d  sustain %v", st.Octave, st.PitchBend, st.Sustain)},
		{"volume", fmt.Sprintf("%.2f  tempo %.0f", st.Volume, st.Tempo)},
		{"arp", arpLine},
		{"improv", improvLine},
	}
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-8s", "sequence")) + seq + "\n")
	for _, r := range rows {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-8s", r[0])) + valueStyle.Render(r[1]) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.keyboard())
	b.WriteString("\n\n")
	b.WriteString(valueStyle.Render(m.message))
	b.WriteString("\n\n")

	var help []string
	for _, k := range keys.help() {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(helpStyle.Render(strings.Join(help, " · ")))
	return boxStyle.Render(b.String())
}

func (m model) keyboard() string {
	var cells []string
	for _, id := range pitch.Order {
		label := " "
		if pitch.Class(id) == "C" {
			label = "C"
		}
		style := whiteStyle
		if strings.Contains(id, "#") {
			style = blackStyle
		}
		if slices.Contains(m.status.ActiveNotes, id) {
			style = activeStyle
		}
		cells = append(cells, style.Render(label))
	}
	return strings.Join(cells, "")
}

func main() {
	var (
		sampleRate = flag.Int("sample-rate", vkeys.DefaultSampleRate, "output sample rate")
		tempo      = flag.Float64("tempo", vkeys.DefaultTempo, "tempo in bpm")
		hold       = flag.Duration("hold", 350*time.Millisecond, "how long a tapped key sounds")
		debug      = flag.Bool("debug", false, "log to vkeys_tui.log")
	)
	flag.Parse()

	// the terminal belongs to the UI, so logs go to a file or nowhere
	var logOut io.Writer = io.Discard
	if *debug {
		f, err := tea.LogToFile("vkeys_tui.log", "vkeys")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	inst, err := vkeys.New(vkeys.WithSampleRate(*sampleRate), vkeys.WithTempo(*tempo), vkeys.WithLogger(logger))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	message := "ready"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := inst.Open(); err != nil {
		message = "no audio device: " + err.Error()
		go inst.RunClock(ctx, 0)
	}
	defer inst.Close()

	p := tea.NewProgram(newModel(inst, *hold, message), tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		logger.Error("run", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
