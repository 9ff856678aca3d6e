package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/cbegin/vkeys-go"
	"github.com/cbegin/vkeys-go/internal/arp"
	"github.com/cbegin/vkeys-go/internal/improv"
	"github.com/cbegin/vkeys-go/internal/pitch"
	"github.com/cbegin/vkeys-go/internal/sequencer"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	windowW = 1100
	windowH = 560

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale

	bendSpeed = 4
)

var (
	bgColor        = color.RGBA{192, 192, 192, 255}
	panelColor     = color.RGBA{192, 192, 192, 255}
	borderColor    = color.RGBA{128, 128, 128, 255}
	highlightColor = color.RGBA{0, 0, 128, 255}
	bevelLight     = color.RGBA{255, 255, 255, 255}
	bevelDarker    = color.RGBA{64, 64, 64, 255}
	sunkenBgColor  = color.RGBA{24, 24, 32, 255}
	whiteKeyColor  = color.RGBA{232, 232, 224, 255}
	blackKeyColor  = color.RGBA{40, 40, 48, 255}
	recordColor    = color.RGBA{160, 24, 24, 255}
)

// qwerty maps physical keys onto the characters vkeys.KeyMap is keyed by.
var qwerty = map[ebiten.Key]string{
	ebiten.KeyA: "a", ebiten.KeyS: "s", ebiten.KeyD: "d", ebiten.KeyF: "f", ebiten.KeyG: "g",
	ebiten.KeyH: "h", ebiten.KeyJ: "j", ebiten.KeyK: "k", ebiten.KeyL: "l",
	ebiten.KeyW: "w", ebiten.KeyE: "e", ebiten.KeyT: "t", ebiten.KeyY: "y", ebiten.KeyU: "u",
	ebiten.KeyO: "o", ebiten.KeyP: "p", ebiten.KeyQ: "q", ebiten.KeyR: "r",
	ebiten.KeyN: "n", ebiten.KeyM: "m", ebiten.KeyZ: "z", ebiten.KeyX: "x",
	ebiten.KeySemicolon: ";", ebiten.KeyQuote: "'", ebiten.KeyBackslash: "\\",
	ebiten.KeyBracketLeft: "[", ebiten.KeyBracketRight: "]",
	ebiten.KeyMinus: "-", ebiten.KeyEqual: "=",
	ebiten.KeyDigit0: "0", ebiten.KeyDigit1: "1", ebiten.KeyDigit2: "2", ebiten.KeyDigit3: "3",
	ebiten.KeyDigit4: "4", ebiten.KeyDigit5: "5", ebiten.KeyDigit6: "6", ebiten.KeyDigit7: "7",
	ebiten.KeyDigit8: "8", ebiten.KeyDigit9: "9",
}

type game struct {
	inst   *vkeys.Instrument
	events <-chan vkeys.Event
	log    *slog.Logger

	status    vkeys.Status
	message   string
	styleIdx  int
	modeIdx   int
	focused   bool
	mouseNote string
	mouseChd  string
	bending   bool

	keys      []ebiten.Key
	textCache map[string]*ebiten.Image
	cancel    context.CancelFunc
}

func newGame(inst *vkeys.Instrument, log *slog.Logger) *game {
	g := &game{
		inst:      inst,
		events:    inst.Watch(),
		log:       log,
		message:   "Ready",
		focused:   true,
		textCache: make(map[string]*ebiten.Image, 256),
	}
	if err := inst.Open(); err != nil {
		g.message = "No audio device: " + err.Error()
		// keep arp and loops timing without a device driving the clock
		ctx, cancel := context.WithCancel(context.Background())
		g.cancel = cancel
		go inst.RunClock(ctx, 0)
	}
	return g
}

func (g *game) Close() {
	if g.cancel != nil {
		g.cancel()
	}
	if err := g.inst.Close(); err != nil {
		g.log.Warn("close instrument", "err", err)
	}
}

func (g *game) Update() error {
	g.pollEvents()
	g.handleFocus()
	g.handleKeys()
	g.handleBend()
	g.handleMouse()
	g.status = g.inst.Status()
	return nil
}

func (g *game) pollEvents() {
	for {
		select {
		case ev := <-g.events:
			switch ev.Kind {
			case vkeys.EventLoopCompleted, vkeys.EventImprovLoopCompleted:
				g.message = fmt.Sprintf("%s (%d)", ev.Kind, ev.Iteration)
			case vkeys.EventAnalysisReady:
				if a, ok := g.inst.Analysis(); ok {
					g.message = "Analysis: " + a.String()
				}
			default:
				g.message = ev.Kind.String()
			}
		default:
			return
		}
	}
}

// handleFocus releases everything when the window loses focus, since the
// key-up events would otherwise never arrive.
func (g *game) handleFocus() {
	focused := ebiten.IsFocused()
	if g.focused && !focused {
		g.inst.ReleaseAll()
		g.inst.ReleaseSustain()
	}
	g.focused = focused
}

func (g *game) handleKeys() {
	g.keys = inpututil.AppendJustPressedKeys(g.keys[:0])
	for _, k := range g.keys {
		g.keyDown(k)
	}
	g.keys = inpututil.AppendJustReleasedKeys(g.keys[:0])
	for _, k := range g.keys {
		g.keyUp(k)
	}
}

func (g *game) keyDown(k ebiten.Key) {
	switch k {
	case ebiten.KeySpace:
		g.inst.PressSustain()
		return
	case ebiten.KeyF1:
		g.inst.ToggleRecording()
		return
	case ebiten.KeyF2:
		if !g.inst.Play() {
			g.message = "Nothing to play"
		}
		return
	case ebiten.KeyF3:
		g.inst.Stop()
		return
	case ebiten.KeyF4:
		g.inst.Clear()
		g.message = "Cleared"
		return
	case ebiten.KeyF5:
		g.inst.ToggleArp()
		return
	case ebiten.KeyF6:
		g.inst.SetArpHold(!g.status.ArpHold)
		return
	case ebiten.KeyF7:
		g.modeIdx = (g.modeIdx + 1) % len(arp.Modes)
		g.inst.SetArpMode(arp.Modes[g.modeIdx])
		return
	case ebiten.KeyF8:
		g.toggleImprov()
		return
	case ebiten.KeyF9:
		g.inst.RegenerateImprov()
		return
	case ebiten.KeyF10:
		g.styleIdx = (g.styleIdx + 1) % len(improv.Styles)
		p := g.inst.ImprovParams()
		p.Style = improv.Styles[g.styleIdx]
		g.inst.SetImprovParams(p)
		return
	case ebiten.KeyArrowLeft:
		g.inst.SetVolume(g.status.Volume - 0.05)
		return
	case ebiten.KeyArrowRight:
		g.inst.SetVolume(g.status.Volume + 0.05)
		return
	case ebiten.KeyPageUp:
		g.inst.SetTempo(g.status.Tempo + 5)
		return
	case ebiten.KeyPageDown:
		g.inst.SetTempo(max(40, g.status.Tempo-5))
		return
	}
	ch, ok := qwerty[k]
	if !ok {
		return
	}
	switch ch {
	case vkeys.OctaveDownKey:
		g.inst.ShiftOctave(-1)
	case vkeys.OctaveUpKey:
		g.inst.ShiftOctave(1)
	default:
		if id, ok := vkeys.NoteForKey(ch); ok {
			g.inst.NoteOn(id)
		}
	}
}

func (g *game) keyUp(k ebiten.Key) {
	if k == ebiten.KeySpace {
		g.inst.ReleaseSustain()
		return
	}
	if id, ok := vkeys.NoteForKey(qwerty[k]); ok {
		g.inst.NoteOff(id)
	}
}

func (g *game) toggleImprov() {
	if g.status.ImprovPlaying {
		g.inst.StopImprov()
		return
	}
	if !g.inst.StartImprov() {
		g.message = "Improviser produced no notes"
	}
}

// handleBend treats the up/down arrows as a spring-loaded bend wheel.
func (g *game) handleBend() {
	up := ebiten.IsKeyPressed(ebiten.KeyArrowUp)
	down := ebiten.IsKeyPressed(ebiten.KeyArrowDown)
	switch {
	case up && !down:
		g.inst.SetPitchBend(g.status.PitchBend + bendSpeed)
		g.bending = true
	case down && !up:
		g.inst.SetPitchBend(g.status.PitchBend - bendSpeed)
		g.bending = true
	case g.bending:
		g.inst.ReturnPitchBend()
		g.bending = false
	}
}

type uiLayout struct {
	status   image.Rectangle
	chords   []image.Rectangle
	keyboard image.Rectangle
	keys     []image.Rectangle
}

func (g *game) layoutRects() uiLayout {
	l := uiLayout{
		status:   image.Rect(12, 12, windowW-12, 12+lineH*7+16),
		keyboard: image.Rect(12, windowH-190, windowW-12, windowH-12),
	}
	y := l.status.Max.Y + 12
	bw := (windowW - 24 - 6*8) / len(vkeys.ChordNames)
	for i := range vkeys.ChordNames {
		x := 12 + i*(bw+8)
		l.chords = append(l.chords, image.Rect(x, y, x+bw, y+lineH+16))
	}
	kw := (l.keyboard.Dx() - 8) / len(pitch.Order)
	for i := range pitch.Order {
		x := l.keyboard.Min.X + 4 + i*kw
		top := l.keyboard.Min.Y + 4
		if isAccidental(pitch.Order[i]) {
			l.keys = append(l.keys, image.Rect(x+1, top, x+kw-1, top+100))
		} else {
			l.keys = append(l.keys, image.Rect(x+1, top, x+kw-1, l.keyboard.Max.Y-4))
		}
	}
	return l
}

func isAccidental(id string) bool {
	return strings.Contains(id, "#")
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		for i, r := range l.chords {
			if pointInRect(mx, my, r) {
				g.mouseChd = vkeys.ChordNames[i]
				g.inst.PlayChord(g.mouseChd)
				return
			}
		}
		// accidentals overlap naturals at the top, so test them first
		for pass := 0; pass < 2 && g.mouseNote == ""; pass++ {
			for i, r := range l.keys {
				id := pitch.Order[i]
				if isAccidental(id) == (pass == 0) && pointInRect(mx, my, r) {
					g.mouseNote = id
					g.inst.NoteOn(id)
					break
				}
			}
		}
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		if g.mouseChd != "" {
			g.inst.StopChord(g.mouseChd)
			g.mouseChd = ""
		}
		if g.mouseNote != "" {
			g.inst.NoteOff(g.mouseNote)
			g.mouseNote = ""
		}
	}
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layoutRects()
	g.drawSunkenPanel(screen, l.status)
	g.drawStatus(screen, l.status)
	for i, r := range l.chords {
		g.drawButton(screen, r, vkeys.ChordNames[i], g.mouseChd == vkeys.ChordNames[i])
	}
	g.drawSunkenPanel(screen, l.keyboard)
	g.drawKeyboard(screen, l)
}

func (g *game) drawStatus(screen *ebiten.Image, rect image.Rectangle) {
	st := g.status
	seq := st.State.String()
	if st.Recorded > 0 {
		seq = fmt.Sprintf("%s, %d events", seq, st.Recorded)
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
	sustain := "off"
	if st.Sustain {
		sustain = "on"
	}
	lines := []string{
		fmt.Sprintf("Octave %d  Bend %+d  Sustain %s  Volume %.2f  Tempo %.0f", st.Octave, st.PitchBend, sustain, st.Volume, st.Tempo),
		"Sequencer: " + seq,
		"Arp: " + arpLine,
		"Improv: " + improvLine,
		"Notes: " + strings.Join(st.ActiveNotes, " "),
		"F1 rec F2 play F3 stop F4 clear F5 arp F6 hold F7 mode F8 improv F9 new F10 style",
		g.message,
	}
	for i, line := range lines {
		g.drawText(screen, shortenEnd(line, (rect.Dx()-16)/charW), rect.Min.X+8, rect.Min.Y+8+i*lineH)
	}
	if st.State == sequencer.Recording {
		ebitenutil.DrawRect(screen, float64(rect.Max.X-28), float64(rect.Min.Y+10), 16, 16, recordColor)
	}
}

func (g *game) drawKeyboard(screen *ebiten.Image, l uiLayout) {
	// naturals first so accidentals draw on top
	for pass := 0; pass < 2; pass++ {
		for i, r := range l.keys {
			id := pitch.Order[i]
			if isAccidental(id) != (pass == 1) {
				continue
			}
			fill := color.Color(whiteKeyColor)
			if isAccidental(id) {
				fill = blackKeyColor
			}
			if slices.Contains(g.status.ActiveNotes, id) {
				fill = highlightColor
			}
			ebitenutil.DrawRect(screen, float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()), fill)
			if !isAccidental(id) && pitch.Class(id) == "C" {
				g.drawText(screen, "C", r.Min.X+2, r.Max.Y-lineH-4)
			}
		}
	}
}

func (g *game) drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), sunkenBgColor)
	drawSunkenBorder(screen, rect)
}

func (g *game) drawButton(screen *ebiten.Image, rect image.Rectangle, label string, pressed bool) {
	fill := color.Color(panelColor)
	if pressed {
		fill = highlightColor
	}
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), fill)
	if pressed {
		drawSunkenBorder(screen, rect)
	} else {
		drawBorder(screen, rect)
	}
	labelW := len([]rune(label)) * charW
	g.drawText(screen, label, rect.Min.X+(rect.Dx()-labelW)/2, rect.Min.Y+(rect.Dy()-lineH)/2)
}

// drawBorder draws a raised 3D bevel (highlight top/left, shadow bottom/right).
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

// drawSunkenBorder draws a sunken 3D bevel (shadow top/left, highlight bottom/right).
func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
	ebitenutil.DrawRect(screen, x+1, y+1, w-3, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+2, 1, h-4, bevelDarker)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x int, y int) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		img = ebiten.NewImage(max(1, len([]rune(msg))*7), 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 1000 {
			g.textCache = make(map[string]*ebiten.Image, 256)
		}
		g.textCache[msg] = img
	}
	opS := &ebiten.DrawImageOptions{}
	opS.GeoM.Scale(textScale, textScale)
	opS.GeoM.Translate(float64(x+2), float64(y+2))
	opS.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, opS)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	return windowW, windowH
}

func shortenEnd(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return string(r[:max(0, maxChars)])
	}
	return string(r[:maxChars-3]) + "..."
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}

func main() {
	var (
		sampleRate = flag.Int("sample-rate", vkeys.DefaultSampleRate, "output sample rate")
		tempo      = flag.Float64("tempo", vkeys.DefaultTempo, "tempo in bpm")
		debug      = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	inst, err := vkeys.New(vkeys.WithSampleRate(*sampleRate), vkeys.WithTempo(*tempo), vkeys.WithLogger(logger))
	if err != nil {
		logger.Error("create instrument", "err", err)
		os.Exit(1)
	}
	g := newGame(inst, logger)
	defer g.Close()

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle("vkeys")
	if err := ebiten.RunGame(g); err != nil {
		logger.Error("run", "err", err)
		os.Exit(1)
	}
}
