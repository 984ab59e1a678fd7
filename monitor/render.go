package monitor

import (
	"fmt"
	"math"

	"lautenbacher.net/ble2led/controller"
	"lautenbacher.net/ble2led/fixture"
)

func lightOf(channels [fixture.ChannelCount]byte, half int) fixture.Light {
	b := channels[half*fixture.HalfWidth : (half+1)*fixture.HalfWidth]
	return fixture.Light{R: b[fixture.Red], G: b[fixture.Green], B: b[fixture.Blue], Dim: b[fixture.Dim], Strobe: b[fixture.Strobe]}
}

func stateLine(s controller.State) string {
	stepping := "[#ff0000]off[-]"
	if s.UseBeat {
		stepping = "[#00ff00]on[-]"
	}
	step := "no playlist"
	if s.Steps > 0 {
		// Step is the next one to apply
		step = fmt.Sprintf("next step [#ffff00]%d[-]/%d", s.Step+1, s.Steps)
	}
	return fmt.Sprintf(" mode [#ffff00]%s[-] | beat stepping %s | %s | beats %d | brightness %d",
		s.Mode, stepping, step, s.Beats, s.Brightness)
}

func deviceLine(name string, l fixture.Light) string {
	strobe := "      "
	if l.Strobe > 0 {
		strobe = fmt.Sprintf("≋ %3d ", l.Strobe)
	}
	return fmt.Sprintf(" %s████[-] %s%-22s R%3d G%3d B%3d D%3d",
		scaledColor(l), strobe, name, l.R, l.G, l.B, l.Dim)
}

// scaledColor is the tview colour tag of l as it would appear: the
// colour channels scaled by the dimmer.
func scaledColor(l fixture.Light) string {
	factor := float64(l.Dim) / 255
	const epsilon = 1e-9
	scale := func(v byte) byte {
		return byte(math.Round(float64(v)*factor + epsilon))
	}
	return fmt.Sprintf("[#%02x%02x%02x]", scale(l.R), scale(l.G), scale(l.B))
}
