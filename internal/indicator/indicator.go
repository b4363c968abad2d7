// Package indicator shows device state in the system tray.
//
// The tray menu mirrors the battery levels and noise-control mode of the
// connected device and lets the user switch modes. It is an optional
// surface; the daemon runs fine without it.
package indicator

import (
	"fmt"
	"log"

	"fyne.io/systray"

	"librepods/internal/airpods"
	"librepods/internal/util"
)

// Indicator manages the system tray icon and menu.
type Indicator struct {
	onNoiseModeChange func(airpods.NoiseMode)
	onQuit            func()

	batteryItems   [3]*systray.MenuItem
	noiseModeItems map[airpods.NoiseMode]*systray.MenuItem

	updates chan airpods.Snapshot
}

// New creates a tray indicator. onNoiseModeChange receives mode selections
// from the menu; onQuit fires when the user picks Quit.
func New(onNoiseModeChange func(airpods.NoiseMode), onQuit func()) *Indicator {
	return &Indicator{
		onNoiseModeChange: onNoiseModeChange,
		onQuit:            onQuit,
		noiseModeItems:    make(map[airpods.NoiseMode]*systray.MenuItem),
		updates:           make(chan airpods.Snapshot, 8),
	}
}

// Start runs the tray in the background.
func (ind *Indicator) Start() {
	go systray.Run(ind.onReady, ind.onExit)
}

// Stop terminates the tray.
func (ind *Indicator) Stop() {
	systray.Quit()
}

// Update queues a state snapshot for display. Safe to call from any
// goroutine; stale snapshots are dropped when the tray lags.
func (ind *Indicator) Update(snap airpods.Snapshot) {
	for {
		select {
		case ind.updates <- snap:
			return
		default:
		}
		// Queue full: discard the oldest pending snapshot and retry.
		select {
		case <-ind.updates:
		default:
		}
	}
}

func (ind *Indicator) onReady() {
	systray.SetTitle("LibrePods")
	systray.SetTooltip("Waiting for AirPods...")

	systray.AddMenuItem("Battery Levels", "Current battery status").Disable()
	systray.AddSeparator()

	ind.batteryItems[0] = systray.AddMenuItem("  Left:  --", "Left battery")
	ind.batteryItems[0].Disable()
	ind.batteryItems[1] = systray.AddMenuItem("  Right: --", "Right battery")
	ind.batteryItems[1].Disable()
	ind.batteryItems[2] = systray.AddMenuItem("  Case:  --", "Case battery")
	ind.batteryItems[2].Disable()

	systray.AddSeparator()
	systray.AddMenuItem("Noise Control", "Noise control mode").Disable()

	ind.noiseModeItems[airpods.NoiseModeOff] = systray.AddMenuItemCheckbox("Off", "Noise control disabled", true)
	ind.noiseModeItems[airpods.NoiseModeTransparency] = systray.AddMenuItemCheckbox("Transparency", "Hear the world around you", false)
	ind.noiseModeItems[airpods.NoiseModeANC] = systray.AddMenuItemCheckbox("Noise Cancelling", "Block background noise", false)
	ind.noiseModeItems[airpods.NoiseModeAdaptive] = systray.AddMenuItemCheckbox("Adaptive", "Automatically adjusts", false)

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit the daemon")

	go func() {
		for {
			select {
			case snap := <-ind.updates:
				ind.render(snap)
			case <-ind.noiseModeItems[airpods.NoiseModeOff].ClickedCh:
				ind.selectNoiseMode(airpods.NoiseModeOff)
			case <-ind.noiseModeItems[airpods.NoiseModeTransparency].ClickedCh:
				ind.selectNoiseMode(airpods.NoiseModeTransparency)
			case <-ind.noiseModeItems[airpods.NoiseModeANC].ClickedCh:
				ind.selectNoiseMode(airpods.NoiseModeANC)
			case <-ind.noiseModeItems[airpods.NoiseModeAdaptive].ClickedCh:
				ind.selectNoiseMode(airpods.NoiseModeAdaptive)
			case <-mQuit.ClickedCh:
				if ind.onQuit != nil {
					ind.onQuit()
				}
				return
			}
		}
	}()
}

func (ind *Indicator) onExit() {
	log.Println("System tray indicator exited")
}

// selectNoiseMode forwards a menu selection. The checkmarks follow the
// device's confirmation through Update rather than flipping optimistically.
func (ind *Indicator) selectNoiseMode(mode airpods.NoiseMode) {
	log.Printf("Tray: noise mode selected: %s", mode)
	if ind.onNoiseModeChange != nil {
		ind.onNoiseModeChange(mode)
	}
}

// render applies a snapshot to the menu.
func (ind *Indicator) render(snap airpods.Snapshot) {
	if !snap.Connected {
		systray.SetTooltip("Waiting for AirPods...")
		ind.batteryItems[0].SetTitle("  Left:  --")
		ind.batteryItems[1].SetTitle("  Right: --")
		ind.batteryItems[2].SetTitle("  Case:  --")
		return
	}

	name := snap.DisplayName
	if name == "" {
		name = snap.DeviceName
	}
	lowest := util.LowestLevel(snap.Battery.Left.Level, snap.Battery.Right.Level, snap.Battery.Case.Level)
	if lowest >= 0 {
		systray.SetTooltip(fmt.Sprintf("%s - %d%%", name, lowest))
	} else {
		systray.SetTooltip(name)
	}

	ind.batteryItems[0].SetTitle(batteryTitle("Left: ", snap.Battery.Left))
	ind.batteryItems[1].SetTitle(batteryTitle("Right:", snap.Battery.Right))
	ind.batteryItems[2].SetTitle(batteryTitle("Case: ", snap.Battery.Case))

	for mode, item := range ind.noiseModeItems {
		if mode == snap.NoiseMode {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func batteryTitle(label string, reading airpods.BatteryReading) string {
	if reading.Level < 0 {
		return fmt.Sprintf("  %s --", label)
	}
	charging := ""
	if reading.Status == airpods.BatteryStatusCharging {
		charging = " ⚡"
	}
	return fmt.Sprintf("  %s %d%%%s", label, reading.Level, charging)
}
