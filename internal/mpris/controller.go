// Package mpris pauses and resumes desktop media players.
//
// The Controller edge-detects on in-ear transitions according to the
// ear-pause policy and drives the MPRIS player interface of every media
// player on the session bus. It only ever resumes players it paused
// itself.
package mpris

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"librepods/internal/airpods"
)

const (
	namePrefix      = "org.mpris.MediaPlayer2."
	playerPath      = "/org/mpris/MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
	propsInterface  = "org.freedesktop.DBus.Properties"
)

// Controller drives MPRIS players in response to ear-detection changes.
type Controller struct {
	conn *dbus.Conn

	mu   sync.Mutex
	mode airpods.EarPauseMode

	// paused holds the bus names this controller paused on the most recent
	// out-of-ear edge. Cleared before every pause sweep and after every
	// resume; it never contains a player the controller did not pause.
	paused []string

	prevLeft  bool
	prevRight bool
	prevValid bool
}

// NewController connects to the session bus.
func NewController() (*Controller, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Controller{conn: conn, mode: airpods.EarPauseOneOut}, nil
}

// Close shuts the bus connection.
func (c *Controller) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// SetEarPauseMode changes the pause policy. The edge detector's previous
// state is invalidated so the next report only records state.
func (c *Controller) SetEarPauseMode(mode airpods.EarPauseMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.prevValid = false
	log.Printf("Ear pause mode set to %d", mode)
}

// EarPauseMode returns the current pause policy.
func (c *Controller) EarPauseMode() airpods.EarPauseMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// outAndIn evaluates the policy's "out" and "in" predicates for one
// left/right state.
func outAndIn(mode airpods.EarPauseMode, left, right bool) (out, in bool) {
	switch mode {
	case airpods.EarPauseOneOut:
		return !left || !right, left && right
	case airpods.EarPauseBothOut:
		return !left && !right, left || right
	default:
		return false, false
	}
}

// OnEarDetectionChanged runs the edge detector. A transition into "out"
// pauses every playing player; a transition from "out" into "in" resumes
// exactly the players paused before. The very first report after
// construction or a policy change only records state.
func (c *Controller) OnEarDetectionChanged(leftInEar, rightInEar bool) {
	shouldPause, shouldResume := c.evaluate(leftInEar, rightInEar)

	if shouldPause {
		log.Println("Ear detection: buds removed, pausing media")
		c.PauseAll()
	} else if shouldResume {
		log.Println("Ear detection: buds inserted, resuming media")
		c.Resume()
	}
}

// evaluate records the new ear state and decides which edge, if any, it
// crossed.
func (c *Controller) evaluate(leftInEar, rightInEar bool) (pause, resume bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mode := c.mode
	if mode == airpods.EarPauseDisabled {
		return false, false
	}

	if c.prevValid {
		prevOut, _ := outAndIn(mode, c.prevLeft, c.prevRight)
		out, in := outAndIn(mode, leftInEar, rightInEar)
		pause = !prevOut && out
		resume = prevOut && in
	}

	c.prevLeft = leftInEar
	c.prevRight = rightInEar
	c.prevValid = true
	return pause, resume
}

// PauseAll pauses every player currently reporting Playing and remembers
// the set it paused.
func (c *Controller) PauseAll() {
	if c.conn == nil {
		return
	}

	c.mu.Lock()
	c.paused = nil
	c.mu.Unlock()

	var justPaused []string
	for _, name := range c.listPlayers() {
		if c.playbackStatus(name) != "Playing" {
			continue
		}
		if err := c.call(name, "Pause"); err != nil {
			log.Printf("Failed to pause %s: %v", name, err)
			continue
		}
		log.Printf("Paused media player: %s", name)
		justPaused = append(justPaused, name)
	}

	c.mu.Lock()
	c.paused = justPaused
	c.mu.Unlock()
}

// Resume plays exactly the players paused by the previous PauseAll, then
// clears the set.
func (c *Controller) Resume() {
	if c.conn == nil {
		return
	}

	c.mu.Lock()
	paused := c.paused
	c.paused = nil
	c.mu.Unlock()

	for _, name := range paused {
		if err := c.call(name, "Play"); err != nil {
			log.Printf("Failed to resume %s: %v", name, err)
			continue
		}
		log.Printf("Resumed media player: %s", name)
	}
}

// listPlayers returns every bus name in the MPRIS well-known family.
func (c *Controller) listPlayers() []string {
	var names []string
	if err := c.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		log.Printf("Failed to list bus names: %v", err)
		return nil
	}

	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, namePrefix) {
			players = append(players, name)
		}
	}
	return players
}

// playbackStatus reads a player's PlaybackStatus, or "" when unreachable.
func (c *Controller) playbackStatus(name string) string {
	var variant dbus.Variant
	obj := c.conn.Object(name, playerPath)
	if err := obj.Call(propsInterface+".Get", 0, playerInterface, "PlaybackStatus").Store(&variant); err != nil {
		return ""
	}
	status, _ := variant.Value().(string)
	return status
}

func (c *Controller) call(name, method string) error {
	obj := c.conn.Object(name, playerPath)
	return obj.Call(playerInterface+"."+method, 0).Err
}
