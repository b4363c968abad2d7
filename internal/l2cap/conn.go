// Package l2cap manages the L2CAP control channel to the device.
//
// The channel is a SOCK_SEQPACKET Bluetooth socket on PSM 4097 (0x1001):
// one read yields one complete AAP frame. After connect the socket is
// switched to non-blocking and serviced by a poll-driven receive loop;
// frames and state transitions are delivered through callbacks registered
// before Connect.
package l2cap

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"librepods/internal/aap"
)

// PSM is the fixed Protocol/Service Multiplexer of the AAP channel.
const PSM = 0x1001

// maxPacketSize bounds both transmit and receive; larger frames are
// neither expected nor supported.
const maxPacketSize = 1024

// BT_SNDMTU and BT_RCVMTU are Linux Bluetooth socket options
// (linux/bluetooth.h); golang.org/x/sys/unix does not expose them.
const (
	btSNDMTU = 12
	btRCVMTU = 13
)

// State is the transport connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "disconnected"
	}
}

// ErrNotConnected is returned by Send when no channel is open.
var ErrNotConnected = errors.New("l2cap: not connected")

// DataFunc receives one complete inbound frame per call.
type DataFunc func(data []byte)

// StateFunc observes transport state transitions. err is non-nil only for
// StateError.
type StateFunc func(state State, err error)

// Conn is an L2CAP connection to a single device. A Conn owns at most one
// socket at a time; it may be reused for sequential connects.
type Conn struct {
	mu      sync.Mutex
	fd      int
	state   State
	address string
	gen     uint64 // increments per connect, stops stale read loops

	onData  DataFunc
	onState StateFunc

	debug bool
}

// New returns a disconnected Conn.
func New() *Conn {
	return &Conn{fd: -1}
}

// SetDataFunc registers the inbound-frame callback. Must be called before
// Connect.
func (c *Conn) SetDataFunc(fn DataFunc) {
	c.onData = fn
}

// SetStateFunc registers the state-transition observer. Must be called
// before Connect.
func (c *Conn) SetStateFunc(fn StateFunc) {
	c.onState = fn
}

// SetDebug enables hex dumps of every frame sent and received.
func (c *Conn) SetDebug(debug bool) {
	c.debug = debug
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(state State, err error) {
	c.mu.Lock()
	c.state = state
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(state, err)
	}
}

// Connect opens the L2CAP channel to the given MAC address. The connect
// call itself blocks (BlueZ gates its duration); on success the socket is
// made non-blocking and the receive loop starts.
func (c *Conn) Connect(address string) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return fmt.Errorf("l2cap: cannot connect while %s", c.state)
	}
	c.mu.Unlock()

	bdaddr, err := parseAddress(address)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, unix.BTPROTO_L2CAP)
	if err != nil {
		c.setState(StateError, err)
		return fmt.Errorf("failed to create L2CAP socket: %w", err)
	}

	// MTU 1024 both ways; best effort, the kernel default is workable.
	_ = unix.SetsockoptInt(fd, unix.SOL_BLUETOOTH, btRCVMTU, maxPacketSize)
	_ = unix.SetsockoptInt(fd, unix.SOL_BLUETOOTH, btSNDMTU, maxPacketSize)

	c.mu.Lock()
	c.fd = fd
	c.address = address
	c.mu.Unlock()
	c.setState(StateConnecting, nil)

	log.Printf("Connecting to %s on PSM 0x%04X...", address, PSM)

	sa := &unix.SockaddrL2{
		PSM:      PSM,
		Addr:     bdaddr,
		AddrType: unix.BDADDR_BREDR,
	}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		c.mu.Lock()
		c.fd = -1
		c.mu.Unlock()
		c.setState(StateError, err)
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		log.Printf("Failed to set non-blocking mode: %v", err)
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	log.Printf("Connected to %s", address)
	c.setState(StateConnected, nil)

	go c.readLoop(fd, gen)
	return nil
}

// Disconnect closes the socket and announces StateDisconnected. Safe to
// call repeatedly.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	if c.fd >= 0 {
		unix.Close(c.fd)
		c.fd = -1
	}
	c.gen++ // invalidate the running read loop
	wasDown := c.state == StateDisconnected
	c.mu.Unlock()

	if !wasDown {
		c.setState(StateDisconnected, nil)
	}
}

// Send writes one frame to the channel. A connection-level send failure
// tears the channel down, which fans out StateDisconnected.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	fd := c.fd
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || fd < 0 {
		return ErrNotConnected
	}

	if c.debug {
		log.Printf("TX: %s", hexDump(data))
	}

	n, err := unix.Write(fd, data)
	if err != nil {
		if errors.Is(err, unix.ECONNRESET) || errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ENOTCONN) {
			c.Disconnect()
		}
		return fmt.Errorf("send failed: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(data))
	}
	return nil
}

// SendInitSequence sends the handshake, feature-set, and
// request-notifications frames in order. The device drops the channel when
// the frames arrive back to back, so a short pause separates the sends; no
// acknowledgement frame exists to wait on instead.
func (c *Conn) SendInitSequence() error {
	time.Sleep(100 * time.Millisecond)
	if err := c.Send(aap.Handshake); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := c.Send(aap.SetFeatures); err != nil {
		return fmt.Errorf("set features: %w", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := c.Send(aap.RequestNotifications); err != nil {
		return fmt.Errorf("request notifications: %w", err)
	}
	return nil
}

// readLoop services the socket until it is closed or the peer hangs up.
// gen guards against acting on a socket that has since been replaced.
func (c *Conn) readLoop(fd int, gen uint64) {
	buf := make([]byte, maxPacketSize)
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}

	for {
		c.mu.Lock()
		stale := c.gen != gen
		c.mu.Unlock()
		if stale {
			return
		}

		fds[0].Revents = 0
		n, err := unix.Poll(fds, 1000)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			c.teardown(gen, fmt.Errorf("poll: %w", err))
			return
		}
		if n == 0 {
			continue
		}

		if fds[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			log.Println("Socket error or hangup")
			c.teardown(gen, nil)
			return
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		n, err = unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				continue
			}
			log.Printf("Receive error: %v", err)
			c.teardown(gen, nil)
			return
		}
		if n == 0 {
			log.Println("Connection closed by peer")
			c.teardown(gen, nil)
			return
		}

		if c.debug {
			log.Printf("RX: %s", hexDump(buf[:n]))
		}

		if c.onData != nil {
			frame := make([]byte, n)
			copy(frame, buf[:n])
			c.onData(frame)
		}
	}
}

// teardown closes the socket from the read loop unless a newer connection
// has already replaced it.
func (c *Conn) teardown(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.fd >= 0 {
		unix.Close(c.fd)
		c.fd = -1
	}
	c.gen++
	c.mu.Unlock()

	if err != nil {
		log.Printf("Transport error: %v", err)
	}
	c.setState(StateDisconnected, nil)
}

// parseAddress converts "XX:XX:XX:XX:XX:XX" to the byte-reversed bdaddr
// the kernel expects.
func parseAddress(address string) ([6]byte, error) {
	var bdaddr [6]byte

	cleaned := strings.ReplaceAll(address, ":", "")
	if len(cleaned) != 12 {
		return bdaddr, errors.New("wrong length")
	}
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return bdaddr, err
	}

	// Bluetooth addresses are stored least-significant byte first.
	for i := 0; i < 6; i++ {
		bdaddr[i] = raw[5-i]
	}
	return bdaddr, nil
}

func hexDump(data []byte) string {
	const limit = 64
	var sb strings.Builder
	for i, b := range data {
		if i == limit {
			fmt.Fprintf(&sb, "... (%d more bytes)", len(data)-limit)
			break
		}
		fmt.Fprintf(&sb, "%02X ", b)
	}
	return strings.TrimSpace(sb.String())
}
