package l2cap

import "testing"

func TestParseAddress(t *testing.T) {
	bdaddr, err := parseAddress("90:62:3F:59:00:2F")
	if err != nil {
		t.Fatalf("parseAddress() error = %v", err)
	}
	// The kernel wants the address least-significant byte first.
	want := [6]byte{0x2F, 0x00, 0x59, 0x3F, 0x62, 0x90}
	if bdaddr != want {
		t.Errorf("parseAddress() = % X, want % X", bdaddr, want)
	}
}

func TestParseAddressErrors(t *testing.T) {
	for _, address := range []string{"", "90:62:3F", "90:62:3F:59:00:2F:FF", "zz:62:3F:59:00:2F"} {
		if _, err := parseAddress(address); err == nil {
			t.Errorf("parseAddress(%q) should fail", address)
		}
	}
}

func TestSendRefusedWhileDisconnected(t *testing.T) {
	c := New()
	if err := c.Send([]byte{0x01}); err != ErrNotConnected {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateError, "error"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	var transitions []State
	c := New()
	c.SetStateFunc(func(state State, err error) {
		transitions = append(transitions, state)
	})

	c.Disconnect()
	c.Disconnect()

	if len(transitions) != 0 {
		t.Errorf("disconnecting a disconnected conn emitted %v", transitions)
	}
}
