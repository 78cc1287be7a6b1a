package tap

import (
	"net"
	"testing"

	"go.uber.org/mock/gomock"
)

func TestPipeRoundTripsFrames(t *testing.T) {
	mac := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	p := NewPipe(mac)
	defer p.Close()

	p.InjectFrame([]byte("incoming frame"))
	buf := make([]byte, 64)
	n, err := p.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "incoming frame" {
		t.Fatalf("got %q", buf[:n])
	}

	if _, err := p.Write([]byte("outgoing frame")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := string(p.WrittenFrame()); got != "outgoing frame" {
		t.Fatalf("got %q", got)
	}

	if p.EthernetAddress().String() != mac.String() {
		t.Fatalf("got mac %v want %v", p.EthernetAddress(), mac)
	}
}

func TestPipeConfigureAndConnectedState(t *testing.T) {
	p := NewPipe(net.HardwareAddr{0x02, 0, 0, 0, 0, 2})
	defer p.Close()

	if err := p.Configure(Configuration{MTU: 1400}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := p.SetConnectedState(true); err != nil {
		t.Fatalf("set connected state: %v", err)
	}
	if !p.Connected() {
		t.Fatal("expected pipe to report connected")
	}
}

func TestPipeCloseUnblocksRead(t *testing.T) {
	p := NewPipe(net.HardwareAddr{0x02, 0, 0, 0, 0, 3})
	p.Close()
	buf := make([]byte, 16)
	if _, err := p.Read(buf); err == nil {
		t.Fatal("expected read on a closed pipe to return an error")
	}
}

func TestMockDeviceRecordsExpectedCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockDevice(ctrl)

	mock.EXPECT().EthernetAddress().Return(net.HardwareAddr{0x02, 0, 0, 0, 0, 4})
	mock.EXPECT().Configure(gomock.Any()).Return(nil)

	if got := mock.EthernetAddress().String(); got != "02:00:00:00:00:04" {
		t.Fatalf("got %q", got)
	}
	if err := mock.Configure(Configuration{MTU: 1500}); err != nil {
		t.Fatalf("configure: %v", err)
	}
}
