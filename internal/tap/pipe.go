package tap

import (
	"io"
	"net"
	"sync"
)

// Pipe is an in-memory Device backed by two byte channels, standing in for
// a real TAP adapter in tests: frames written by the engine are readable
// by the test, and vice versa.
type Pipe struct {
	mac net.HardwareAddr

	mu     sync.Mutex
	closed bool

	toEngine   chan []byte
	fromEngine chan []byte

	lastConfig    Configuration
	connected     bool
	additionalIPs []net.IPNet
}

// NewPipe returns a Pipe presenting mac as its Ethernet address.
func NewPipe(mac net.HardwareAddr) *Pipe {
	return &Pipe{
		mac:        mac,
		toEngine:   make(chan []byte, 64),
		fromEngine: make(chan []byte, 64),
	}
}

func (p *Pipe) Read(buf []byte) (int, error) {
	frame, ok := <-p.toEngine
	if !ok {
		return 0, io.EOF
	}
	return copy(buf, frame), nil
}

func (p *Pipe) Write(buf []byte) (int, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}
	frame := make([]byte, len(buf))
	copy(frame, buf)
	p.fromEngine <- frame
	return len(buf), nil
}

func (p *Pipe) EthernetAddress() net.HardwareAddr { return p.mac }

func (p *Pipe) Configure(cfg Configuration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastConfig = cfg
	return nil
}

func (p *Pipe) SetConnectedState(connected bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = connected
	return nil
}

func (p *Pipe) AddIP(ip net.IPNet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.additionalIPs = append(p.additionalIPs, ip)
	return nil
}

func (p *Pipe) RemoveIP(ip net.IPNet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.additionalIPs {
		if existing.String() == ip.String() {
			p.additionalIPs = append(p.additionalIPs[:i], p.additionalIPs[i+1:]...)
			break
		}
	}
	return nil
}

func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.toEngine)
	return nil
}

// InjectFrame delivers frame to the engine's next Read, as if it had
// arrived from the platform TAP driver.
func (p *Pipe) InjectFrame(frame []byte) {
	p.toEngine <- frame
}

// WrittenFrame blocks until the engine writes a frame and returns it.
func (p *Pipe) WrittenFrame() []byte {
	return <-p.fromEngine
}

// Connected reports the last value passed to SetConnectedState.
func (p *Pipe) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}
