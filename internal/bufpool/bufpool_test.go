package bufpool

import "testing"

func TestGetReturnsRequestedLength(t *testing.T) {
	buf := Get(100)
	if len(buf) != 100 {
		t.Fatalf("got length %d, want 100", len(buf))
	}
	Put(buf)
}

func TestGetFallsBackToHeapForOversizedRequests(t *testing.T) {
	buf := Get(DatagramSize + 1)
	if len(buf) != DatagramSize+1 {
		t.Fatalf("got length %d, want %d", len(buf), DatagramSize+1)
	}
	Put(buf)
}
