package session

import "bytes"

// HostID is a node's opaque identifier, exchanged in SESSION_REQUEST/SESSION
// and used to break ties between simultaneous rekeys (§4.4).
type HostID []byte

// LocalWins reports whether local's HostID wins the tie-break against
// remote's: the lexicographically lower HostID wins (§4.4), so the loser's
// proposal is discarded and only the winner's SESSION_REQUEST survives.
func LocalWins(local, remote HostID) bool {
	return bytes.Compare(local, remote) < 0
}
