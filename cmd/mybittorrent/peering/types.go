package peering

import (
	"crypto/rand"
	"fmt"
	"net"
	"strconv"

	"github.com/mcheviron/bittorrent/cmd/mybittorrent/bencode"
)

const DefaultPeerID = "-MY0001-123456789012"

type PeerID [20]byte

// NewPeerID fills whatever prefix leaves of the id with random bytes.
func NewPeerID(prefix string) (PeerID, error) {
	var id PeerID
	if len(prefix) > len(id) {
		return id, fmt.Errorf("peer id prefix %q longer than %d bytes", prefix, len(id))
	}
	n := copy(id[:], prefix)
	if _, err := rand.Read(id[n:]); err != nil {
		return id, fmt.Errorf("failed to generate peer id: %w", err)
	}
	return id, nil
}

func ParsePeerID(s string) (PeerID, error) {
	var id PeerID
	if len(s) != len(id) {
		return id, fmt.Errorf("peer id must be %d bytes, got %d", len(id), len(s))
	}
	copy(id[:], s)
	return id, nil
}

type Peer struct {
	IP   net.IP
	Port uint16
}

func (p Peer) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

type TrackerRequest struct {
	InfoHash   bencode.InfoHash
	PeerID     PeerID
	Port       uint16
	Uploaded   int64
	Downloaded int64
	Left       int64
	Compact    bool
}

type TrackerResponse struct {
	FailureReason  string `mapstructure:"failure reason"`
	WarningMessage string `mapstructure:"warning message"`
	Interval       int    `mapstructure:"interval"`
	MinInterval    int    `mapstructure:"min interval"`
	Complete       int    `mapstructure:"complete"`
	Incomplete     int    `mapstructure:"incomplete"`
	RawPeers       string `mapstructure:"peers"`
	Peers          []Peer `mapstructure:"-"`
}
