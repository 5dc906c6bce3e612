package peering

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

const compactPeerLen = 6

var ErrInvalidPeerBlock = errors.New("invalid compact peer block length")

// ParsePeers decodes the compact peer format: 4 bytes of IPv4 address
// followed by a big-endian port, repeated.
func ParsePeers(data []byte) ([]Peer, error) {
	if len(data)%compactPeerLen != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrInvalidPeerBlock, len(data), compactPeerLen)
	}

	peers := make([]Peer, 0, len(data)/compactPeerLen)
	for i := 0; i < len(data); i += compactPeerLen {
		peers = append(peers, Peer{
			IP:   net.IPv4(data[i], data[i+1], data[i+2], data[i+3]).To4(),
			Port: binary.BigEndian.Uint16(data[i+4 : i+6]),
		})
	}
	return peers, nil
}
