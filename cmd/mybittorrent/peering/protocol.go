package peering

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/mcheviron/bittorrent/cmd/mybittorrent/bencode"
)

const (
	ProtocolName = "BitTorrent protocol"
	HandshakeLen = 1 + len(ProtocolName) + 8 + 20 + 20
)

var (
	ErrInvalidHandshake = errors.New("invalid handshake")
	ErrInfoHashMismatch = errors.New("handshake info hash mismatch")
)

type Handshake struct {
	Reserved [8]byte
	InfoHash bencode.InfoHash
	PeerID   PeerID
}

func NewHandshake(infoHash bencode.InfoHash, peerID PeerID) Handshake {
	return Handshake{InfoHash: infoHash, PeerID: peerID}
}

// Serialize lays the handshake out as the fixed 68-byte frame.
func (h Handshake) Serialize() []byte {
	buf := make([]byte, 0, HandshakeLen)
	buf = append(buf, byte(len(ProtocolName)))
	buf = append(buf, ProtocolName...)
	buf = append(buf, h.Reserved[:]...)
	buf = append(buf, h.InfoHash[:]...)
	buf = append(buf, h.PeerID[:]...)
	return buf
}

func ParseHandshake(data []byte) (Handshake, error) {
	var h Handshake
	if len(data) != HandshakeLen {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHandshake, HandshakeLen, len(data))
	}
	if int(data[0]) != len(ProtocolName) {
		return h, fmt.Errorf("%w: expected protocol name length %d, got %d", ErrInvalidHandshake, len(ProtocolName), data[0])
	}
	if !bytes.Equal(data[1:20], []byte(ProtocolName)) {
		return h, fmt.Errorf("%w: expected protocol %q, got %q", ErrInvalidHandshake, ProtocolName, data[1:20])
	}
	copy(h.Reserved[:], data[20:28])
	copy(h.InfoHash[:], data[28:48])
	copy(h.PeerID[:], data[48:68])
	return h, nil
}

func (h Handshake) Verify(infoHash bencode.InfoHash) error {
	if h.InfoHash != infoHash {
		return fmt.Errorf("%w: expected %s, got %s", ErrInfoHashMismatch, infoHash, h.InfoHash)
	}
	return nil
}

// PerformHandshake sends our handshake and returns the peer's reply once
// it has been checked against infoHash.
func PerformHandshake(conn net.Conn, infoHash bencode.InfoHash, peerID PeerID, timeout time.Duration) (Handshake, error) {
	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return Handshake{}, fmt.Errorf("failed to set handshake deadline: %w", err)
		}
		defer conn.SetDeadline(time.Time{})
	}

	if _, err := conn.Write(NewHandshake(infoHash, peerID).Serialize()); err != nil {
		return Handshake{}, fmt.Errorf("failed to send handshake: %w", err)
	}

	response := make([]byte, HandshakeLen)
	if _, err := io.ReadFull(conn, response); err != nil {
		return Handshake{}, fmt.Errorf("failed to receive handshake: %w", err)
	}

	reply, err := ParseHandshake(response)
	if err != nil {
		return Handshake{}, err
	}
	if err := reply.Verify(infoHash); err != nil {
		return Handshake{}, err
	}
	return reply, nil
}
