package bencode

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	jackpal "github.com/jackpal/bencode-go"
)

const PieceHashLen = sha1.Size

var ErrInvalidMetainfo = errors.New("invalid torrent metainfo")

type TorrentInfo struct {
	Announce  string
	CreatedBy string
	Info      InnerInfo
}

type InnerInfo struct {
	Length      int64
	Name        string
	PieceLength int64
	Pieces      []byte
}

// torrentFile mirrors the on-disk layout for typed deserialization.
type torrentFile struct {
	Announce  string `bencode:"announce"`
	CreatedBy string `bencode:"created by"`
	Info      struct {
		Length      int64  `bencode:"length"`
		Name        string `bencode:"name"`
		PieceLength int64  `bencode:"piece length"`
		Pieces      string `bencode:"pieces"`
	} `bencode:"info"`
}

// Info parses a single-file .torrent document.
func Info(data []byte) (*TorrentInfo, error) {
	if err := requireInfoKeys(data); err != nil {
		return nil, err
	}

	var raw torrentFile
	if err := jackpal.Unmarshal(bytes.NewReader(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal torrent file: %w", err)
	}

	info := &TorrentInfo{
		Announce:  raw.Announce,
		CreatedBy: raw.CreatedBy,
		Info: InnerInfo{
			Length:      raw.Info.Length,
			Name:        raw.Info.Name,
			PieceLength: raw.Info.PieceLength,
			Pieces:      []byte(raw.Info.Pieces),
		},
	}
	if err := info.Info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}

// requireInfoKeys checks the keys that typed unmarshalling would
// otherwise zero-fill when absent.
func requireInfoKeys(data []byte) error {
	root, err := Unmarshal(data)
	if err != nil {
		return fmt.Errorf("failed to decode torrent file: %w", err)
	}
	dict, ok := root.Dict()
	if !ok {
		return fmt.Errorf("%w: expected dictionary, got %s", ErrInvalidMetainfo, root.Kind())
	}
	infoValue, ok := dict.Get("info")
	if !ok {
		return fmt.Errorf("%w: missing info dictionary", ErrInvalidMetainfo)
	}
	info, ok := infoValue.Dict()
	if !ok {
		return fmt.Errorf("%w: info is a %s, not a dictionary", ErrInvalidMetainfo, infoValue.Kind())
	}
	for _, key := range []string{"length", "name", "piece length", "pieces"} {
		if _, ok := info.Get(key); !ok {
			if _, multi := info.Get("files"); multi && key == "length" {
				return fmt.Errorf("%w: multi-file torrents are not supported", ErrInvalidMetainfo)
			}
			return fmt.Errorf("%w: info is missing %q", ErrInvalidMetainfo, key)
		}
	}
	return nil
}

func (i InnerInfo) Validate() error {
	switch {
	case i.Length < 0:
		return fmt.Errorf("%w: negative length %d", ErrInvalidMetainfo, i.Length)
	case i.PieceLength <= 0:
		return fmt.Errorf("%w: piece length must be positive, got %d", ErrInvalidMetainfo, i.PieceLength)
	case len(i.Pieces)%PieceHashLen != 0:
		return fmt.Errorf("%w: pieces length %d is not a multiple of %d", ErrInvalidMetainfo, len(i.Pieces), PieceHashLen)
	}
	return nil
}

func (i InnerInfo) PieceCount() int {
	return len(i.Pieces) / PieceHashLen
}

func (i InnerInfo) PieceHashes() [][PieceHashLen]byte {
	hashes := make([][PieceHashLen]byte, i.PieceCount())
	for n := range hashes {
		copy(hashes[n][:], i.Pieces[n*PieceHashLen:])
	}
	return hashes
}

type InfoHash [sha1.Size]byte

func (h InfoHash) String() string {
	return hex.EncodeToString(h[:])
}

// URLEncoded percent-encodes every byte of the hash.
func (h InfoHash) URLEncoded() string {
	var b strings.Builder
	b.Grow(len(h) * 3)
	for _, c := range h {
		fmt.Fprintf(&b, "%%%02x", c)
	}
	return b.String()
}

func HashInfo(info *TorrentInfo) InfoHash {
	return sha1.Sum(EncodeInfo(info.Info))
}
