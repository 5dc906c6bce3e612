package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/mcheviron/bittorrent/cmd/mybittorrent/bencode"
	"github.com/mcheviron/bittorrent/cmd/mybittorrent/config"
	"github.com/mcheviron/bittorrent/cmd/mybittorrent/peering"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func init() {
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

func main() {
	logger := zap.L()
	defer logger.Sync()

	if len(os.Args) < 2 {
		logger.Error("Usage: mybittorrent <decode|info|peers|handshake> [args...]")
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.Load(os.Environ())
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		os.Exit(1)
	}

	switch command {
	case "decode":
		if err := handleDecode(os.Args, cfg); err != nil {
			logger.Error("Failed to decode", zap.Error(err))
			os.Exit(1)
		}
	case "info":
		if err := handleInfo(os.Args); err != nil {
			logger.Error("Failed to get info", zap.Error(err))
			os.Exit(1)
		}
	case "peers":
		if err := handlePeers(os.Args, cfg); err != nil {
			logger.Error("Failed to get peers", zap.Error(err))
			os.Exit(1)
		}
	case "handshake":
		if err := handleHandshake(os.Args, cfg); err != nil {
			logger.Error("Failed to handshake", zap.Error(err))
			os.Exit(1)
		}
	default:
		logger.Error("Unknown command", zap.String("command", command))
		os.Exit(1)
	}
}

// Command handlers

func handleDecode(args []string, cfg config.Config) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: decode <bencoded-value>")
	}
	decoder := &bencode.Decoder{MaxDepth: cfg.MaxDepth}
	decoded, err := decoder.Unmarshal([]byte(args[2]))
	if err != nil {
		return err
	}
	jsonOutput, err := json.Marshal(decoded)
	if err != nil {
		return err
	}
	fmt.Println(string(jsonOutput))
	return nil
}

func loadTorrent(args []string) (*bencode.TorrentInfo, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("file path required")
	}
	fileContent, err := os.ReadFile(args[2])
	if err != nil {
		return nil, fmt.Errorf("failed to read torrent file: %w", err)
	}
	info, err := bencode.Info(fileContent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse torrent file: %w", err)
	}
	return info, nil
}

func handleInfo(args []string) error {
	info, err := loadTorrent(args)
	if err != nil {
		return err
	}

	fmt.Printf("Tracker URL: %s\n", info.Announce)
	fmt.Printf("Length: %d\n", info.Info.Length)
	fmt.Printf("Info Hash: %s\n", bencode.HashInfo(info))
	fmt.Printf("Piece Length: %d\n", info.Info.PieceLength)
	fmt.Println("Piece Hashes:")
	for _, pieceHash := range info.Info.PieceHashes() {
		fmt.Printf("%x\n", pieceHash)
	}
	return nil
}

func peerID(cfg config.Config) (peering.PeerID, error) {
	if cfg.PeerID == config.RandomPeerID {
		return peering.NewPeerID("-MY0001-")
	}
	return peering.ParsePeerID(cfg.PeerID)
}

func handlePeers(args []string, cfg config.Config) error {
	info, err := loadTorrent(args)
	if err != nil {
		return err
	}
	id, err := peerID(cfg)
	if err != nil {
		return err
	}

	tracker := peering.NewTracker(&http.Client{Timeout: cfg.TrackerTimeout}, zap.L(), id, cfg.Port)
	peers, err := tracker.GetPeers(context.Background(), info)
	if err != nil {
		return err
	}

	for _, peer := range peers {
		fmt.Println(peer)
	}
	return nil
}

func handleHandshake(args []string, cfg config.Config) error {
	if len(args) < 4 {
		return fmt.Errorf("not enough arguments. Usage: handshake <torrent-file> <peer-address>")
	}
	info, err := loadTorrent(args)
	if err != nil {
		return err
	}
	id, err := peerID(cfg)
	if err != nil {
		return err
	}

	peerAddr := args[3]
	conn, err := net.DialTimeout("tcp", peerAddr, cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to peer: %w", err)
	}
	defer conn.Close()

	reply, err := peering.PerformHandshake(conn, bencode.HashInfo(info), id, cfg.DialTimeout)
	if err != nil {
		return err
	}
	zap.L().Debug("Handshake complete", zap.String("peer", peerAddr))

	fmt.Printf("Peer ID: %x\n", reply.PeerID)
	return nil
}
