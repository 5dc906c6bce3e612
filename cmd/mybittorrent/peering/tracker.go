package peering

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mcheviron/bittorrent/cmd/mybittorrent/bencode"
	"go.uber.org/zap"
)

var ErrTracker = errors.New("tracker request failed")

type Tracker struct {
	client *http.Client
	logger *zap.Logger
	peerID PeerID
	port   uint16
}

func NewTracker(client *http.Client, logger *zap.Logger, peerID PeerID, port uint16) *Tracker {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{client: client, logger: logger, peerID: peerID, port: port}
}

// BuildURL appends the announce parameters to announceURL. info_hash is
// percent-encoded byte by byte and appended after the other parameters.
func BuildURL(announceURL string, req TrackerRequest) (string, error) {
	u, err := url.Parse(announceURL)
	if err != nil {
		return "", fmt.Errorf("invalid announce URL: %w", err)
	}

	compact := "0"
	if req.Compact {
		compact = "1"
	}
	params := u.Query()
	params.Set("peer_id", string(req.PeerID[:]))
	params.Set("port", strconv.Itoa(int(req.Port)))
	params.Set("uploaded", strconv.FormatInt(req.Uploaded, 10))
	params.Set("downloaded", strconv.FormatInt(req.Downloaded, 10))
	params.Set("left", strconv.FormatInt(req.Left, 10))
	params.Set("compact", compact)

	u.RawQuery = params.Encode() + "&info_hash=" + req.InfoHash.URLEncoded()
	return u.String(), nil
}

func (t *Tracker) Announce(ctx context.Context, announceURL string, req TrackerRequest) (*TrackerResponse, error) {
	trackerURL, err := BuildURL(announceURL, req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, trackerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tracker request: %w", err)
	}

	t.logger.Debug("Announcing to tracker",
		zap.String("tracker", announceURL),
		zap.Stringer("info_hash", req.InfoHash),
		zap.Int64("left", req.Left),
	)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTracker, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrTracker, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: tracker returned HTTP %d", ErrTracker, resp.StatusCode)
	}

	trackerResp, err := parseTrackerResponse(body)
	if err != nil {
		return nil, err
	}
	if trackerResp.WarningMessage != "" {
		t.logger.Warn("Tracker warning", zap.String("message", trackerResp.WarningMessage))
	}
	t.logger.Debug("Tracker responded",
		zap.Int("status", resp.StatusCode),
		zap.Int("interval", trackerResp.Interval),
		zap.Int("peers", len(trackerResp.Peers)),
	)
	return trackerResp, nil
}

func parseTrackerResponse(body []byte) (*TrackerResponse, error) {
	value, err := bencode.Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode tracker response: %v", ErrTracker, err)
	}
	dict, ok := value.Dict()
	if !ok {
		return nil, fmt.Errorf("%w: expected dictionary response, got %s", ErrTracker, value.Kind())
	}

	if peers, ok := dict.Get("peers"); ok && peers.Kind() != bencode.KindByteString {
		return nil, fmt.Errorf("%w: expected compact peers byte string, got %s", ErrTracker, peers.Kind())
	}

	trackerResp := &TrackerResponse{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           trackerResp,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(value.Native()); err != nil {
		return nil, fmt.Errorf("%w: unexpected response shape: %v", ErrTracker, err)
	}

	if trackerResp.FailureReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrTracker, trackerResp.FailureReason)
	}

	if _, ok := dict.Get("peers"); !ok {
		return nil, fmt.Errorf("%w: response has no peers", ErrTracker)
	}

	trackerResp.Peers, err = ParsePeers([]byte(trackerResp.RawPeers))
	if err != nil {
		return nil, err
	}
	return trackerResp, nil
}

// GetPeers announces the torrent with nothing downloaded yet and returns
// the compact peer list.
func (t *Tracker) GetPeers(ctx context.Context, info *bencode.TorrentInfo) ([]Peer, error) {
	resp, err := t.Announce(ctx, info.Announce, TrackerRequest{
		InfoHash: bencode.HashInfo(info),
		PeerID:   t.peerID,
		Port:     t.port,
		Left:     info.Info.Length,
		Compact:  true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Peers, nil
}
