package peering

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mcheviron/bittorrent/cmd/mybittorrent/bencode"
	"go.uber.org/zap/zaptest"
)

func TestBuildURL(t *testing.T) {
	req := TrackerRequest{
		InfoHash: bencode.InfoHash{0x12, 0xab, 'Z'},
		PeerID:   testPeerID(t, DefaultPeerID),
		Port:     6881,
		Left:     92063,
		Compact:  true,
	}
	got, err := BuildURL("http://tracker.example/announce?key=abc", req)
	if err != nil {
		t.Fatal(err)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	expect := map[string]string{
		"key":        "abc",
		"peer_id":    DefaultPeerID,
		"port":       "6881",
		"uploaded":   "0",
		"downloaded": "0",
		"left":       "92063",
		"compact":    "1",
	}
	for k, v := range expect {
		if q.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, q.Get(k), v)
		}
	}
	if q.Get("info_hash") != string(req.InfoHash[:]) {
		t.Errorf("info_hash round trip = %x", q.Get("info_hash"))
	}
	if !strings.HasSuffix(u.RawQuery, "&info_hash="+req.InfoHash.URLEncoded()) {
		t.Errorf("info_hash not percent-encoded per byte: %s", u.RawQuery)
	}
}

func newTestTracker(t *testing.T, handler http.HandlerFunc) (*Tracker, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTracker(srv.Client(), zaptest.NewLogger(t), testPeerID(t, DefaultPeerID), 6881), srv.URL + "/announce"
}

func TestGetPeers(t *testing.T) {
	info := &bencode.TorrentInfo{
		Info: bencode.InnerInfo{Length: 10, Name: "x", PieceLength: 10, Pieces: make([]byte, 20)},
	}
	wantHash := bencode.HashInfo(info)

	tracker, announce := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("info_hash") != string(wantHash[:]) {
			t.Errorf("tracker got info_hash %x", q.Get("info_hash"))
		}
		if q.Get("left") != "10" || q.Get("compact") != "1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte("d8:intervali60e5:peers12:\x7f\x00\x00\x01\x1a\xe1\x0a\x00\x00\x05\x00\x50e"))
	})
	info.Announce = announce

	peers, err := tracker.GetPeers(context.Background(), info)
	if err != nil {
		t.Fatalf("GetPeers: %v", err)
	}
	if len(peers) != 2 || peers[0].String() != "127.0.0.1:6881" || peers[1].String() != "10.0.0.5:80" {
		t.Errorf("peers = %v", peers)
	}
}

func TestAnnounceResponseFields(t *testing.T) {
	tracker, announce := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d8:completei3e10:incompletei1e8:intervali1800e12:min intervali60e5:peers0:15:warning message4:slowe"))
	})

	resp, err := tracker.Announce(context.Background(), announce, TrackerRequest{Compact: true})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Interval != 1800 || resp.MinInterval != 60 || resp.Complete != 3 || resp.Incomplete != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.WarningMessage != "slow" {
		t.Errorf("warning = %q", resp.WarningMessage)
	}
	if len(resp.Peers) != 0 {
		t.Errorf("peers = %v", resp.Peers)
	}
}

func TestAnnounceFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"http error", http.StatusInternalServerError, "", ErrTracker},
		{"failure reason", http.StatusOK, "d14:failure reason9:forbiddene", ErrTracker},
		{"not bencode", http.StatusOK, "<html>", ErrTracker},
		{"not a dictionary", http.StatusOK, "le", ErrTracker},
		{"no peers", http.StatusOK, "d8:intervali60ee", ErrTracker},
		{"dictionary peers", http.StatusOK, "d5:peersld2:ip9:127.0.0.14:porti80eeee", ErrTracker},
		{"bad peer block", http.StatusOK, "d5:peers7:abcdefge", ErrInvalidPeerBlock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracker, announce := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			_, err := tracker.Announce(context.Background(), announce, TrackerRequest{Compact: true})
			if !errors.Is(err, tc.target) {
				t.Errorf("expected %v, got %v", tc.target, err)
			}
		})
	}
}

func TestAnnounceHonoursContext(t *testing.T) {
	tracker, announce := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tracker.Announce(ctx, announce, TrackerRequest{}); !errors.Is(err, ErrTracker) {
		t.Errorf("expected ErrTracker, got %v", err)
	}
}
