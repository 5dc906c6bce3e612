package main

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/mcheviron/bittorrent/cmd/mybittorrent/config"
)

func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	runErr := fn()
	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if runErr != nil {
		t.Fatalf("command failed: %v", runErr)
	}
	return string(out)
}

func TestHandleDecode(t *testing.T) {
	out := captureStdout(t, func() error {
		return handleDecode([]string{"mybittorrent", "decode", "d3:cow3:moo4:spaml1:ai-3eee"}, config.Default())
	})
	if want := `{"cow":"moo","spam":["a",-3]}` + "\n"; out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestHandleDecodeRejectsTrailingData(t *testing.T) {
	if err := handleDecode([]string{"mybittorrent", "decode", "i1eXX"}, config.Default()); err == nil {
		t.Error("expected error for trailing data")
	}
}

func TestHandleInfo(t *testing.T) {
	out := captureStdout(t, func() error {
		return handleInfo([]string{"mybittorrent", "info", "bencode/testdata/sample.torrent"})
	})
	for _, line := range []string{
		"Tracker URL: http://tracker.example/announce",
		"Length: 92063",
		"Info Hash: f519c3a24144a8649e58efc3e359b51a386054d6",
		"Piece Length: 32768",
		"Piece Hashes:",
		"000102030405060708090a0b0c0d0e0f10111213",
		"28292a2b2c2d2e2f303132333435363738393a3b",
	} {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("output missing %q:\n%s", line, out)
		}
	}
}
