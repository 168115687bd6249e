package download

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseFlatListing(t *testing.T) {
	data := []byte(`{
		"title": "Royalty Free EDM Mix",
		"entries": [
			{"id": "abc123", "url": "https://www.youtube.com/watch?v=abc123", "title": "First Track", "duration": 241.0},
			{"id": "def456", "title": "No URL Track", "duration": 180},
			{"id": "ghi789", "url": "https://www.youtube.com/watch?v=ghi789", "title": "No Duration Track"}
		]
	}`)

	entries, err := parseFlatListing(data)
	if err != nil {
		t.Fatalf("parseFlatListing: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].ID != "abc123" || entries[0].Duration != 241 {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].URL != "https://www.youtube.com/watch?v=def456" {
		t.Errorf("entry without url should get a watch URL from its id, got %q", entries[1].URL)
	}
	if entries[2].Duration != 0 {
		t.Errorf("missing duration should parse as 0, got %d", entries[2].Duration)
	}
}

func TestParseFlatListingRejectsGarbage(t *testing.T) {
	if _, err := parseFlatListing([]byte("ERROR: not a playlist")); err == nil {
		t.Error("expected error for non-JSON output")
	}
}

func TestDownloadArgs(t *testing.T) {
	c := &Client{
		logger: zerolog.Nop(),
		path:   "/usr/bin/yt-dlp",
		cfg: Config{
			AudioFormat:  "mp3",
			AudioQuality: "192K",
			UseArchive:   true,
		},
	}
	args := c.downloadArgs("https://www.youtube.com/watch?v=abc123", "/music/pool/Track Name.mp3")
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-x",
		"--audio-format mp3",
		"--audio-quality 192K",
		"--no-playlist",
		"-o /music/pool/Track Name.%(ext)s",
		"--download-archive /music/pool/.download-archive.txt",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q in %q", want, joined)
		}
	}
	if args[len(args)-1] != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("url must be the final argument, got %q", args[len(args)-1])
	}
}

func TestDownloadArgsNoArchive(t *testing.T) {
	c := &Client{logger: zerolog.Nop(), cfg: Config{AudioFormat: "mp3"}}
	args := c.downloadArgs("u", "/tmp/x.mp3")
	if strings.Contains(strings.Join(args, " "), "--download-archive") {
		t.Error("archive flag present with UseArchive disabled")
	}
}

func TestNextBackoff(t *testing.T) {
	if got := nextBackoff(2*time.Second, 30*time.Second); got != 4*time.Second {
		t.Errorf("nextBackoff = %v, want 4s", got)
	}
	if got := nextBackoff(20*time.Second, 30*time.Second); got != 30*time.Second {
		t.Errorf("nextBackoff should cap at 30s, got %v", got)
	}
}

func TestWithJitterBounds(t *testing.T) {
	base := 4 * time.Second
	for i := 0; i < 50; i++ {
		d := withJitter(base)
		if d < base || d > base+base/4+time.Nanosecond {
			t.Fatalf("jittered delay %v outside [%v, %v]", d, base, base+base/4)
		}
	}
}

func TestOutputTemplate(t *testing.T) {
	if got := outputTemplate("/a/b/Song.mp3"); got != "/a/b/Song.%(ext)s" {
		t.Errorf("outputTemplate = %q", got)
	}
}
