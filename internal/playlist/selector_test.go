package playlist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeDownloader struct {
	entries []TrackEntry

	mu        sync.Mutex
	flatCalls int
	fetched   []string
}

func (f *fakeDownloader) FlatEntries(ctx context.Context, playlistURL string) ([]TrackEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flatCalls++
	return f.entries, nil
}

func (f *fakeDownloader) DownloadAudio(ctx context.Context, url, outputPath string) error {
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	f.mu.Unlock()
	return os.WriteFile(outputPath, []byte("audio"), 0644)
}

func (f *fakeDownloader) downloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

// fakeProber reports durations keyed by base filename
type fakeProber struct {
	durations map[string]float64
}

func (f *fakeProber) AudioDuration(ctx context.Context, path string) (float64, error) {
	d, ok := f.durations[filepath.Base(path)]
	if !ok {
		return 0, fmt.Errorf("unknown file %s", path)
	}
	return d, nil
}

func newTestSelector(t *testing.T, downloader *fakeDownloader, prober *fakeProber, provider *fakeProvider) *Selector {
	t.Helper()
	return NewSelector(zerolog.Nop(), provider, newTestCache(t), downloader, prober, SelectorConfig{
		BufferSeconds: 30,
		MaxTopUps:     3,
		Seed:          1,
	})
}

func TestBuildSufficientPoolIsNoOp(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.mp3", "b.mp3"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("audio"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	downloader := &fakeDownloader{}
	prober := &fakeProber{durations: map[string]float64{"a.mp3": 120, "b.mp3": 80}}
	provider := &fakeProvider{}
	s := newTestSelector(t, downloader, prober, provider)

	total, err := s.Build(context.Background(), "https://example.com/pl", dir, 150)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if total != 200 {
		t.Errorf("total = %g, want 200", total)
	}
	if downloader.flatCalls != 0 || downloader.downloadCount() != 0 {
		t.Errorf("sufficient pool triggered %d listings and %d downloads, want none",
			downloader.flatCalls, downloader.downloadCount())
	}
	if provider.durationCalls != 0 {
		t.Errorf("sufficient pool hit the metadata API %d times", provider.durationCalls)
	}
}

func TestBuildGreedySelectionStopsPastGoal(t *testing.T) {
	dir := t.TempDir()
	downloader := &fakeDownloader{entries: []TrackEntry{
		{ID: "t1", URL: "u1", Title: "Alpha"},
		{ID: "t2", URL: "u2", Title: "Beta"},
		{ID: "t3", URL: "u3", Title: "Gamma"},
		{ID: "t4", URL: "u4", Title: "Delta"},
		{ID: "t5", URL: "u5", Title: "Epsilon"},
	}}
	prober := &fakeProber{durations: map[string]float64{
		"Alpha.mp3": 60, "Beta.mp3": 60, "Gamma.mp3": 60,
		"Delta.mp3": 60, "Epsilon.mp3": 60,
	}}
	provider := &fakeProvider{durations: map[string]int{
		"t1": 60, "t2": 60, "t3": 60, "t4": 60, "t5": 60,
	}}
	s := newTestSelector(t, downloader, prober, provider)

	// Shortfall 100, goal 130: the walk stops at three 60s tracks (180).
	total, err := s.Build(context.Background(), "https://example.com/pl", dir, 100)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := downloader.downloadCount(); got != 3 {
		t.Errorf("downloaded %d tracks, want 3", got)
	}
	if downloader.flatCalls != 1 {
		t.Errorf("flat listings = %d, want 1", downloader.flatCalls)
	}
	if total != 180 {
		t.Errorf("total = %g, want 180", total)
	}
}

func TestBuildSkipsExistingAndUnusableEntries(t *testing.T) {
	dir := t.TempDir()
	// Alpha is already on disk from an earlier run.
	if err := os.WriteFile(filepath.Join(dir, "Alpha.mp3"), []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}
	downloader := &fakeDownloader{entries: []TrackEntry{
		{ID: "t1", URL: "u1", Title: "Alpha"},
		{ID: "t2", URL: "", Title: "NoURL"},
		{ID: "t3", URL: "u3", Title: "Gamma"},
	}}
	prober := &fakeProber{durations: map[string]float64{
		"Alpha.mp3": 60, "Gamma.mp3": 60,
	}}
	provider := &fakeProvider{durations: map[string]int{"t1": 60, "t2": 60, "t3": 60}}
	s := newTestSelector(t, downloader, prober, provider)

	// Pool starts at 60, video needs 120: one round runs. Alpha counts
	// without a re-download and the URL-less entry never enters the pool.
	total, err := s.Build(context.Background(), "https://example.com/pl", dir, 120)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if total != 120 {
		t.Errorf("total = %g, want 120", total)
	}
	for _, url := range downloader.fetched {
		if url == "u1" {
			t.Error("re-downloaded a track that was already on disk")
		}
		if url == "" {
			t.Error("attempted download of entry without URL")
		}
	}
	if got := downloader.downloadCount(); got != 1 {
		t.Errorf("downloaded %d tracks, want only the missing one", got)
	}
}

func TestBuildInsufficientMaterial(t *testing.T) {
	dir := t.TempDir()
	downloader := &fakeDownloader{entries: []TrackEntry{
		{ID: "t1", URL: "u1", Title: "Alpha"},
	}}
	prober := &fakeProber{durations: map[string]float64{"Alpha.mp3": 30}}
	provider := &fakeProvider{durations: map[string]int{"t1": 30}}
	s := NewSelector(zerolog.Nop(), provider, newTestCache(t), downloader, prober, SelectorConfig{
		BufferSeconds: 30,
		MaxTopUps:     2,
		Seed:          1,
	})

	_, err := s.Build(context.Background(), "https://example.com/pl", dir, 600)
	if !errors.Is(err, ErrInsufficientMaterial) {
		t.Errorf("err = %v, want ErrInsufficientMaterial", err)
	}
	if downloader.flatCalls != 2 {
		t.Errorf("flat listings = %d, want one per allowed round", downloader.flatCalls)
	}
}

func TestShuffledPreservesMembers(t *testing.T) {
	s := NewSelector(zerolog.Nop(), &fakeProvider{}, newTestCache(t), &fakeDownloader{}, &fakeProber{}, SelectorConfig{Seed: 1})
	in := []string{"a", "b", "c", "d"}
	out := s.Shuffled(in)
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	seen := make(map[string]bool)
	for _, f := range out {
		seen[f] = true
	}
	for _, f := range in {
		if !seen[f] {
			t.Errorf("member %q missing after shuffle", f)
		}
	}
	if &out[0] == &in[0] {
		t.Error("Shuffled must copy, not reorder in place")
	}
}
