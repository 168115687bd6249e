package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dylix/gopromix/internal/clips"
	"github.com/dylix/gopromix/internal/config"
	"github.com/dylix/gopromix/internal/playlist"
	"github.com/dylix/gopromix/internal/upload"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("video"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestPipeline(t *testing.T, dir string, deps Deps) *Pipeline {
	t.Helper()
	cfg := &config.Config{VideoDir: dir}
	return New(zerolog.Nop(), cfg, deps)
}

func TestMusicTargets(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"combined-2025-08-18-05-55.mp4",       // needs music
		"combined-2025-08-17-06-10.mp4",       // has a sibling below, skipped
		"combined-2025-08-17-06-10-music.mp4", // product, never a target
		"surf-session-GX010001.mp4",           // raw clip, not merged
	)
	p := newTestPipeline(t, dir, Deps{})

	targets, err := p.musicTargets()
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 {
		t.Fatalf("got %d targets %v, want 1", len(targets), targets)
	}
	if filepath.Base(targets[0]) != "combined-2025-08-18-05-55.mp4" {
		t.Errorf("target = %s", targets[0])
	}
}

type fixedChooser struct{ idx int }

func (f fixedChooser) Choose(ctx context.Context, heading string, options []string) (int, error) {
	return f.idx, nil
}

func TestChoosePlaylist(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), Deps{Chooser: fixedChooser{idx: 1}})
	candidates := []playlist.Candidate{
		{ID: "a", Title: "First", Duration: 620, Diff: 20},
		{ID: "b", Title: "Second", Duration: 700, Diff: 100},
	}

	chosen, err := p.choosePlaylist(context.Background(), candidates)
	if err != nil {
		t.Fatal(err)
	}
	if chosen.ID != "b" {
		t.Errorf("chosen = %s, want b", chosen.ID)
	}
}

type recordingPublisher struct {
	uploads      []string
	descriptions map[string]string
}

func (r *recordingPublisher) Upload(ctx context.Context, path, title, description string) (string, error) {
	r.uploads = append(r.uploads, filepath.Base(path))
	if r.descriptions == nil {
		r.descriptions = make(map[string]string)
	}
	r.descriptions[filepath.Base(path)] = description
	return "vid-" + title, nil
}

func TestPublishOnlyMusicVersions(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"combined-2025-08-18-05-55.mp4",
		"combined-2025-08-18-05-55-music.mp4",
		"surf-session-GX010001.mp4",
	)
	pub := &recordingPublisher{}
	p := newTestPipeline(t, dir, Deps{Publisher: pub})

	if err := p.Publish(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.uploads) != 1 || pub.uploads[0] != "combined-2025-08-18-05-55-music.mp4" {
		t.Errorf("uploads = %v", pub.uploads)
	}
}

func TestPublishWithoutPublisher(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), Deps{})
	if err := p.Publish(context.Background()); err == nil {
		t.Error("expected error when publisher is missing")
	}
	if err := p.PublishFile(context.Background(), "x.mp4"); err == nil {
		t.Error("expected error when publisher is missing")
	}
}

func TestPublishCreditsChosenPlaylist(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"combined-2025-08-18-05-55-music.mp4",
		"combined-2025-08-17-06-10-music.mp4",
	)
	pub := &recordingPublisher{}
	p := newTestPipeline(t, dir, Deps{Publisher: pub})

	scored := filepath.Join(dir, "combined-2025-08-18-05-55-music.mp4")
	p.soundtracks[scored] = playlist.Candidate{
		Title: "Chill Mix",
		URL:   "https://www.youtube.com/playlist?list=PL123",
	}

	if err := p.Publish(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := pub.descriptions["combined-2025-08-18-05-55-music.mp4"]
	if !strings.Contains(got, "Chill Mix") || !strings.Contains(got, "list=PL123") {
		t.Errorf("description %q does not credit the playlist", got)
	}
	other := pub.descriptions["combined-2025-08-17-06-10-music.mp4"]
	if other != upload.DefaultDescription {
		t.Errorf("video without a recorded playlist got %q, want the default description", other)
	}
}

func TestPublishFileUploadsSingleVideo(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"combined-2025-08-18-05-55-music.mp4",
		"combined-2025-08-17-06-10-music.mp4",
	)
	pub := &recordingPublisher{}
	p := newTestPipeline(t, dir, Deps{Publisher: pub})

	target := filepath.Join(dir, "combined-2025-08-18-05-55-music.mp4")
	if err := p.PublishFile(context.Background(), target); err != nil {
		t.Fatal(err)
	}
	if len(pub.uploads) != 1 || pub.uploads[0] != "combined-2025-08-18-05-55-music.mp4" {
		t.Errorf("uploads = %v, want only the given file", pub.uploads)
	}
}

func TestAddMusicFileSkipsFinishedWork(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"combined-2025-08-18-05-55.mp4",
		"combined-2025-08-18-05-55-music.mp4",
	)
	// Deps are empty: any attempt to probe or match would panic, so a
	// clean return proves both paths short-circuit.
	p := newTestPipeline(t, dir, Deps{})

	if err := p.AddMusicFile(context.Background(), filepath.Join(dir, "combined-2025-08-18-05-55.mp4")); err != nil {
		t.Errorf("video with existing music version: %v", err)
	}
	if err := p.AddMusicFile(context.Background(), filepath.Join(dir, "combined-2025-08-18-05-55-music.mp4")); err != nil {
		t.Errorf("music version itself: %v", err)
	}
}

func TestRunTagsEveryStageWithRunID(t *testing.T) {
	dir := t.TempDir()
	cache, err := playlist.LoadCache(filepath.Join(t.TempDir(), "cache.json"))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	cfg := &config.Config{VideoDir: dir}
	p := New(zerolog.New(&buf), cfg, Deps{
		Grouper: clips.NewGrouper(zerolog.Nop()),
		Cache:   cache,
	})

	// An empty directory exercises every stage's logging without touching
	// external tools.
	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) < 4 {
		t.Fatalf("expected one log line per stage, got %d: %s", len(lines), buf.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, `"run":`) {
			t.Errorf("log line missing run id: %s", line)
		}
	}
}
