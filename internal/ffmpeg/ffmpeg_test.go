package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// skipIfNoFFmpeg skips the test if ffmpeg/ffprobe are not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

// makeTestClip generates a short silent test video
func makeTestClip(t *testing.T, path string, seconds int) {
	t.Helper()
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "color=c=gray:size=320x240:rate=30",
		"-t", strconv.Itoa(seconds),
		"-pix_fmt", "yuv420p",
		path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("could not generate test clip: %v: %s", err, out)
	}
}

func TestExecutorCreation(t *testing.T) {
	skipIfNoFFmpeg(t)

	logger := zerolog.New(os.Stderr)
	e, err := New(logger, "", "", 2)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}
	if e.ffmpegPath == "" || e.ffprobePath == "" {
		t.Error("resolved binary paths are empty")
	}
}

func TestExecutorCreationMissingBinary(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	if _, err := New(logger, "no-such-ffmpeg-binary", "", 0); err == nil {
		t.Error("expected error for missing ffmpeg binary")
	}
}

func TestWriteManifestOrderAndEscaping(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		filepath.Join(dir, "b.mp4"),
		filepath.Join(dir, "a's clip.mp4"),
		filepath.Join(dir, "c.mp4"),
	}

	manifest, err := writeManifest(dir, inputs)
	if err != nil {
		t.Fatalf("writeManifest failed: %v", err)
	}
	defer os.Remove(manifest)

	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 manifest lines, got %d", len(lines))
	}

	// Manifest order must match input order exactly.
	if !strings.Contains(lines[0], "b.mp4") || !strings.Contains(lines[2], "c.mp4") {
		t.Errorf("manifest order does not match input order: %v", lines)
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "file '") || !strings.HasSuffix(line, "'") {
			t.Errorf("manifest line not in file '<path>' syntax: %q", line)
		}
	}
	if !strings.Contains(lines[1], `'\''`) {
		t.Errorf("single quote not escaped: %q", lines[1])
	}
}

func TestBuildMixFilter(t *testing.T) {
	withAudio := BuildMixFilter(120, true)
	if !strings.Contains(withAudio, "[0:a]atrim=duration=120[a0]") {
		t.Errorf("existing audio should be trimmed: %q", withAudio)
	}
	if !strings.Contains(withAudio, "amix=inputs=2:duration=shortest") {
		t.Errorf("shortest-wins mix missing: %q", withAudio)
	}

	noAudio := BuildMixFilter(90.5, false)
	if !strings.Contains(noAudio, "anullsrc=channel_layout=stereo") {
		t.Errorf("silence synthesis missing for audio-less video: %q", noAudio)
	}
	if strings.Contains(noAudio, "[0:a]") {
		t.Errorf("audio-less video must not reference stream 0:a: %q", noAudio)
	}
	if !strings.Contains(noAudio, "atrim=duration=90.5") {
		t.Errorf("soundtrack trim missing: %q", noAudio)
	}
}

func TestConcatAndProbe(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	clipA := filepath.Join(dir, "a.mp4")
	clipB := filepath.Join(dir, "b.mp4")
	makeTestClip(t, clipA, 2)
	makeTestClip(t, clipB, 2)

	logger := zerolog.New(os.Stderr)
	e, err := New(logger, "", "", 2)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	ctx := context.Background()
	output := filepath.Join(dir, "combined.mp4")
	err = e.Concat(ctx, ConcatOptions{Inputs: []string{clipA, clipB}, Output: output})
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}

	info, err := e.ProbeVideo(ctx, output)
	if err != nil {
		t.Fatalf("ProbeVideo failed: %v", err)
	}
	if info.Duration.Seconds() < 3.5 {
		t.Errorf("concat output too short: %v", info.Duration)
	}
	if info.HasAudio {
		t.Error("silent test clips should have no audio stream")
	}

	dur, err := e.Duration(ctx, output)
	if err != nil {
		t.Fatalf("Duration failed: %v", err)
	}
	if dur < 3.5 {
		t.Errorf("measured duration too short: %v", dur)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus.mp4")
	if err := os.WriteFile(bogus, []byte("not a video"), 0644); err != nil {
		t.Fatal(err)
	}

	logger := zerolog.New(os.Stderr)
	e, err := New(logger, "", "", 0)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	if err := e.Validate(context.Background(), bogus); err == nil {
		t.Error("Validate should reject a non-media file")
	}
}
