package upload

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

func TestDescription(t *testing.T) {
	got := Description("Chill Mix", "https://www.youtube.com/playlist?list=PL123")
	if !strings.Contains(got, "'Chill Mix'") {
		t.Errorf("description %q missing playlist title", got)
	}
	if !strings.Contains(got, "https://www.youtube.com/playlist?list=PL123") {
		t.Errorf("description %q missing playlist URL", got)
	}

	if got := Description("", ""); got != DefaultDescription {
		t.Errorf("empty playlist info should fall back to the default, got %q", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &googleapi.Error{Code: 503}, true},
		{"internal error", &googleapi.Error{Code: 500}, true},
		{"quota exceeded", &googleapi.Error{Code: 403}, false},
		{"bad request", &googleapi.Error{Code: 400}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := isRetryable(tt.err); got != tt.want {
			t.Errorf("%s: isRetryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := &oauth2.Token{AccessToken: "abc", RefreshToken: "def", TokenType: "Bearer"}

	if err := saveToken(path, tok); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("token file mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := loadToken(path)
	if err != nil {
		t.Fatalf("loadToken: %v", err)
	}
	if got.AccessToken != "abc" || got.RefreshToken != "def" {
		t.Errorf("token = %+v", got)
	}
}

func TestLoadTokenMissing(t *testing.T) {
	if _, err := loadToken(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing token file")
	}
}

func TestOauthConfigBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := oauthConfig(path); err == nil {
		t.Error("expected error for unparseable client secrets")
	}
}
