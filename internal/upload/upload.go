package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"
)

const maxUploadAttempts = 10

// DefaultDescription is used when the soundtrack's playlist is unknown
const DefaultDescription = "Merged GoPro footage with an auto-matched soundtrack."

// Description composes the video description crediting the playlist the
// soundtrack came from.
func Description(playlistTitle, playlistURL string) string {
	if playlistTitle == "" && playlistURL == "" {
		return DefaultDescription
	}
	return fmt.Sprintf("Merged GoPro footage with music automatically added from '%s'.\n\nListen to the full playlist here: %s",
		playlistTitle, playlistURL)
}

// Config holds publishing credentials and video defaults
type Config struct {
	ClientSecrets string
	TokenFile     string
	Category      string
	Privacy       string
}

// Publisher uploads finished videos to YouTube over an OAuth-authenticated
// service.
type Publisher struct {
	logger zerolog.Logger
	svc    *youtube.Service
	cfg    Config
}

// NewPublisher builds a publisher from a client-secrets file and a stored
// token. A missing token means the one-time Authorize flow has not been
// run yet.
func NewPublisher(ctx context.Context, logger zerolog.Logger, cfg Config) (*Publisher, error) {
	if cfg.Category == "" {
		cfg.Category = "22"
	}
	if cfg.Privacy == "" {
		cfg.Privacy = "unlisted"
	}

	conf, err := oauthConfig(cfg.ClientSecrets)
	if err != nil {
		return nil, err
	}
	token, err := loadToken(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("no stored token (run the authorize command first): %w", err)
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Publisher{
		logger: logger.With().Str("component", "uploader").Logger(),
		svc:    svc,
		cfg:    cfg,
	}, nil
}

// Authorize runs the one-time OAuth exchange: the caller opens authURL in a
// browser and feeds the resulting code back in. The token is persisted to
// the configured token file.
func Authorize(ctx context.Context, cfg Config, readCode func(authURL string) (string, error)) error {
	conf, err := oauthConfig(cfg.ClientSecrets)
	if err != nil {
		return err
	}
	authURL := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	code, err := readCode(authURL)
	if err != nil {
		return err
	}
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return saveToken(cfg.TokenFile, token)
}

// Upload sends one video file with a resumable upload, retrying transient
// server errors, and returns the new video ID.
func (p *Publisher) Upload(ctx context.Context, path, title, description string) (string, error) {
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: description,
			CategoryId:  p.cfg.Category,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: p.cfg.Privacy},
	}

	backoff := 2 * time.Second
	var lastErr error
	for attempt := 1; attempt <= maxUploadAttempts; attempt++ {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open video %s: %w", path, err)
		}

		p.logger.Info().Str("file", path).Str("title", title).Int("attempt", attempt).Msg("uploading")
		resp, err := p.svc.Videos.Insert([]string{"snippet", "status"}, video).
			Media(f).
			Context(ctx).
			Do()
		f.Close()

		if err == nil {
			p.logger.Info().Str("video_id", resp.Id).Msg("upload complete")
			return resp.Id, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("upload %s: %w", path, err)
		}

		lastErr = err
		p.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying upload")
		select {
		case <-time.After(backoff + time.Duration(rand.Int63n(int64(time.Second)))):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		if backoff < time.Minute {
			backoff *= 2
		}
	}
	return "", fmt.Errorf("upload %s: gave up after %d attempts: %w", path, maxUploadAttempts, lastErr)
}

// isRetryable reports whether an upload error is worth another attempt.
// Server-side 5xx failures are; quota and auth failures are not.
func isRetryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code >= 500
	}
	return false
}

func oauthConfig(secretsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(secretsPath)
	if err != nil {
		return nil, fmt.Errorf("read client secrets %s: %w", secretsPath, err)
	}
	conf, err := google.ConfigFromJSON(data, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	return conf, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse token %s: %w", path, err)
	}
	return &token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
