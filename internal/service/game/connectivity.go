package game

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Checker is a best-effort probe for a running game backend. It only feeds
// the presentational "game connected" flag; there is no protocol behind it.
type Checker struct {
	Client *http.Client
	URL    string
}

// Enabled reports whether a probe URL is configured.
func (c Checker) Enabled() bool {
	return c.URL != ""
}

// Check issues a single GET and reports whether it answered 2xx. No retries.
func (c Checker) Check(ctx context.Context) bool {
	if !c.Enabled() {
		return false
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", c.URL).Msg("[game] invalid connectivity probe url")
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Info().Msg("[game] game backend not connected, using static mode")
		return false
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Info().Int("status", resp.StatusCode).Msg("[game] game backend not connected, using static mode")
		return false
	}

	log.Info().Msg("[game] game backend connected")
	return true
}

// FileChecker reports connected when a bundled status document is present and
// parses as JSON. It stands in for the game backend when no URL is configured.
type FileChecker struct {
	FS   fs.FS
	Name string
}

// Check reads the document once. No retries.
func (c FileChecker) Check(ctx context.Context) bool {
	if c.FS == nil || ctx.Err() != nil {
		return false
	}

	data, err := fs.ReadFile(c.FS, c.Name)
	if err != nil {
		log.Info().Str("name", c.Name).Msg("[game] game backend not connected, using static mode")
		return false
	}
	if !json.Valid(data) {
		log.Warn().Str("name", c.Name).Msg("[game] status document is not valid JSON")
		return false
	}

	log.Info().Str("name", c.Name).Msg("[game] game backend connected")
	return true
}
