package background

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
)

// ErrAssetUnavailable wraps every probe failure.
var ErrAssetUnavailable = errors.New("background asset unavailable")

// Prober checks that an image asset exists and decodes.
type Prober interface {
	Probe(ctx context.Context, path string) error
	// URL returns the address a client should load path from.
	URL(path string) string
}

// HTTPProber fetches assets from BaseURL and decodes the image header.
type HTTPProber struct {
	Client  *http.Client
	BaseURL string
}

// Probe implements Prober.
func (p HTTPProber) Probe(ctx context.Context, path string) error {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	target := p.URL(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrAssetUnavailable, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAssetUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %s", ErrAssetUnavailable, target, resp.Status)
	}
	return decodeHeader(resp.Body)
}

// URL implements Prober.
func (p HTTPProber) URL(path string) string {
	joined, err := url.JoinPath(p.BaseURL, path)
	if err != nil {
		return strings.TrimRight(p.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}
	return joined
}

// FSProber checks assets inside a filesystem and reports them under Prefix.
type FSProber struct {
	FS     fs.FS
	Prefix string
}

// Probe implements Prober.
func (p FSProber) Probe(_ context.Context, path string) error {
	f, err := p.FS.Open(strings.TrimLeft(path, "/"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAssetUnavailable, err)
	}
	defer f.Close()
	return decodeHeader(f)
}

// URL implements Prober.
func (p FSProber) URL(path string) string {
	return p.Prefix + path
}

func decodeHeader(r io.Reader) error {
	if _, _, err := image.DecodeConfig(r); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrAssetUnavailable, err)
	}
	return nil
}
