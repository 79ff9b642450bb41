package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/zhouzirui/adventure-chat/backend/internal/model/chat"
)

// ErrDocumentUnavailable wraps every failure to obtain the fallback document.
var ErrDocumentUnavailable = errors.New("fallback chat document unavailable")

// maxDocumentBytes bounds how much of a fallback document is read.
const maxDocumentBytes = 1 << 20

// DocumentSource fetches the bundled default chat document.
//
// Implementations return chat.ErrMissingHistory when the document is readable
// but carries no chat_history, and an ErrDocumentUnavailable-wrapped error for
// transport, status or decoding failures.
type DocumentSource interface {
	Fetch(ctx context.Context) (chat.Log, error)
}

// HTTPDocumentSource loads the document from a URL.
type HTTPDocumentSource struct {
	Client *http.Client
	URL    string
}

// Fetch implements DocumentSource.
func (s HTTPDocumentSource) Fetch(ctx context.Context) (chat.Log, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrDocumentUnavailable, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrDocumentUnavailable, s.URL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrDocumentUnavailable, err)
	}
	return decodeDocument(data)
}

// FSDocumentSource loads the document from a filesystem, typically the
// embedded web root or os.DirFS.
type FSDocumentSource struct {
	FS   fs.FS
	Name string
}

// Fetch implements DocumentSource.
func (s FSDocumentSource) Fetch(_ context.Context) (chat.Log, error) {
	data, err := fs.ReadFile(s.FS, s.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentUnavailable, err)
	}
	return decodeDocument(data)
}

func decodeDocument(data []byte) (chat.Log, error) {
	log, err := chat.DecodeDocument(data)
	if err != nil {
		if errors.Is(err, chat.ErrMissingHistory) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDocumentUnavailable, err)
	}
	return log, nil
}
