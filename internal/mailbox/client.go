package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/nulzo/model-bridge/pkg/api"
)

// Client is the producer side of the mailbox.
type Client struct {
	dir  string
	poll time.Duration
}

func NewClient(dir string, poll time.Duration) *Client {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &Client{dir: dir, poll: poll}
}

// Submit clears any stale response and drops req into the slot.
// A request already pending is overwritten (last writer wins).
func (c *Client) Submit(req *api.GenerationRequest) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: c.dir, Err: err}
	}
	if err := os.Remove(filepath.Join(c.dir, ResponseFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &IOError{Op: "remove", Path: filepath.Join(c.dir, ResponseFile), Err: err}
	}

	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	path := filepath.Join(c.dir, RequestFile)
	if err := writeFileAtomic(path, data); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// AwaitResponse polls until a response appears, consumes it and returns it.
func (c *Client) AwaitResponse(ctx context.Context) (*api.ResponseDescriptor, error) {
	path := filepath.Join(c.dir, ResponseFile)
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			var desc api.ResponseDescriptor
			if err := json.Unmarshal(data, &desc); err != nil {
				return nil, fmt.Errorf("decode response: %w", err)
			}
			_ = os.Remove(path)
			return &desc, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, &IOError{Op: "read", Path: path, Err: err}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
