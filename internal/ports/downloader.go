package ports

import (
	"context"
	"io"
)

// Downloader fetches remote content.
type Downloader interface {
	// Fetch streams the body at url into w.
	Fetch(ctx context.Context, url string, w io.Writer) error
}
