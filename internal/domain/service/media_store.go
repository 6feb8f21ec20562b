package service

import (
	"context"
	"io"
)

// MediaStore keeps voice and image message payloads and returns a URL to them.
type MediaStore interface {
	Upload(ctx context.Context, data io.Reader, contentType, folder string) (string, error)
	Delete(ctx context.Context, url string) error
}
