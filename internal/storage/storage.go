// Package storage abstracts the byte-addressable blob store holding uploaded
// statement files.
package storage

import "context"

// SignedUpload is the result of issuing a pre-authorized upload URL.
type SignedUpload struct {
	SignedURL string `json:"signed_url"`
	Path      string `json:"path"`
}

// BlobStore is the minimal surface the pipeline needs from object storage.
type BlobStore interface {
	// Download fetches the whole object. An empty object is an error.
	Download(ctx context.Context, path string) ([]byte, error)

	// CreateSignedUploadURL issues a time-limited PUT URL for path. The
	// metadata (notably the caller-supplied file_id) is attached to the
	// object for later correlation by the upload trigger.
	CreateSignedUploadURL(ctx context.Context, path string, metadata map[string]string) (SignedUpload, error)
}
