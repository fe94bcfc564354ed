package storage

import "io"

// MediaStore holds item audio and thumbnail blobs. URL maps a stored key
// to the path the assets mount serves it under; items with an external
// audio_url never touch the store.
type MediaStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	URL(key string) string
}
