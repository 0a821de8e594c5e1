// Package storage reads PDF sources and writes text destinations on the
// local filesystem or in S3.
package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNotFound is returned when a source does not exist
var ErrNotFound = errors.New("object not found")

// Store reads and writes whole objects by location
type Store interface {
	Read(ctx context.Context, location string) ([]byte, error)
	Write(ctx context.Context, location string, data []byte) error
}

// compile-time checks
var (
	_ Store = (*Router)(nil)
	_ Store = (*Local)(nil)
	_ Store = (*S3)(nil)
)

// Router sends s3:// locations to S3 and everything else to the local
// filesystem. The S3 client is created on first use.
type Router struct {
	local *Local
	opts  S3Options

	once  sync.Once
	s3    *S3
	s3Err error
	newS3 func(ctx context.Context, opts S3Options) (*S3, error)
}

// NewRouter creates a Router; opts configure the S3 client
func NewRouter(opts S3Options) *Router {
	return &Router{local: NewLocal(), opts: opts, newS3: NewS3}
}

func (r *Router) store(ctx context.Context, location string) (Store, error) {
	if !IsS3(location) {
		return r.local, nil
	}
	r.once.Do(func() {
		r.s3, r.s3Err = r.newS3(ctx, r.opts)
	})
	if r.s3Err != nil {
		return nil, r.s3Err
	}
	return r.s3, nil
}

// Read returns the content at location
func (r *Router) Read(ctx context.Context, location string) ([]byte, error) {
	s, err := r.store(ctx, location)
	if err != nil {
		return nil, err
	}
	return s.Read(ctx, location)
}

// Write replaces the content at location
func (r *Router) Write(ctx context.Context, location string, data []byte) error {
	s, err := r.store(ctx, location)
	if err != nil {
		return err
	}
	return s.Write(ctx, location, data)
}

// IsS3 reports whether location is an s3:// URI
func IsS3(location string) bool {
	return strings.HasPrefix(location, s3Scheme)
}
