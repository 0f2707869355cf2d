package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver copies pass outputs to cold storage.
type Archiver interface {
	ArchiveSpreads(ctx context.Context, report RunReport, spreads []Spread) (string, error)
	ArchiveMappings(ctx context.Context, report RunReport, mappings []Mapping) (string, error)
}
