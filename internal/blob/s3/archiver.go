package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// SnapshotArchiver implements domain.Archiver. Every pass that writes rows
// leaves one JSONL object behind, partitioned by day:
//
//	{prefix}/spreads/2025/06/01/{run_id}.jsonl
//	{prefix}/mappings/2025/06/01/{run_id}.jsonl
//
// Payloads at or above the multipart threshold go through the upload
// manager.
type SnapshotArchiver struct {
	writer    domain.BlobWriter
	prefix    string
	threshold int64
}

// NewSnapshotArchiver creates a SnapshotArchiver. A non-positive threshold
// selects MinPartSize.
func NewSnapshotArchiver(writer domain.BlobWriter, prefix string, multipartThreshold int64) *SnapshotArchiver {
	if multipartThreshold <= 0 {
		multipartThreshold = MinPartSize
	}
	return &SnapshotArchiver{writer: writer, prefix: prefix, threshold: multipartThreshold}
}

// archiveLine wraps each record with the pass it came from.
type archiveLine[T any] struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	ArchivedAt time.Time `json:"archived_at"`
	Record     T         `json:"record"`
}

// ArchiveSpreads uploads the spreads a calculator pass inserted and returns
// the object key.
func (a *SnapshotArchiver) ArchiveSpreads(ctx context.Context, report domain.RunReport, spreads []domain.Spread) (string, error) {
	return archive(ctx, a, "spreads", report, spreads)
}

// ArchiveMappings uploads the mappings a matcher pass wrote and returns the
// object key.
func (a *SnapshotArchiver) ArchiveMappings(ctx context.Context, report domain.RunReport, mappings []domain.Mapping) (string, error) {
	return archive(ctx, a, "mappings", report, mappings)
}

func archive[T any](ctx context.Context, a *SnapshotArchiver, kind string, report domain.RunReport, records []T) (string, error) {
	now := time.Now().UTC()
	lines := make([]archiveLine[T], len(records))
	for i, r := range records {
		lines[i] = archiveLine[T]{RunID: report.RunID, Kind: kind, ArchivedAt: now, Record: r}
	}
	buf, err := marshalJSONL(lines)
	if err != nil {
		return "", fmt.Errorf("s3blob: encode %s snapshot %s: %w", kind, report.RunID, err)
	}

	key := snapshotKey(a.prefix, kind, report.StartedAt, report.RunID)
	if int64(len(buf)) >= a.threshold {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(buf), a.threshold)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: upload %s snapshot: %w", kind, err)
	}
	return key, nil
}

// snapshotKey partitions snapshots by the UTC day the pass started.
func snapshotKey(prefix, kind string, startedAt time.Time, runID string) string {
	return path.Join(prefix, kind, startedAt.UTC().Format("2006/01/02"), runID+".jsonl")
}

// marshalJSONL encodes each record as one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*SnapshotArchiver)(nil)
