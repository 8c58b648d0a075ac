package storage

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/imagegen/internal/export"
	"github.com/lehigh-university-libraries/imagegen/internal/metrics"
	"github.com/lehigh-university-libraries/imagegen/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	maxParallelUploads = 4
	maxMetadataValue   = 1024
)

// SaveBatch encodes every image of result and uploads it. The returned
// locations are in batch order.
func SaveBatch(ctx context.Context, up Uploader, prefix string, result *models.GenerationResult, format export.Format) ([]string, error) {
	destination := destinationName(up)
	locations := make([]string, len(result.Images))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUploads)

	for i, img := range result.Images {
		g.Go(func() error {
			data, err := export.Encode(img.Pixels, format)
			if err != nil {
				return fmt.Errorf("image %d: %w", img.Index, err)
			}

			location, err := up.Upload(ctx, UploadParams{
				Name:        export.Filename(prefix, img.Index, format),
				Data:        data,
				ContentType: format.ContentType(),
				Metadata: map[string]string{
					"prompt":       metadataValue(result.UsedPrompt, maxMetadataValue),
					"style":        result.Style,
					"refined":      strconv.FormatBool(result.Refined),
					"source-index": strconv.Itoa(img.SourceIndex),
				},
			})
			metrics.UploadsTotal.WithLabelValues(destination, metrics.Status(err)).Inc()
			if err != nil {
				return err
			}
			locations[i] = location
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return locations, nil
}

func destinationName(up Uploader) string {
	switch up.(type) {
	case *FileUploader:
		return "file"
	case *S3Uploader:
		return "s3"
	default:
		return "other"
	}
}

// metadataValue query-escapes s so it is plain US-ASCII, as S3 user metadata
// requires. Runes that would not fit in n bytes are dropped whole.
func metadataValue(s string, n int) string {
	var b strings.Builder
	for _, r := range s {
		escaped := url.QueryEscape(string(r))
		if b.Len()+len(escaped) > n {
			break
		}
		b.WriteString(escaped)
	}
	return b.String()
}
