package figures

import "context"

// CropFetcher fetches rendered figure crops from the layout analyzer.
type CropFetcher interface {
	FigureCrop(ctx context.Context, resultID, figureID string) ([]byte, error)
}

// Uploader persists figure crops to blob storage.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}
