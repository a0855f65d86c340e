package port

import (
	"context"
	"time"

	"github.com/garyjia/ethics-review/internal/domain/entity"
)

// ReportStorage keeps exported report files under a base directory
type ReportStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	List(ctx context.Context) ([]string, error)
	GetFullPath(relativePath string) string
}

// ReportRenderer renders reports to a downloadable file format
type ReportRenderer interface {
	RenderStallReport(items []*entity.StalledItem, generatedAt time.Time) ([]byte, error)
}
