package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"livechat-app/internal/models"
)

var (
	ErrUploadsDisabled = fmt.Errorf("file uploads are disabled for this shop")
	ErrFileTooLarge    = fmt.Errorf("file exceeds the allowed size")
	ErrFileType        = fmt.Errorf("file type is not allowed")
)

type UploadService struct {
	minio     *minio.Client
	widgets   WidgetSettingsSource
	bucket    string
	publicURL string
}

func NewUploadService(m *minio.Client, widgets WidgetSettingsSource, bucket, publicURL string) *UploadService {
	return &UploadService{minio: m, widgets: widgets, bucket: bucket, publicURL: publicURL}
}

// ValidateFile checks size and MIME type against the shop's policy. It is
// called before any object is streamed so rejected files never leave the
// handler.
func (s *UploadService) ValidateFile(policy models.FileUploadPolicy, size int64, contentType string) error {
	if !policy.Enabled {
		return ErrUploadsDisabled
	}
	if policy.MaxSizeMB > 0 && size > policy.MaxSizeMB*1024*1024 {
		return fmt.Errorf("%w: limit is %d MB", ErrFileTooLarge, policy.MaxSizeMB)
	}
	if !policy.AllowsType(contentType) {
		return fmt.Errorf("%w: %s", ErrFileType, contentType)
	}
	return nil
}

func (s *UploadService) Upload(ctx context.Context, reader io.Reader, size int64, contentType, filename, shop, customerID string) (string, error) {
	settings, err := s.widgets.GetByShop(ctx, shop)
	if err != nil {
		return "", fmt.Errorf("load widget settings: %w", err)
	}
	if err := s.ValidateFile(settings.FileUpload, size, contentType); err != nil {
		return "", err
	}

	objectKey := fmt.Sprintf("%s/%s/%d_%s", shop, customerID, time.Now().UnixNano(), filename)
	_, err = s.minio.PutObject(ctx, s.bucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("store object: %w", err)
	}

	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.publicURL, "/"), s.bucket, objectKey), nil
}
