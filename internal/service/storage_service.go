package service

import (
	"cbseprep_backend/internal/config"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StorageService hands out presigned PUT slots for answer-sheet pages.
// The workflow only ever stores the resulting object keys; image content
// never passes through this process.
type StorageService struct {
	Client *minio.Client
	Bucket string
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	client, err := minio.New(cfg.Storage.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.MinioAccessID, cfg.Storage.MinioSecret, ""),
		Secure: cfg.Storage.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &StorageService{Client: client, Bucket: cfg.Storage.MinioBucket}, nil
}

// UploadSlot is one presigned page upload.
type UploadSlot struct {
	ObjectKey string `json:"objectKey"`
	UploadURL string `json:"uploadUrl"`
}

// PresignAnswerSheetPages allocates object keys and presigned URLs for the
// requested number of pages.
func (s *StorageService) PresignAnswerSheetPages(ctx context.Context, sessionID uint, pages int) ([]UploadSlot, error) {
	slots := make([]UploadSlot, 0, pages)
	for page := 1; page <= pages; page++ {
		key := fmt.Sprintf("answer-sheets/%d/page-%d-%s.jpg", sessionID, page, uuid.New().String())
		u, err := s.Client.PresignedPutObject(ctx, s.Bucket, key, 15*time.Minute)
		if err != nil {
			return nil, err
		}
		slots = append(slots, UploadSlot{ObjectKey: key, UploadURL: u.String()})
	}
	return slots, nil
}

// PresignView returns a short-lived read URL for a stored page, used by
// the teacher's marking view.
func (s *StorageService) PresignView(ctx context.Context, objectKey string) (string, error) {
	u, err := s.Client.PresignedGetObject(ctx, s.Bucket, objectKey, time.Hour, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
