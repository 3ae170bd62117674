package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileStorage stores generated artefacts (validation reports, receipt PDFs).
type FileStorage interface {
	UploadFileFromReader(ctx context.Context, src io.Reader, fileName string) (string, error)
	DownloadFile(ctx context.Context, filePath string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, filePath string) error
	FileExists(ctx context.Context, filePath string) (bool, error)
}

type LocalFileStorage struct {
	uploadPath string
}

func NewLocalFileStorage(uploadPath string) *LocalFileStorage {
	return &LocalFileStorage{uploadPath: uploadPath}
}

// UploadFileFromReader writes src under the storage root and returns the relative name
func (s *LocalFileStorage) UploadFileFromReader(ctx context.Context, src io.Reader, fileName string) (string, error) {
	filePath := filepath.Join(s.uploadPath, fileName)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to copy file content: %w", err)
	}

	return fileName, nil
}

func (s *LocalFileStorage) DownloadFile(ctx context.Context, filePath string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(s.uploadPath, filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (s *LocalFileStorage) DeleteFile(ctx context.Context, filePath string) error {
	fullPath := filepath.Join(s.uploadPath, filePath)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil
	}
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *LocalFileStorage) FileExists(ctx context.Context, filePath string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.uploadPath, filePath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return true, nil
}

// LocalPath resolves a stored name to its path on disk
func (s *LocalFileStorage) LocalPath(filePath string) string {
	return filepath.Join(s.uploadPath, filePath)
}

var _ FileStorage = (*LocalFileStorage)(nil)
