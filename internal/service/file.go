package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/storage"
	"github.com/templui/thrive/internal/validation"
)

type FileService struct {
	fileRepo repository.FileRepository
	storage  storage.Storage
}

// NewFileService accepts a nil storage; uploads then fail with storage.ErrDisabled.
func NewFileService(fileRepo repository.FileRepository, store storage.Storage) *FileService {
	return &FileService{
		fileRepo: fileRepo,
		storage:  store,
	}
}

func (s *FileService) Enabled() bool {
	return s.storage != nil
}

// upload stores body and creates the database record. The object is removed
// again when the record cannot be written.
func (s *FileService) upload(ctx context.Context, userID, fileType, originalName, mimeType string, size int64, body io.Reader, public bool) (*model.File, error) {
	if s.storage == nil {
		return nil, storage.ErrDisabled
	}

	filename := uuid.New().String() + filepath.Ext(originalName)
	prefix := "private"
	if public {
		prefix = "public"
	}
	storagePath := path.Join(prefix, fileType+"s", filename) // avatar -> avatars

	err := s.storage.Save(ctx, storagePath, mimeType, body)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	file := &model.File{
		ID:           uuid.New().String(),
		UserID:       userID,
		OwnerType:    model.FileOwnerUser,
		OwnerID:      userID,
		Type:         fileType,
		Filename:     filename,
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         size,
		StoragePath:  storagePath,
		Public:       public,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.fileRepo.Create(ctx, file)
	if err != nil {
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			slog.Error("failed to delete file from storage during cleanup", "error", delErr, "path", storagePath)
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	return file, nil
}

// UploadAvatar validates the image and replaces any previous avatar.
func (s *FileService) UploadAvatar(ctx context.Context, userID string, header *multipart.FileHeader) (*model.File, error) {
	if s.storage == nil {
		return nil, storage.ErrDisabled
	}
	if err := validation.ValidateFile(header, validation.ImageConstraints); err != nil {
		return nil, err
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	previous, prevErr := s.Avatar(ctx, userID)

	file, err := s.upload(ctx, userID, model.FileTypeAvatar, header.Filename, header.Header.Get("Content-Type"), header.Size, f, true)
	if err != nil {
		return nil, err
	}

	if prevErr == nil {
		if err := s.Delete(ctx, previous); err != nil {
			slog.Warn("failed to delete previous avatar", "error", err, "user_id", userID)
		}
	}
	return file, nil
}

// StoreExport uploads a data export and returns a presigned download URL.
func (s *FileService) StoreExport(ctx context.Context, userID string, data []byte) (string, error) {
	name := fmt.Sprintf("thrive-export-%s.json", time.Now().UTC().Format("20060102-150405"))
	file, err := s.upload(ctx, userID, model.FileTypeExport, name, "application/json", int64(len(data)), bytes.NewReader(data), false)
	if err != nil {
		return "", err
	}
	return s.storage.URL(ctx, file.StoragePath, false)
}

func (s *FileService) Avatar(ctx context.Context, userID string) (*model.File, error) {
	return s.fileRepo.FileByType(ctx, model.FileOwnerUser, userID, model.FileTypeAvatar)
}

// AvatarURL returns "" when the user has no avatar or storage is disabled.
func (s *FileService) AvatarURL(ctx context.Context, userID string) string {
	if s.storage == nil {
		return ""
	}
	avatar, err := s.Avatar(ctx, userID)
	if err != nil {
		return ""
	}
	url, err := s.storage.URL(ctx, avatar.StoragePath, avatar.Public)
	if err != nil {
		slog.Warn("failed to sign avatar url", "error", err, "user_id", userID)
		return ""
	}
	return url
}

// Delete removes a file from storage and database
func (s *FileService) Delete(ctx context.Context, file *model.File) error {
	if s.storage != nil {
		if err := s.storage.Delete(ctx, file.StoragePath); err != nil {
			slog.Error("failed to delete file from storage", "error", err, "path", file.StoragePath)
		}
	}

	err := s.fileRepo.Delete(ctx, file.ID)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	return nil
}

func (s *FileService) DeleteAvatar(ctx context.Context, userID string) error {
	file, err := s.Avatar(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrFileNotFound) {
			return nil
		}
		return err
	}
	return s.Delete(ctx, file)
}

// DeleteAllUserFilesFromStorage removes the stored objects only; rows go with the user.
func (s *FileService) DeleteAllUserFilesFromStorage(ctx context.Context, userID string) error {
	if s.storage == nil {
		return nil
	}
	files, err := s.fileRepo.AllUserFiles(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user files: %w", err)
	}

	for _, file := range files {
		if err := s.storage.Delete(ctx, file.StoragePath); err != nil {
			slog.Warn("failed to delete file from storage", "storage_path", file.StoragePath, "error", err)
		}
	}
	return nil
}
