package validation

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// FileConstraints defines validation rules for uploads.
type FileConstraints struct {
	AllowedMimeTypes  map[string]bool
	AllowedExtensions map[string]bool
	MaxSize           int64
}

// ImageConstraints applies to avatar uploads.
var ImageConstraints = FileConstraints{
	AllowedMimeTypes: map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
	},
	AllowedExtensions: map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".webp": true,
	},
	MaxSize: 5 << 20,
}

// ValidateFile sniffs the upload's content type from its first bytes
// and checks it together with size and extension.
func ValidateFile(header *multipart.FileHeader, c FileConstraints) error {
	if header.Size > c.MaxSize {
		return New("file", "file too large: maximum size is %d MB", c.MaxSize/(1<<20))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !c.AllowedExtensions[ext] {
		return New("file", "invalid file extension: %s", ext)
	}

	f, err := header.Open()
	if err != nil {
		return New("file", "failed to open file")
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return New("file", "failed to read file")
	}

	detected := http.DetectContentType(buf[:n])
	if !c.AllowedMimeTypes[detected] {
		return New("file", "invalid file type (detected: %s)", detected)
	}

	return nil
}
