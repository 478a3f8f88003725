package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/moments/models"
	"github.com/cppla/moments/store"
)

var (
	allowedMimePrefixes = []string{"image/", "video/"}
	safeExt             = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
)

// UploadInput describes one incoming file.
type UploadInput struct {
	OriginalName string
	MimeType     string
	// Size is the size declared by the client; the copy is limited independently.
	Size int64
	Body io.Reader
}

// UploadService stores media files on disk and records their metadata.
type UploadService struct {
	files     store.FileStore
	dir       string
	urlPrefix string
	maxBytes  int64
	now       func() time.Time
}

// NewUploadService stores files under dir and builds URLs under urlPrefix.
func NewUploadService(files store.FileStore, dir, urlPrefix string, maxBytes int64) *UploadService {
	return &UploadService{
		files:     files,
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

// MaxBytes returns the size ceiling per file.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Save validates and writes the file, returning its metadata.
func (s *UploadService) Save(ctx context.Context, identity models.Identity, in UploadInput) (models.UploadedFile, error) {
	mimeType, ok := allowedMime(in.MimeType)
	if !ok {
		return models.UploadedFile{}, ErrUnsupportedMediaType
	}
	if in.Size > s.maxBytes {
		return models.UploadedFile{}, ErrPayloadTooLarge
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return models.UploadedFile{}, fmt.Errorf("create upload directory: %w", err)
	}

	now := s.now()
	name := generateFilename(now, in.OriginalName)
	dstPath := filepath.Join(s.dir, name)

	written, err := s.write(dstPath, in.Body)
	if err != nil {
		return models.UploadedFile{}, err
	}

	file := models.UploadedFile{
		URL:          path.Join(s.urlPrefix, name),
		Filename:     name,
		OriginalName: filepath.Base(in.OriginalName),
		Size:         written,
		MimeType:     mimeType,
		OwnerID:      identity.UserID,
		FilePath:     dstPath,
		CreateTime:   now,
	}
	if err := s.files.Insert(ctx, &file); err != nil {
		_ = os.Remove(dstPath)
		return models.UploadedFile{}, fmt.Errorf("record upload: %w", err)
	}
	return file, nil
}

// ListByOwner returns the uploads of ownerID, newest first.
func (s *UploadService) ListByOwner(ctx context.Context, ownerID uint) ([]models.UploadedFile, error) {
	return s.files.ListByOwner(ctx, ownerID)
}

// Count returns the number of recorded uploads.
func (s *UploadService) Count(ctx context.Context) (int64, error) {
	return s.files.Count(ctx)
}

// write copies at most maxBytes into a new file at dst; oversized bodies leave no file behind.
func (s *UploadService) write(dst string, body io.Reader) (int64, error) {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	written, err := io.Copy(out, &io.LimitedReader{R: body, N: s.maxBytes + 1})
	closeErr := out.Close()
	switch {
	case err != nil:
		_ = os.Remove(dst)
		return 0, fmt.Errorf("write file: %w", err)
	case written > s.maxBytes:
		_ = os.Remove(dst)
		return 0, ErrPayloadTooLarge
	case closeErr != nil:
		_ = os.Remove(dst)
		return 0, fmt.Errorf("close file: %w", closeErr)
	}
	return written, nil
}

// allowedMime returns the bare media type when it is an image or video type.
func allowedMime(raw string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", false
	}
	for _, prefix := range allowedMimePrefixes {
		if strings.HasPrefix(mediaType, prefix) && len(mediaType) > len(prefix) {
			return mediaType, true
		}
	}
	return "", false
}

// generateFilename builds "<unix millis>-<random hex><ext>".
func generateFilename(now time.Time, original string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), suffix, ext)
}
