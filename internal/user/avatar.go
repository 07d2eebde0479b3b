package user

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sudo-init-do/mardikor/internal/domain"
)

const maxAvatarBytes = 5 << 20

var avatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// AvatarStore keeps uploaded avatars on local disk under dir and hands out
// URLs below prefix.
type AvatarStore struct {
	dir    string
	prefix string
}

func NewAvatarStore(dir, prefix string) (*AvatarStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &AvatarStore{dir: dir, prefix: strings.TrimRight(prefix, "/")}, nil
}

// Save copies the uploaded image and returns its public URL.
func (a *AvatarStore) Save(fh *multipart.FileHeader) (string, error) {
	if fh.Size > maxAvatarBytes {
		return "", domain.NewValidationError("avatar", "must be at most 5MB")
	}
	ext, ok := avatarTypes[fh.Header.Get("Content-Type")]
	if !ok {
		return "", domain.NewValidationError("avatar", "must be a jpeg, png or webp image")
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(a.dir, name))
	if err != nil {
		return "", fmt.Errorf("create avatar file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, maxAvatarBytes)); err != nil {
		return "", fmt.Errorf("write avatar file: %w", err)
	}
	return a.prefix + "/" + name, nil
}

func (a *AvatarStore) Dir() string { return a.dir }
