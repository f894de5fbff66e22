package product

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/storage/gcs"
)

const imageFolder = "products"

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ImageStore persists product images and returns the path clients use to
// fetch them.
type ImageStore interface {
	Save(ctx context.Context, name, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, imagePath string) error
}

// ImageUpload is a file received from a multipart form.
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

type preparedImage struct {
	name        string
	contentType string
	data        []byte
}

// prepareImage reads at most maxBytes and checks the sniffed content type.
func prepareImage(upload *ImageUpload, maxBytes int64) (*preparedImage, error) {
	if upload == nil || upload.Content == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(upload.Content, maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "image could not be read")
	}
	if len(data) == 0 {
		return nil, pkgerrors.Validation([]pkgerrors.FieldError{{Path: "image", Message: "is empty"}})
	}
	if int64(len(data)) > maxBytes {
		return nil, pkgerrors.Validation([]pkgerrors.FieldError{{
			Path:    "image",
			Message: fmt.Sprintf("must be at most %d MB", maxBytes>>20),
		}})
	}
	detected := mimetype.Detect(data)
	if !mimetype.EqualsAny(detected.String(), allowedImageTypes...) {
		return nil, pkgerrors.Validation([]pkgerrors.FieldError{{
			Path:    "image",
			Message: "must be a jpeg, png, webp or gif image",
		}})
	}
	return &preparedImage{
		name:        storedFileName(upload.Filename, time.Now()),
		contentType: detected.String(),
		data:        data,
	}, nil
}

// storedFileName builds "{unix-millis}-{sanitized name}".
func storedFileName(original string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	base = unsafeFileChars.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-.")
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), base)
}

// LocalImageStore writes images below dir and serves them under publicPrefix.
type LocalImageStore struct {
	dir          string
	publicPrefix string
}

// NewLocalImageStore creates the products folder below uploadDir.
func NewLocalImageStore(uploadDir, publicPrefix string) (*LocalImageStore, error) {
	dir := filepath.Join(uploadDir, imageFolder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalImageStore{
		dir:          dir,
		publicPrefix: path.Join("/", publicPrefix, imageFolder),
	}, nil
}

func (s *LocalImageStore) Save(_ context.Context, name, _ string, body io.Reader) (string, error) {
	name = filepath.Base(name)
	file, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, body); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return s.publicPrefix + "/" + name, nil
}

// Delete removes a previously saved image. Paths outside the store and
// already missing files are ignored.
func (s *LocalImageStore) Delete(_ context.Context, imagePath string) error {
	if !strings.HasPrefix(imagePath, s.publicPrefix+"/") {
		return nil
	}
	name := filepath.Base(imagePath)
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type objectStore interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) error
	Delete(ctx context.Context, object string) error
	PublicURL(object string) string
	ObjectFromURL(raw string) (string, bool)
}

// GCSImageStore keeps images in the configured bucket.
type GCSImageStore struct {
	client objectStore
}

func NewGCSImageStore(client *gcs.Client) *GCSImageStore {
	return &GCSImageStore{client: client}
}

func (s *GCSImageStore) Save(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	object := path.Join(imageFolder, path.Base(name))
	if err := s.client.Upload(ctx, object, contentType, body); err != nil {
		return "", err
	}
	return s.client.PublicURL(object), nil
}

func (s *GCSImageStore) Delete(ctx context.Context, imagePath string) error {
	object, ok := s.client.ObjectFromURL(imagePath)
	if !ok {
		return nil
	}
	if err := s.client.Delete(ctx, object); err != nil && !errors.Is(err, gcs.ErrObjectNotFound) {
		return err
	}
	return nil
}

func (p *preparedImage) reader() io.Reader {
	return bytes.NewReader(p.data)
}
