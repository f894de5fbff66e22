package product

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const testDefaultImage = "/img/default-bag.jpg"

// pngBytes is the smallest payload mimetype recognises as image/png.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type memoryImageStore struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
	saveErr error
}

func newMemoryImageStore() *memoryImageStore {
	return &memoryImageStore{saved: map[string][]byte{}}
}

func (m *memoryImageStore) Save(_ context.Context, name, _ string, body io.Reader) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	path := "/uploads/products/" + name
	m.saved[path] = data
	return path, nil
}

func (m *memoryImageStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, path)
	m.deleted = append(m.deleted, path)
	return nil
}

func newTestService(t *testing.T) (Service, *Repository, *memoryImageStore) {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	images := newMemoryImageStore()
	svc, err := NewService(ServiceParams{
		Repo:           repo,
		Tx:             client,
		Images:         images,
		DefaultImage:   testDefaultImage,
		MaxUploadBytes: 1 << 20,
		Logger:         logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo, images
}

func validInput(name string, stock int) ProductInput {
	return ProductInput{
		Name:     name,
		Price:    decimal.RequireFromString("49.90"),
		Stock:    &stock,
		Category: "bags",
		Characteristics: types.Characteristics{
			types.CharacteristicBrand: "Acme",
			types.CharacteristicColor: "black",
		},
	}
}

func pngUpload(name string) *ImageUpload {
	return &ImageUpload{Filename: name, Content: bytes.NewReader(pngBytes)}
}

func mustCreateProduct(t *testing.T, svc Service, name string, stock int) *ProductDTO {
	t.Helper()
	dto, err := svc.Create(context.Background(), validInput(name, stock), nil)
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return dto
}

func fieldPaths(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	fields, ok := typed.Details().([]pkgerrors.FieldError)
	if !ok {
		t.Fatalf("expected field errors, got %T", typed.Details())
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Path] = f.Message
	}
	return out
}

func productName(i int) string {
	return fmt.Sprintf("Bag %02d", i)
}
