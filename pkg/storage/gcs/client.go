package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/gcp"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	pingTimeout       = 5 * time.Second
	defaultPublicHost = "https://storage.googleapis.com"
)

var ErrObjectNotFound = errors.New("gcs object not found")

// Client stores product images in one bucket through the Cloud Storage JSON
// API.
type Client struct {
	objects    *storage.ObjectsService
	bucket     string
	publicHost string
}

// NewClient connects with the configured credentials and checks the bucket is
// listable before returning.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcpCfg config.GCPConfig, logg *logger.Logger) (*Client, error) {
	opts := append(gcp.ClientOptions(gcpCfg), option.WithScopes(storage.DevstorageReadWriteScope))
	c, err := newClient(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", c.bucket), "gcs client initialized")
	}
	return c, nil
}

func newClient(ctx context.Context, cfg config.GCSConfig, opts ...option.ClientOption) (*Client, error) {
	bucket := strings.TrimSpace(cfg.BucketName)
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage service: %w", err)
	}
	host := strings.TrimRight(strings.TrimSpace(cfg.PublicHost), "/")
	if host == "" {
		host = defaultPublicHost
	}
	return &Client{objects: svc.Objects, bucket: bucket, publicHost: host}, nil
}

func (c *Client) Close() error { return nil }

// Ping lists at most one object, which needs storage.objects.list.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.objects == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	_, err := c.objects.List(c.bucket).MaxResults(1).Fields("items/name").Context(ctx).Do()
	return err
}

// Upload writes object with the given content type, replacing any existing
// object of the same name.
func (c *Client) Upload(ctx context.Context, object, contentType string, body io.Reader) error {
	if object == "" {
		return errors.New("object name is required")
	}
	call := c.objects.Insert(c.bucket, &storage.Object{Name: object, ContentType: contentType}).
		Media(body, googleapi.ContentType(contentType)).
		Context(ctx)
	if _, err := call.Do(); err != nil {
		return fmt.Errorf("gcs upload %s: %w", object, err)
	}
	return nil
}

// Delete removes object. A missing object yields ErrObjectNotFound.
func (c *Client) Delete(ctx context.Context, object string) error {
	if object == "" {
		return errors.New("object name is required")
	}
	err := c.objects.Delete(c.bucket, object).Context(ctx).Do()
	switch {
	case err == nil:
		return nil
	case gcp.IsNotFound(err):
		return ErrObjectNotFound
	default:
		return fmt.Errorf("gcs delete %s: %w", object, err)
	}
}

// PublicURL returns the public address of object.
func (c *Client) PublicURL(object string) string {
	return c.publicHost + "/" + c.bucket + "/" + strings.TrimLeft(object, "/")
}

// ObjectFromURL reverses PublicURL, reporting false for foreign URLs.
func (c *Client) ObjectFromURL(raw string) (string, bool) {
	object, ok := strings.CutPrefix(raw, c.PublicURL(""))
	return object, ok && object != ""
}
