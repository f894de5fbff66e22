package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	body   string
}

func fakeBucket(t *testing.T, status int) (*Client, *[]capturedRequest) {
	t.Helper()
	var seen []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = append(seen, capturedRequest{
			method: r.Method,
			path:   r.URL.EscapedPath(),
			query:  r.URL.RawQuery,
			body:   string(body),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"denied"}}`, status)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(server.Close)

	c, err := newClient(context.Background(),
		config.GCSConfig{BucketName: "shop-images", PublicHost: "https://cdn.example.com/"},
		option.WithEndpoint(server.URL+"/storage/v1/"),
		option.WithHTTPClient(server.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return c, &seen
}

func TestUploadSendsObject(t *testing.T) {
	c, seen := fakeBucket(t, http.StatusOK)

	require.NoError(t, c.Upload(context.Background(), "products/1-bag.png", "image/png", strings.NewReader("png-bytes")))
	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Contains(t, req.path, "/b/shop-images/o")
	assert.Contains(t, req.body, "png-bytes")
}

func TestUploadReportsFailure(t *testing.T) {
	c, _ := fakeBucket(t, http.StatusForbidden)
	err := c.Upload(context.Background(), "a.png", "image/png", strings.NewReader("x"))
	assert.ErrorContains(t, err, "gcs upload a.png")
}

func TestDelete(t *testing.T) {
	c, seen := fakeBucket(t, http.StatusNoContent)
	require.NoError(t, c.Delete(context.Background(), "products/1-bag.png"))
	assert.Equal(t, http.MethodDelete, (*seen)[0].method)
	assert.Equal(t, "/storage/v1/b/shop-images/o/products%2F1-bag.png", (*seen)[0].path)

	missing, _ := fakeBucket(t, http.StatusNotFound)
	assert.ErrorIs(t, missing.Delete(context.Background(), "gone.png"), ErrObjectNotFound)
}

func TestPingListsOneObject(t *testing.T) {
	c, seen := fakeBucket(t, http.StatusOK)
	require.NoError(t, c.Ping(context.Background()))
	assert.Contains(t, (*seen)[0].query, "maxResults=1")

	var nilClient *Client
	assert.Error(t, nilClient.Ping(context.Background()))
}

func TestPublicURLRoundTrip(t *testing.T) {
	c := &Client{bucket: "shop-images", publicHost: "https://cdn.example.com"}

	u := c.PublicURL("/products/1-bag.png")
	assert.Equal(t, "https://cdn.example.com/shop-images/products/1-bag.png", u)

	object, ok := c.ObjectFromURL(u)
	assert.True(t, ok)
	assert.Equal(t, "products/1-bag.png", object)

	_, ok = c.ObjectFromURL("/img/default-bag.jpg")
	assert.False(t, ok)
	_, ok = c.ObjectFromURL(c.PublicURL(""))
	assert.False(t, ok)
}

func TestNewClientRequiresBucket(t *testing.T) {
	_, err := newClient(context.Background(), config.GCSConfig{}, option.WithoutAuthentication())
	assert.Error(t, err)
}
