// Package gcp holds the credential and error conventions shared by the
// Pub/Sub, BigQuery and Cloud Storage clients.
package gcp

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// ClientOptions prefers inline JSON over a credentials file. With neither set
// the clients fall back to application default credentials.
func ClientOptions(cfg config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(cfg.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(cfg.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// IsNotFound reports a 404 from either the REST or the gRPC surface.
func IsNotFound(err error) bool {
	if code, ok := httpCode(err); ok {
		return code == http.StatusNotFound
	}
	return grpcCode(err) == codes.NotFound
}

// IsTransient reports errors worth retrying: throttling, timeouts and 5xx.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := httpCode(err); ok {
		switch code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	switch grpcCode(err) {
	case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
		return true
	}
	return false
}

func httpCode(err error) (int, bool) {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code, true
	}
	return 0, false
}

func grpcCode(err error) codes.Code {
	var withStatus interface{ GRPCStatus() *status.Status }
	if errors.As(err, &withStatus) {
		if st := withStatus.GRPCStatus(); st != nil {
			return st.Code()
		}
	}
	return codes.Unknown
}
