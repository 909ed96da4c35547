package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// DirectoryResolver resolves identities against the platform's user
// directory service over HTTP. A 404 from the directory maps to
// ErrNotFound; any other failure is a transport error.
type DirectoryResolver struct {
	httpClient *resty.Client
}

// NewDirectoryResolver creates a resolver for the directory at baseURL.
func NewDirectoryResolver(baseURL string) (*DirectoryResolver, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("directory baseURL cannot be empty")
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second)

	return &DirectoryResolver{httpClient: client}, nil
}

type lookupResponse struct {
	UserID string `json:"user_id"`
	Phone  string `json:"phone"`
}

// ResolveUserPhone looks up the phone for userID.
func (d *DirectoryResolver) ResolveUserPhone(ctx context.Context, userID string) (string, error) {
	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetResult(&lookupResponse{}).
		Get("/api/users/" + url.PathEscape(userID) + "/phone")
	if err != nil {
		return "", fmt.Errorf("directory lookup for user %s failed: %w", userID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.IsError() {
		return "", fmt.Errorf("directory lookup for user %s: status %s", userID, resp.Status())
	}

	result := resp.Result().(*lookupResponse)
	if result.Phone == "" {
		return "", ErrNotFound
	}
	return result.Phone, nil
}

// ResolveUserByPhone looks up the user id for phone.
func (d *DirectoryResolver) ResolveUserByPhone(ctx context.Context, phone string) (string, error) {
	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetResult(&lookupResponse{}).
		Get("/api/phones/" + url.PathEscape(phone) + "/user")
	if err != nil {
		return "", fmt.Errorf("directory lookup for phone %s failed: %w", phone, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.IsError() {
		return "", fmt.Errorf("directory lookup for phone %s: status %s", phone, resp.Status())
	}

	result := resp.Result().(*lookupResponse)
	if result.UserID == "" {
		return "", ErrNotFound
	}
	return result.UserID, nil
}
