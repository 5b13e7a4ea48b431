package stockwatch

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Target represents a product page being watched.
type Target struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Normalize trims whitespace and defaults an empty name to the URL host.
func (t *Target) Normalize() {
	t.URL = strings.TrimSpace(t.URL)
	t.Name = strings.TrimSpace(t.Name)
	t.Note = strings.TrimSpace(t.Note)
	if t.Name == "" {
		if u, err := url.Parse(t.URL); err == nil {
			t.Name = u.Host
		}
	}
}

// Validate returns an error if the target contains invalid fields.
func (t *Target) Validate() error {
	return ValidateURL(t.URL)
}

// DisplayName returns the name, falling back to the URL.
func (t *Target) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.URL
}

// ValidateURL returns EINVALID unless raw is an absolute http or https URL.
func ValidateURL(raw string) error {
	if raw == "" {
		return Errorf(EINVALID, "target URL required")
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return Errorf(EINVALID, "target URL must start with http:// or https://")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Errorf(EINVALID, "target URL %q is malformed", raw)
	}
	return nil
}

// TargetService represents the durable watch-list.
type TargetService interface {
	// CreateTarget normalizes, validates and stores a new target, assigning
	// its ID and creation time.
	// Returns ECONFLICT if a target with the same URL already exists.
	CreateTarget(ctx context.Context, target *Target) error

	// FindTargetByID retrieves a target by ID.
	// Returns ENOTFOUND if target does not exist.
	FindTargetByID(ctx context.Context, id string) (*Target, error)

	// FindTargets retrieves targets matching the filter in creation order.
	FindTargets(ctx context.Context, filter TargetFilter) ([]*Target, error)

	// DeleteTarget permanently removes a target.
	// Returns ENOTFOUND if target does not exist.
	DeleteTarget(ctx context.Context, id string) error
}

// TargetFilter represents a filter for FindTargets.
type TargetFilter struct {
	ID  *string `json:"id"`
	URL *string `json:"url"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}
