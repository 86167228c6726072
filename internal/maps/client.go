// README: Shared Google Maps client construction.
package maps

import (
	"fmt"

	"googlemaps.github.io/maps"
)

// NewClient builds a Maps client. Extra options (e.g. maps.WithBaseURL in
// tests) are applied after the API key.
func NewClient(apiKey string, opts ...maps.ClientOption) (*maps.Client, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}
