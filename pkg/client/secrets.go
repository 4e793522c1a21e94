package client

import (
	"fmt"
	"os"
	"strings"
)

// WithAdminSecretFile reads the admin secret from a file, typically a
// mounted secret in containerized deployments. Trailing whitespace and
// newlines are stripped.
//
//	c, err := client.New(engineURL,
//	    client.WithAdminSecretFile("/var/run/secrets/veritas/admin"),
//	)
func WithAdminSecretFile(path string) Option {
	return func(c *Client) error {
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read admin secret from %q: %w", path, err)
		}
		secret := strings.TrimSpace(string(b))
		if secret == "" {
			return fmt.Errorf("admin secret file %q is empty", path)
		}
		c.adminSecret = secret
		return nil
	}
}

// WithBearerTokenFile reads a callback token from a file. Trailing
// whitespace and newlines are stripped.
func WithBearerTokenFile(path string) Option {
	return func(c *Client) error {
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read bearer token from %q: %w", path, err)
		}
		token := strings.TrimSpace(string(b))
		if token == "" {
			return fmt.Errorf("bearer token file %q is empty", path)
		}
		c.bearerToken = token
		return nil
	}
}
