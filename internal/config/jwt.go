package config

import "fmt"

// JWTConfig holds configuration for JWT token generation and validation.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("jwt secret cannot be empty")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("jwt expiration must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
