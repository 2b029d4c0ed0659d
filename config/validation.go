package config

import (
	"encoding/hex"
	"fmt"
)

func (c *Config) Validate() error {
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}

	key, err := hex.DecodeString(c.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("encryption key must be hex encoded: %v", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("encryption key must decode to 32 bytes, got %d", len(key))
	}

	return nil
}
