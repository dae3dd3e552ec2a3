package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// Fingerprint identifies the configuration a batch ran with. Configs built
// from defaults have no source file and an empty fingerprint.
func (c *Config) Fingerprint() (string, error) {
	if c == nil || c.SourcePath == "" {
		return "", nil
	}
	return ComputeBlake3Hash(c.SourcePath)
}
