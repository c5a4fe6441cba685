package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port int `toml:"port"`
}

type IMAPConfig struct {
	Server      string `toml:"server"`
	Port        int    `toml:"port"`
	Folder      string `toml:"folder"`
	FetchWindow uint32 `toml:"fetch_window"`
	TimeoutSecs int    `toml:"timeout_seconds"`
}

type ModelConfig struct {
	Vectorizer string `toml:"vectorizer"` // Path to the TF-IDF vectorizer artifact
	Classifier string `toml:"classifier"` // Path to the trained classifier artifact
}

type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

type EncryptionConfig struct {
	Key string `toml:"key"` // 32-byte key for AES encryption of stored secrets
}

type Config struct {
	Server     ServerConfig     `toml:"server"`
	IMAP       IMAPConfig       `toml:"imap"`
	Model      ModelConfig      `toml:"model"`
	Storage    StorageConfig    `toml:"storage"`
	Encryption EncryptionConfig `toml:"encryption"`
}

func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.Server.Port = 3000
	config.IMAP.Port = 993
	config.IMAP.Folder = "INBOX"
	config.IMAP.FetchWindow = 100
	config.IMAP.TimeoutSecs = 30
	config.Storage.DataDir = "./data"

	_, err := toml.DecodeFile(filepath, &config)
	if err != nil {
		return nil, err
	}

	if config.IMAP.Server == "" {
		return nil, fmt.Errorf("imap server is required")
	}

	if config.Model.Vectorizer == "" || config.Model.Classifier == "" {
		return nil, fmt.Errorf("model vectorizer and classifier paths are required")
	}

	if len(config.Encryption.Key) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(config.Encryption.Key))
	}

	return &config, nil
}

// IMAPTimeout returns the configured IMAP command timeout.
func (c *Config) IMAPTimeout() time.Duration {
	return time.Duration(c.IMAP.TimeoutSecs) * time.Second
}

// IMAPAddr returns the host:port address of the IMAP server.
func (c *Config) IMAPAddr() string {
	return fmt.Sprintf("%s:%d", c.IMAP.Server, c.IMAP.Port)
}
