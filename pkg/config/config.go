// Package config loads service configuration from an optional YAML file
// with environment variable overrides. Environment always wins, so
// deployments can ship one file and tweak per-instance values without
// editing it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server struct {
		Addr            string        `yaml:"addr"`
		CORSOrigin      string        `yaml:"cors_origin"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Qdrant struct {
		Addr string `yaml:"addr"`
		Dims int    `yaml:"dims"`
	} `yaml:"qdrant"`

	OpenAI struct {
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		EmbedModel string `yaml:"embed_model"`
		ChatModel  string `yaml:"chat_model"`
	} `yaml:"openai"`

	Storage struct {
		SQLitePath string `yaml:"sqlite_path"`
		UploadsDir string `yaml:"uploads_dir"`
	} `yaml:"storage"`

	Chunking struct {
		MaxSize int `yaml:"max_size"`
		Overlap int `yaml:"overlap"`
	} `yaml:"chunking"`

	Retrieval struct {
		TopK int `yaml:"top_k"`
	} `yaml:"retrieval"`

	Scraper struct {
		UserAgent string        `yaml:"user_agent"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"scraper"`
}

// Load reads configuration from path (ignored when empty or missing)
// and applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = envOr("DOCSAGE_ADDR", c.Server.Addr)
	c.Server.CORSOrigin = envOr("DOCSAGE_CORS_ORIGIN", c.Server.CORSOrigin)
	c.Qdrant.Addr = envOr("QDRANT_ADDR", c.Qdrant.Addr)
	c.Qdrant.Dims = envIntOr("QDRANT_DIMS", c.Qdrant.Dims)
	c.OpenAI.BaseURL = envOr("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.APIKey = envOr("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.EmbedModel = envOr("OPENAI_EMBED_MODEL", c.OpenAI.EmbedModel)
	c.OpenAI.ChatModel = envOr("OPENAI_CHAT_MODEL", c.OpenAI.ChatModel)
	c.Storage.SQLitePath = envOr("DOCSAGE_DB", c.Storage.SQLitePath)
	c.Storage.UploadsDir = envOr("DOCSAGE_UPLOADS", c.Storage.UploadsDir)
	c.Chunking.MaxSize = envIntOr("DOCSAGE_CHUNK_SIZE", c.Chunking.MaxSize)
	c.Chunking.Overlap = envIntOr("DOCSAGE_CHUNK_OVERLAP", c.Chunking.Overlap)
	c.Retrieval.TopK = envIntOr("DOCSAGE_TOP_K", c.Retrieval.TopK)
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.CORSOrigin == "" {
		c.Server.CORSOrigin = "*"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Qdrant.Addr == "" {
		c.Qdrant.Addr = "localhost:6334"
	}
	if c.Qdrant.Dims == 0 {
		c.Qdrant.Dims = 1536
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "docsage.db"
	}
	if c.Storage.UploadsDir == "" {
		c.Storage.UploadsDir = "uploads"
	}
	if c.Chunking.MaxSize == 0 {
		c.Chunking.MaxSize = 1000
	}
	if c.Chunking.Overlap == 0 {
		c.Chunking.Overlap = 200
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 3
	}
	if c.Scraper.Timeout == 0 {
		c.Scraper.Timeout = 10 * time.Second
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
