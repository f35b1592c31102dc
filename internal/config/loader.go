package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	envPrefix = "VMEMD_"
)

// envSubsections are nested config sections reachable through
// environment variables, e.g. VMEMD_STORE_CHROMEM_PATH.
var envSubsections = []string{"chromem", "qdrant", "rate_limit", "output", "sampling"}

// LoadWithFile loads daemon configuration from a YAML file, then
// overrides with environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (VMEMD_SERVER_PORT, VMEMD_STORE_PROVIDER, ...)
//  2. YAML config file (~/.config/vmemd/config.yaml)
//  3. Defaults
//
// If configPath is empty the default path is used. A missing file is
// not an error; defaults and environment variables still apply.
//
// The config file must live under ~/.config/vmemd/ or /etc/vmemd/,
// must not be world or group readable (0600 or 0400), and must not
// exceed 1MB. Symlinks are resolved before the directory check.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "vmemd", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a
		// TOCTOU race between stat and read.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// transformEnvKey maps environment variable names to config paths.
//
//	VMEMD_SERVER_PORT        -> server.port
//	VMEMD_STORE_PROVIDER     -> store.provider
//	VMEMD_STORE_CHROMEM_PATH -> store.chromem.path
//	VMEMD_EMBEDDINGS_BASE_URL -> embeddings.base_url
//
// The name splits on the first underscore into section and field. Known
// subsections split once more; remaining underscores stay in the field
// name.
func transformEnvKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}

	section := parts[0]
	fieldName := parts[1]

	for _, sub := range envSubsections {
		if strings.HasPrefix(fieldName, sub+"_") {
			return section + "." + sub + "." + strings.TrimPrefix(fieldName, sub+"_")
		}
	}
	return section + "." + fieldName
}

// EnsureConfigDir creates the vmemd config directory if missing, with
// 0700 permissions.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "vmemd")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// validateConfigPath checks that the path is in an allowed directory.
// Runs even if the file does not exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Resolve symlinks so links cannot escape the allowed directories.
	// Paths that do not exist yet fall back to the absolute path.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "vmemd"),
		"/etc/vmemd",
	}

	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/vmemd/ or /etc/vmemd/")
}

// validateConfigFileProperties checks file permissions and size using
// FileInfo from an already-opened descriptor.
func validateConfigFileProperties(info os.FileInfo) error {
	// Windows has a different permission model; skip the check there.
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// ClientConfig holds configuration for the vmem CLI client.
type ClientConfig struct {
	// BaseURL is the vmemd API address.
	BaseURL string

	// AuthToken enables bearer authentication when set.
	AuthToken Secret

	// Timeout bounds each API request.
	Timeout Duration

	// CompactLimit is the maximum number of compact entries retained
	// per scope.
	CompactLimit int
}

// LoadClient loads CLI client configuration from environment variables.
//
// Environment variables:
//   - VMEM_BASE_URL: API address (default: http://localhost:8000)
//   - VMEM_AUTH_TOKEN: bearer token (default: none)
//   - VMEM_TIMEOUT: request timeout (default: 30s)
//   - VMEM_COMPACT_LIMIT: retained compact entries (default: 5)
//
// VECTOR_BASE_URL and VECTOR_AUTH_TOKEN are read as fallbacks for
// compatibility with older deployments.
func LoadClient() (*ClientConfig, error) {
	baseURL := getEnvString("VMEM_BASE_URL", "")
	if baseURL == "" {
		baseURL = getEnvString("VECTOR_BASE_URL", "http://localhost:8000")
	}
	token := getEnvString("VMEM_AUTH_TOKEN", "")
	if token == "" {
		token = getEnvString("VECTOR_AUTH_TOKEN", "")
	}

	cfg := &ClientConfig{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		AuthToken:    Secret(token),
		Timeout:      Duration(getEnvDuration("VMEM_TIMEOUT", 30*time.Second)),
		CompactLimit: getEnvInt("VMEM_COMPACT_LIMIT", 5),
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout.Duration())
	}
	if cfg.CompactLimit < 1 {
		return nil, fmt.Errorf("compact limit must be at least 1, got %d", cfg.CompactLimit)
	}
	return cfg, nil
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
