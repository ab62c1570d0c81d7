// Package config loads gateway settings from a YAML or TOML file with
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	sizes "github.com/labstack/gommon/bytes"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. GATEWAY_BACKEND_BASEURL.
const EnvPrefix = "GATEWAY"

// AppConfig is the root configuration.
type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server" toml:"server"`
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend" toml:"backend"`
	Upload   UploadConfig   `mapstructure:"upload" yaml:"upload" toml:"upload"`
	Advanced AdvancedConfig `mapstructure:"advanced" yaml:"advanced" toml:"advanced"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port              int    `mapstructure:"port" yaml:"port" toml:"port"`
	BindAddress       string `mapstructure:"bindaddress" yaml:"bindAddress" toml:"bindAddress"`
	EnableCORS        bool   `mapstructure:"enablecors" yaml:"enableCORS" toml:"enableCORS"`
	AllowOrigins      string `mapstructure:"alloworigins" yaml:"allowOrigins" toml:"allowOrigins"`
	ReadTimeout       int    `mapstructure:"readtimeoutseconds" yaml:"readTimeoutSeconds" toml:"readTimeoutSeconds"`
	WriteTimeout      int    `mapstructure:"writetimeoutseconds" yaml:"writeTimeoutSeconds" toml:"writeTimeoutSeconds"`
	IdleTimeout       int    `mapstructure:"idletimeoutseconds" yaml:"idleTimeoutSeconds" toml:"idleTimeoutSeconds"`
	BodyLimit         string `mapstructure:"bodylimit" yaml:"bodyLimit" toml:"bodyLimit"`
	IndexBodyLimit    string `mapstructure:"indexbodylimit" yaml:"indexBodyLimit" toml:"indexBodyLimit"`
	EnableCompression bool   `mapstructure:"enablecompression" yaml:"enableCompression" toml:"enableCompression"`
	CompressionLevel  int    `mapstructure:"compressionlevel" yaml:"compressionLevel" toml:"compressionLevel"`
	ServeUploadPage   bool   `mapstructure:"serveuploadpage" yaml:"serveUploadPage" toml:"serveUploadPage"`
}

// BackendConfig describes the document-processing backend.
type BackendConfig struct {
	BaseURL            string `mapstructure:"baseurl" yaml:"baseURL" toml:"baseURL"`
	ConvertPath        string `mapstructure:"convertpath" yaml:"convertPath" toml:"convertPath"`
	IndexPath          string `mapstructure:"indexpath" yaml:"indexPath" toml:"indexPath"`
	MaxBodySize        string `mapstructure:"maxbodysize" yaml:"maxBodySize" toml:"maxBodySize"`
	TimeoutSeconds     int    `mapstructure:"timeoutseconds" yaml:"timeoutSeconds" toml:"timeoutSeconds"`
	ForwardIndexStatus bool   `mapstructure:"forwardindexstatus" yaml:"forwardIndexStatus" toml:"forwardIndexStatus"`
}

// UploadConfig controls how incoming files are collected.
type UploadConfig struct {
	FieldName string `mapstructure:"fieldname" yaml:"fieldName" toml:"fieldName"`
	MaxFiles  int    `mapstructure:"maxfiles" yaml:"maxFiles" toml:"maxFiles"`
}

// AdvancedConfig contains logging and WebSocket options.
type AdvancedConfig struct {
	EnableRequestLogging    bool   `mapstructure:"enablerequestlogging" yaml:"enableRequestLogging" toml:"enableRequestLogging"`
	LogConfigPath           string `mapstructure:"logconfigpath" yaml:"logConfigPath" toml:"logConfigPath"`
	EnableWebSocket         bool   `mapstructure:"enablewebsocket" yaml:"enableWebSocket" toml:"enableWebSocket"`
	WebSocketMaxMessageSize string `mapstructure:"websocketmaxmessagesize" yaml:"webSocketMaxMessageSize" toml:"webSocketMaxMessageSize"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:              8001,
			BindAddress:       "0.0.0.0",
			EnableCORS:        true,
			AllowOrigins:      "*",
			ReadTimeout:       300,
			WriteTimeout:      300,
			IdleTimeout:       120,
			BodyLimit:         "110M",
			IndexBodyLimit:    "1000M",
			EnableCompression: true,
			CompressionLevel:  5,
			ServeUploadPage:   true,
		},
		Backend: BackendConfig{
			BaseURL:            "http://localhost:8002",
			ConvertPath:        "/convert-pdfs-chunks",
			IndexPath:          "/add-to-vector-collection",
			MaxBodySize:        "100MiB",
			TimeoutSeconds:     0,
			ForwardIndexStatus: false,
		},
		Upload: UploadConfig{
			FieldName: "files",
			MaxFiles:  10,
		},
		Advanced: AdvancedConfig{
			EnableRequestLogging:    true,
			LogConfigPath:           "",
			EnableWebSocket:         true,
			WebSocketMaxMessageSize: "150MiB",
		},
	}
}

// LoadConfig reads configPath, writing the defaults there first when the file
// does not exist. Environment variables override file values.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := DefaultConfig().Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetConfigFile(configPath)
	v.SetConfigType(configType(configPath))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration, as TOML for .toml paths and YAML otherwise.
func (c *AppConfig) Save(configPath string) error {
	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	var buf bytes.Buffer
	switch configType(configPath) {
	case "toml":
		buf.WriteString("# PDF gateway configuration\n# This file is auto-generated on first run\n\n")
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	default:
		buf.WriteString("# PDF gateway configuration\n# This file is auto-generated on first run\n\n")
		out, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		buf.Write(out)
	}

	if err := os.WriteFile(configPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides honours the plain variables the gateway has always read.
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if backendURL := os.Getenv("PDF_SERVICE_URL"); backendURL != "" {
		c.Backend.BaseURL = backendURL
	}
}

// Validate checks values that would otherwise fail later at request time.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Backend.BaseURL == "" {
		return errors.New("backend base url is required")
	}
	if c.Upload.FieldName == "" {
		return errors.New("upload field name is required")
	}
	if c.Upload.MaxFiles <= 0 {
		return fmt.Errorf("upload max files must be positive, got %d", c.Upload.MaxFiles)
	}
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("backend timeout must not be negative, got %d", c.Backend.TimeoutSeconds)
	}
	if _, err := c.MaxBodyBytes(); err != nil {
		return err
	}
	if err := validateBodyLimit("server.bodyLimit", c.Server.BodyLimit); err != nil {
		return err
	}
	if err := validateBodyLimit("server.indexBodyLimit", c.Server.IndexBodyLimit); err != nil {
		return err
	}
	if _, err := c.WebSocketMaxMessageBytes(); err != nil {
		return err
	}
	return nil
}

// MaxBodyBytes returns the backend body ceiling in bytes.
func (c *AppConfig) MaxBodyBytes() (int64, error) {
	return parseSize("backend.maxBodySize", c.Backend.MaxBodySize)
}

// WebSocketMaxMessageBytes returns the WebSocket read limit in bytes.
func (c *AppConfig) WebSocketMaxMessageBytes() (int64, error) {
	return parseSize("advanced.webSocketMaxMessageSize", c.Advanced.WebSocketMaxMessageSize)
}

// BackendTimeout returns the backend call timeout; zero means none.
func (c *AppConfig) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// GetServerAddr returns the server bind address.
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// AllowedOrigins splits the CORS origin list, defaulting to "*".
func (c *AppConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func parseSize(key, value string) (int64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return int64(n), nil
}

// validateBodyLimit checks a limit in echo's BodyLimit syntax, which panics on
// values it cannot parse. Empty disables the limit.
func validateBodyLimit(key, value string) error {
	if value == "" {
		return nil
	}
	if _, err := sizes.Parse(value); err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

// setDefaults registers every key with viper so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.bindaddress", d.Server.BindAddress)
	v.SetDefault("server.enablecors", d.Server.EnableCORS)
	v.SetDefault("server.alloworigins", d.Server.AllowOrigins)
	v.SetDefault("server.readtimeoutseconds", d.Server.ReadTimeout)
	v.SetDefault("server.writetimeoutseconds", d.Server.WriteTimeout)
	v.SetDefault("server.idletimeoutseconds", d.Server.IdleTimeout)
	v.SetDefault("server.bodylimit", d.Server.BodyLimit)
	v.SetDefault("server.indexbodylimit", d.Server.IndexBodyLimit)
	v.SetDefault("server.enablecompression", d.Server.EnableCompression)
	v.SetDefault("server.compressionlevel", d.Server.CompressionLevel)
	v.SetDefault("server.serveuploadpage", d.Server.ServeUploadPage)

	v.SetDefault("backend.baseurl", d.Backend.BaseURL)
	v.SetDefault("backend.convertpath", d.Backend.ConvertPath)
	v.SetDefault("backend.indexpath", d.Backend.IndexPath)
	v.SetDefault("backend.maxbodysize", d.Backend.MaxBodySize)
	v.SetDefault("backend.timeoutseconds", d.Backend.TimeoutSeconds)
	v.SetDefault("backend.forwardindexstatus", d.Backend.ForwardIndexStatus)

	v.SetDefault("upload.fieldname", d.Upload.FieldName)
	v.SetDefault("upload.maxfiles", d.Upload.MaxFiles)

	v.SetDefault("advanced.enablerequestlogging", d.Advanced.EnableRequestLogging)
	v.SetDefault("advanced.logconfigpath", d.Advanced.LogConfigPath)
	v.SetDefault("advanced.enablewebsocket", d.Advanced.EnableWebSocket)
	v.SetDefault("advanced.websocketmaxmessagesize", d.Advanced.WebSocketMaxMessageSize)
}
