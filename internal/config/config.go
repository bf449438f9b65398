package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/edkit-dev/edkit/internal/branding"
	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Config keys.
const (
	KeyVariant           = "variant"
	KeyCacheDir          = "cache_dir"
	KeyMaxRetries        = "max_retries"
	KeyRetryDelay        = "retry_delay"
	KeyConnectTimeout    = "connect_timeout"
	KeyTransferTimeout   = "transfer_timeout"
	KeyMirror            = "mirror"
	KeyDownloadBaseURL   = "download_base_url"
	KeyExpectedSHA256    = "expected_sha256"
	KeyMinFreeSpaceMB    = "min_free_space_mb"
	KeyMinInotifyWatches = "min_inotify_watches"
	KeyProfile           = "profile"
	KeyMinVersion        = "min_version"
	KeyBackupDir         = "backup_dir"
	KeyCloseGrace        = "close_grace"
)

// KeyInfo documents one config key.
type KeyInfo struct {
	Key  string
	Help string
}

// Keys lists every key edkit reads, in display order.
var Keys = []KeyInfo{
	{KeyVariant, "editor build to manage: stable or insiders"},
	{KeyCacheDir, "directory holding downloaded artifacts and their sidecars"},
	{KeyMaxRetries, "retries after a failed transfer"},
	{KeyRetryDelay, "fixed pause between transfer attempts"},
	{KeyConnectTimeout, "TCP connect timeout"},
	{KeyTransferTimeout, "limit for one whole download"},
	{KeyMirror, "base URL replacing the download service"},
	{KeyDownloadBaseURL, "download service base URL"},
	{KeyExpectedSHA256, "pinned artifact digest, hex"},
	{KeyMinFreeSpaceMB, "free space required in the cache dir"},
	{KeyMinInotifyWatches, "lowest acceptable fs.inotify.max_user_watches"},
	{KeyProfile, "settings profile YAML merged by install and optimize"},
	{KeyMinVersion, "lowest acceptable installed editor version"},
	{KeyBackupDir, "where config backups are written"},
	{KeyCloseGrace, "wait between TERM and KILL when closing the editor"},
}

// Known reports whether key is one of Keys.
func Known(key string) bool {
	for _, k := range Keys {
		if k.Key == key {
			return true
		}
	}
	return false
}

// Settings is the typed view of the resolved configuration.
type Settings struct {
	Variant           string
	CacheDir          string
	MaxRetries        int
	RetryDelay        time.Duration
	ConnectTimeout    time.Duration
	TransferTimeout   time.Duration
	Mirror            string
	DownloadBaseURL   string
	ExpectedSHA256    string
	MinFreeSpaceMB    int64
	MinInotifyWatches int
	Profile           string
	MinVersion        string
	BackupDir         string
	CloseGrace        time.Duration
}

// Dir returns the path to the config directory (~/.edkit/).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.edkit/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// DefaultCacheDir returns the XDG cache location for downloaded artifacts.
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, branding.CLIName())
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault(KeyVariant, "stable")
	viper.SetDefault(KeyCacheDir, DefaultCacheDir())
	viper.SetDefault(KeyMaxRetries, 3)
	viper.SetDefault(KeyRetryDelay, 5*time.Second)
	viper.SetDefault(KeyConnectTimeout, 30*time.Second)
	viper.SetDefault(KeyTransferTimeout, time.Hour)
	viper.SetDefault(KeyDownloadBaseURL, branding.DownloadBaseURL())
	viper.SetDefault(KeyMinFreeSpaceMB, 1024)
	viper.SetDefault(KeyMinInotifyWatches, 524288)
	viper.SetDefault(KeyBackupDir, filepath.Join(xdg.DataHome, branding.CLIName(), "backups"))
	viper.SetDefault(KeyCloseGrace, 10*time.Second)
}

// Load initializes Viper to read from the default config file and environment.
func Load() {
	LoadFile(FilePath())
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) {
	setDefaults()
	viper.SetConfigFile(path)
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Current returns the resolved settings.
func Current() Settings {
	return Settings{
		Variant:           viper.GetString(KeyVariant),
		CacheDir:          viper.GetString(KeyCacheDir),
		MaxRetries:        viper.GetInt(KeyMaxRetries),
		RetryDelay:        viper.GetDuration(KeyRetryDelay),
		ConnectTimeout:    viper.GetDuration(KeyConnectTimeout),
		TransferTimeout:   viper.GetDuration(KeyTransferTimeout),
		Mirror:            viper.GetString(KeyMirror),
		DownloadBaseURL:   viper.GetString(KeyDownloadBaseURL),
		ExpectedSHA256:    viper.GetString(KeyExpectedSHA256),
		MinFreeSpaceMB:    viper.GetInt64(KeyMinFreeSpaceMB),
		MinInotifyWatches: viper.GetInt(KeyMinInotifyWatches),
		Profile:           viper.GetString(KeyProfile),
		MinVersion:        viper.GetString(KeyMinVersion),
		BackupDir:         viper.GetString(KeyBackupDir),
		CloseGrace:        viper.GetDuration(KeyCloseGrace),
	}
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if !Known(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
