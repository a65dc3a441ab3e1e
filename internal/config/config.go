package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tessapp/ota/internal/version"
)

// Config wires the update manager's endpoints, directories and platform
// capabilities. Everything has a usable default so the manager can be
// constructed with nil-config in tests.
type Config struct {
	// UpdateInfoURL is the package-channel query endpoint. The current
	// version is appended as ?current_version=<semver>.
	UpdateInfoURL string

	// BundleManifestURL serves the bundle-channel manifest. Empty disables
	// the bundle channel.
	BundleManifestURL string

	CurrentVersion string

	CacheDir  string // private download cache
	StateDir  string // durable key-value state
	BundleDir string // currently applied bundle identity
	SharedDir string // user-visible publish target

	// CheckTimeout bounds each update-check network call so one unreachable
	// channel cannot stall the overall check. Downloads are not time-bounded.
	CheckTimeout time.Duration

	// SideloadSupported gates the package-download pipeline; platforms
	// without sideloaded installation refuse downloads outright.
	SideloadSupported bool

	// InstallerTool is the executable the installer strategies invoke.
	InstallerTool string

	PackageMIME string
}

const appDir = "tessa"

func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return Config{
		UpdateInfoURL:     "https://updates.tessa.app/updates/info",
		BundleManifestURL: "https://updates.tessa.app/bundle/manifest",
		CurrentVersion:    version.Version,
		CacheDir:          filepath.Join(home, ".cache", appDir, "downloads"),
		StateDir:          filepath.Join(home, ".local", "state", appDir),
		BundleDir:         filepath.Join(home, ".local", "state", appDir, "bundle"),
		SharedDir:         filepath.Join(home, "Downloads"),
		CheckTimeout:      5 * time.Second,
		SideloadSupported: runtime.GOOS == "linux" || runtime.GOOS == "android",
		InstallerTool:     "pkginstall",
		PackageMIME:       "application/vnd.tessa.package-archive",
	}
}

// Load reads config.yml (searched in . and ~/.config/tessa) with OTA_*
// env overrides layered on top of Default().
func Load() (Config, error) {
	def := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", appDir))
	}

	v.SetEnvPrefix("OTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("update.info_url", def.UpdateInfoURL)
	v.SetDefault("bundle.manifest_url", def.BundleManifestURL)
	v.SetDefault("dirs.cache", def.CacheDir)
	v.SetDefault("dirs.state", def.StateDir)
	v.SetDefault("dirs.bundle", def.BundleDir)
	v.SetDefault("dirs.shared", def.SharedDir)
	v.SetDefault("check.timeout", def.CheckTimeout.String())
	v.SetDefault("installer.tool", def.InstallerTool)
	v.SetDefault("installer.mime", def.PackageMIME)
	v.SetDefault("installer.sideload", def.SideloadSupported)

	// Config file is optional; env-only is fine.
	_ = v.ReadInConfig()

	cfg := Config{
		UpdateInfoURL:     strings.TrimSpace(v.GetString("update.info_url")),
		BundleManifestURL: strings.TrimSpace(v.GetString("bundle.manifest_url")),
		CurrentVersion:    def.CurrentVersion,
		CacheDir:          v.GetString("dirs.cache"),
		StateDir:          v.GetString("dirs.state"),
		BundleDir:         v.GetString("dirs.bundle"),
		SharedDir:         v.GetString("dirs.shared"),
		CheckTimeout:      v.GetDuration("check.timeout"),
		SideloadSupported: v.GetBool("installer.sideload"),
		InstallerTool:     v.GetString("installer.tool"),
		PackageMIME:       v.GetString("installer.mime"),
	}

	if cfg.UpdateInfoURL == "" {
		return Config{}, fmt.Errorf("update.info_url must not be empty")
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = def.CheckTimeout
	}
	return cfg, nil
}
