package checker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/tessapp/ota/internal/bundle"
	"github.com/tessapp/ota/internal/config"
	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/models"
	"github.com/tessapp/ota/internal/service"
)

// bundleChangelog is shown for bundle offers; the manifest carries no
// release notes.
var bundleChangelog = []string{"Performance improvements and bug fixes"}

// Checker queries the bundle channel first, then the package channel, and
// normalizes both into a single UpdateOffer. A transport failure on either
// channel reads as "no update from that channel" and never aborts the other.
type Checker struct {
	Config     config.Config
	HTTPClient service.HTTPClient
	Bundle     bundle.Channel

	mu       sync.Mutex
	inFlight bool
}

type updateInfoResponse struct {
	Available   bool     `json:"available"`
	Version     string   `json:"version"`
	Changelog   []string `json:"changelog"`
	FileSize    int64    `json:"file_size"`
	ForceUpdate bool     `json:"force_update"`
	DownloadURL string   `json:"download_url"`
}

func New(conf *config.Config, client service.HTTPClient, ch bundle.Channel) *Checker {
	if conf == nil {
		def := config.Default()
		conf = &def
	}
	if client == nil {
		client = service.NewHTTPClient(conf.CheckTimeout)
	}
	if ch == nil {
		ch = bundle.Disabled{}
	}

	return &Checker{
		Config:     *conf,
		HTTPClient: client,
		Bundle:     ch,
	}
}

// Check is single-flight: a call made while another is outstanding returns
// an unavailable offer immediately. Checking is cheap to retry later;
// overlapping checks would double-report.
func (c *Checker) Check(ctx context.Context) *models.UpdateOffer {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		logger.Debug("check already in flight, skipping")
		return &models.UpdateOffer{}
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	if offer := c.checkBundle(ctx); offer != nil {
		return offer
	}
	if offer := c.checkPackage(ctx); offer != nil {
		return offer
	}
	return &models.UpdateOffer{}
}

func (c *Checker) checkBundle(ctx context.Context) *models.UpdateOffer {
	if !c.Bundle.Enabled() {
		return nil
	}

	ctx, cancel := c.boundCheck(ctx)
	defer cancel()

	remoteID, err := c.Bundle.ManifestID(ctx)
	if err != nil {
		logger.Debug("bundle manifest check failed: %v", err)
		return nil
	}
	if remoteID == "" || remoteID == c.Bundle.CurrentID() {
		return nil
	}

	// Bundle updates never change the package version.
	return &models.UpdateOffer{
		Available: true,
		Channel:   models.ChannelBundle,
		Version:   c.Config.CurrentVersion,
		BundleID:  remoteID,
		Changelog: bundleChangelog,
	}
}

func (c *Checker) checkPackage(ctx context.Context) *models.UpdateOffer {
	ctx, cancel := c.boundCheck(ctx)
	defer cancel()

	var info updateInfoResponse
	if err := service.GetJSON(ctx, c.HTTPClient, c.infoURL(), &info); err != nil {
		logger.Debug("package update check failed: %v", err)
		return nil
	}

	// The server is the sole authority on availability; the client does no
	// version ordering of its own. A version that does not even parse is a
	// malformed response, though.
	if !info.Available {
		return nil
	}
	if _, err := goversion.NewVersion(info.Version); err != nil {
		logger.Debug("server offered unparseable version %q: %v", info.Version, err)
		return nil
	}

	return &models.UpdateOffer{
		Available:     true,
		Channel:       models.ChannelPackage,
		Version:       info.Version,
		Changelog:     info.Changelog,
		FileSizeBytes: info.FileSize,
		ForceUpdate:   info.ForceUpdate,
		DownloadURL:   info.DownloadURL,
	}
}

func (c *Checker) infoURL() string {
	return fmt.Sprintf("%s?current_version=%s",
		c.Config.UpdateInfoURL, url.QueryEscape(c.Config.CurrentVersion))
}

// boundCheck puts a short deadline on a single channel query so one
// unreachable channel cannot stall the overall check.
func (c *Checker) boundCheck(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.Config.CheckTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
