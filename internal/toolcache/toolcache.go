// Package toolcache finds an already installed muffet binary. Downloading it
// is left to the pipeline (for example a setup step or a cached tool directory).
package toolcache

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"go.uber.org/zap"
)

const (
	ToolName = "muffet"
	Version  = "2.10.7"
	AppName  = "linkcheck-step"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// supported mirrors the platforms muffet publishes release archives for.
var supported = map[string]bool{
	"linux/amd64":   true,
	"darwin/amd64":  true,
	"darwin/arm64":  true,
	"windows/amd64": true,
}

type LocatorConfig struct {
	// ExplicitPath wins over every other source when set.
	ExplicitPath string
	Logger       *zap.SugaredLogger
}

type Locator struct {
	explicitPath string
	logger       *zap.SugaredLogger

	goos      string
	goarch    string
	cacheHome string
	lookPath  func(file string) (string, error)
}

func NewLocator(cfg LocatorConfig) *Locator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Locator{
		explicitPath: strings.TrimSpace(cfg.ExplicitPath),
		logger:       logger,
		goos:         runtime.GOOS,
		goarch:       runtime.GOARCH,
		cacheHome:    xdg.CacheHome,
		lookPath:     exec.LookPath,
	}
}

// CheckPlatform fails hard on platforms without a muffet release.
func (l *Locator) CheckPlatform() error {
	platform := l.goos + "/" + l.goarch
	if !supported[platform] {
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	return nil
}

// CacheDir is where a pipeline is expected to unpack the muffet release.
func (l *Locator) CacheDir() string {
	return filepath.Join(l.cacheHome, AppName, ToolName, Version, l.goos+"-"+l.goarch)
}

func (l *Locator) binaryName() string {
	if l.goos == "windows" {
		return ToolName + ".exe"
	}
	return ToolName
}

// Locate returns the checker path: explicit path, then the versioned cache
// directory, then PATH. When nothing is found it returns the bare tool name so
// the launch failure surfaces through the orchestrator as exit code 1.
func (l *Locator) Locate() (string, error) {
	if err := l.CheckPlatform(); err != nil {
		return "", err
	}

	if l.explicitPath != "" {
		l.logger.Infow("muffet_located", "source", "explicit", "path", l.explicitPath)
		return l.explicitPath, nil
	}

	cached := filepath.Join(l.CacheDir(), l.binaryName())
	if isExecutableFile(cached) {
		l.logger.Infow("muffet_located", "source", "cache", "path", cached, "version", Version)
		return cached, nil
	}

	if p, err := l.lookPath(l.binaryName()); err == nil {
		l.logger.Infow("muffet_located", "source", "path", "path", p)
		return p, nil
	}

	l.logger.Warnw("muffet_not_found", "cache_dir", l.CacheDir())
	return l.binaryName(), nil
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
