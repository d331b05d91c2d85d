package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/treesync/pkg/bundle"
	"github.com/odvcencio/treesync/pkg/config"
	"github.com/odvcencio/treesync/pkg/object"
	"github.com/odvcencio/treesync/pkg/remote"
	"github.com/odvcencio/treesync/pkg/treesync"
	"github.com/odvcencio/treesync/pkg/workspace"
)

// defaultConfigFile is read from the working directory when --config is
// not given.
const defaultConfigFile = "treesync.toml"

type globalOptions struct {
	configPath string
	token      string
	owner      string
	apiURL     string
	logLevel   string
	logFormat  string
}

func (g *globalOptions) bind(root *cobra.Command) {
	f := root.PersistentFlags()
	f.StringVar(&g.configPath, "config", "", "path to a TOML config file (default ./"+defaultConfigFile+" when present)")
	f.StringVar(&g.token, "token", "", "API token (overrides config and $"+config.EnvToken+")")
	f.StringVar(&g.owner, "owner", "", "account or organization that owns repositories")
	f.StringVar(&g.apiURL, "api-url", "", "REST API root URL")
	f.StringVar(&g.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	f.StringVar(&g.logFormat, "log-format", "text", "log format (text, json)")
}

// session is the resolved configuration for one command run.
type session struct {
	cfg    *config.Config
	creds  remote.Credentials
	logger *slog.Logger
}

func (g *globalOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	if g.apiURL != "" {
		cfg.API.BaseURL = g.apiURL
	}
	if g.owner != "" {
		cfg.Auth.Owner = g.owner
	}

	token := strings.TrimSpace(g.token)
	if token == "" {
		token, err = cfg.Token()
		if err != nil && !errors.Is(err, config.ErrNoToken) {
			return nil, err
		}
	}

	return &session{
		cfg: cfg,
		creds: remote.Credentials{
			Token:        token,
			Owner:        cfg.Auth.Owner,
			Organization: cfg.Auth.Organization,
		},
		logger: setupLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat),
	}, nil
}

func (g *globalOptions) loadConfig() (*config.Config, error) {
	if g.configPath != "" {
		return config.Load(g.configPath)
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return config.Load(defaultConfigFile)
	}
	return config.Default(), nil
}

func (s *session) engine() *treesync.Engine {
	return treesync.New(treesync.Options{
		Client: remote.ClientOptions{
			BaseURL:  s.cfg.API.BaseURL,
			Timeout:  s.cfg.API.Timeout.Duration,
			Executor: s.cfg.ExecutorOptions(),
		},
		DefaultBranch: s.cfg.Sync.DefaultBranch,
		BaseBranch:    s.cfg.Sync.BaseBranch,
		SettleDelay:   s.cfg.Sync.SettleDelay.Duration,
		Private:       s.cfg.Sync.Private,
		Upload:        s.cfg.UploadOptions(),
		Download:      s.cfg.DownloadOptions(),
		Logger:        s.logger,
	})
}

func (s *session) message(flag string) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	return s.cfg.Sync.CommitMessage
}

func setupLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadFiles reads the desired file set from a bundle when bundlePath is
// set, otherwise from dir.
func loadFiles(dir, bundlePath string) ([]object.FileEntry, error) {
	if bundlePath != "" {
		files, err := bundle.ReadFile(bundlePath)
		if err != nil {
			return nil, fmt.Errorf("read bundle %s: %w", bundlePath, err)
		}
		return files, nil
	}
	if dir == "" {
		dir = "."
	}
	return workspace.Load(dir)
}

func argOr(args []string, i int, def string) string {
	if i < len(args) && strings.TrimSpace(args[i]) != "" {
		return args[i]
	}
	return def
}
