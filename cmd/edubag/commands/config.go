package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"edubag/lib/configutil"
	configlibsql "edubag/lib/configutil/libsql"
	"edubag/lib/notify"
	"edubag/lib/scrapers/albert"
	"edubag/lib/scrapers/brightspace"
	"edubag/lib/scrapers/gradescope"
	"edubag/services/exportlog"
	"edubag/services/exportlog/db"
)

type PlatformConfig struct {
	BaseUrl       string `json:"base_url"`
	AuthStatePath string `json:"auth_state_path"`
}

type Config struct {
	SaveDir     string              `json:"save_dir"`
	Albert      PlatformConfig      `json:"albert"`
	Brightspace PlatformConfig      `json:"brightspace"`
	Gradescope  PlatformConfig      `json:"gradescope"`
	ExportLog   configlibsql.Struct `json:"export_log"`
	Smtp        notify.SmtpConfig   `json:"smtp"`
	NotifyTo    []string            `json:"notify_to"`
}

func loadConfig() Config {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil && !os.IsNotExist(err) {
		fatal("failed to read config", err)
	}
	if cfg.SaveDir == "" {
		cfg.SaveDir = "."
	}
	return cfg
}

func albertClient(cfg Config) *albert.Client {
	client, err := albert.NewClient(albert.ClientOptions{
		BaseUrl:       cfg.Albert.BaseUrl,
		AuthStatePath: cfg.Albert.AuthStatePath,
	})
	if err != nil {
		fatal("failed to initialize albert client", err)
	}
	return client
}

func brightspaceClient(cfg Config) *brightspace.Client {
	client, err := brightspace.NewClient(brightspace.ClientOptions{
		BaseUrl:       cfg.Brightspace.BaseUrl,
		AuthStatePath: cfg.Brightspace.AuthStatePath,
	})
	if err != nil {
		fatal("failed to initialize brightspace client", err)
	}
	return client
}

func gradescopeClient(cfg Config) *gradescope.Client {
	client, err := gradescope.NewClient(gradescope.ClientOptions{
		BaseUrl:       cfg.Gradescope.BaseUrl,
		AuthStatePath: cfg.Gradescope.AuthStatePath,
	})
	if err != nil {
		fatal("failed to initialize gradescope client", err)
	}
	return client
}

func openExportLog(cfg Config) (exportlog.Service, func()) {
	if cfg.ExportLog.File == "" && cfg.ExportLog.Url == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			fatal("failed to locate the user cache directory", err)
		}
		cfg.ExportLog.File = filepath.Join(cacheDir, "edubag", "exportlog.db")
	}
	database, err := cfg.ExportLog.OpenDB()
	if err != nil {
		fatal("failed to open the export log", err)
	}
	_, err = database.Exec(db.Schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		fatal("failed to initialize the export log schema", err)
	}
	return exportlog.NewService(database), func() {
		database.Close()
	}
}

// recordRun logs an export attempt regardless of its outcome, failed
// runs show up in `edubag history` with their error message.
func recordRun(ctx context.Context, cfg Config, params exportlog.RecordParams) {
	service, cleanup := openExportLog(cfg)
	defer cleanup()

	_, err := service.Record(ctx, params)
	if err != nil {
		slog.Error("failed to record the export run", "err", err)
	}
}
