package main

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"web2json/internal/config"
	"web2json/internal/configstore"
	"web2json/internal/i18n"
	"web2json/internal/logger"
	"web2json/internal/models"
	"web2json/internal/tasks"
	"web2json/internal/transport"
	"web2json/internal/xpath"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	out    io.Writer
	tasks  *tasks.Client
	xpath  *xpath.Client
	config *configstore.Store
	tr     *i18n.Provider
}

func newRootCmd() *cobra.Command {
	a := &app{}

	var (
		configPath string
		apiRoot    string
		logLevel   string
	)

	root := &cobra.Command{
		Use:           "web2json",
		Short:         "Drive the web2json parser generation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if apiRoot != "" {
				cfg.Client.APIRoot = apiRoot
			}
			if logLevel != "" {
				cfg.Client.LogLevel = logLevel
			}
			a.out = cmd.OutOrStdout()
			return a.init(cfg)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", envOr("CONFIG_PATH", config.DefaultPath), "env file to load")
	root.PersistentFlags().StringVar(&apiRoot, "api-root", "", "service API root, overrides API_ROOT")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error, overrides LOG_LEVEL")

	root.AddCommand(
		newGenerateCmd(a),
		newStatusCmd(a),
		newCancelCmd(a),
		newDownloadCmd(a),
		newResultsCmd(a),
		newSchemaCmd(a),
		newXPathCmd(a),
		newConfigCmd(a),
		newLocaleCmd(a),
	)

	return root
}

func (a *app) init(cfg *config.Config) error {
	a.cfg = cfg
	a.log = logger.NewLogger(cfg.Client.LogFormat, cfg.Client.LogLevel)

	doer := transport.New(transport.Options{
		APIRoot:   cfg.Client.APIRoot,
		Timeout:   cfg.Client.RequestTimeout,
		UserAgent: cfg.Client.UserAgent,
	}, a.log)

	a.tasks = tasks.NewClient(doer, cfg.Client.PollInterval, a.log)
	a.xpath = xpath.New(doer, a.log)
	a.config = configstore.New(doer, a.log)

	tr, err := i18n.New(i18n.NewFileStore(cfg.Client.LocaleFile), a.log)
	if err != nil {
		return err
	}
	a.tr = tr

	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (a *app) t(key string, params i18n.Params) string {
	return a.tr.T(key, params)
}

func since(start time.Time) string {
	return time.Since(start).Round(100 * time.Millisecond).String()
}

// phase is the translated phase label, or the raw phase when no label exists.
func (a *app) phase(p models.Phase) string {
	key := "parserTab.phases." + string(p)
	if label := a.t(key, nil); label != key {
		return label
	}
	return string(p)
}
