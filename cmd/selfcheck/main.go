package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/selfcheck/internal/handler"
	appI18n "github.com/pavelanni/selfcheck/internal/i18n"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "selfcheck",
		Short:        "Self-graded assessments with rubric marking and deadlines",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, statusCmd(), identityCmd(), answerCmd(), gradeCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `selfcheck --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addCommonFlags registers the catalog, storage, grading and logging flags
// shared by every command.
func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("catalog", "c", "questions.json", "Question bank file or http(s) URL (JSON or YAML)")
	f.String("backend", "sqlite", "Storage backend (sqlite, redis, memory)")
	f.String("db", "selfcheck.db", "SQLite database path")
	f.String("redis-addr", "", "Redis address for the redis backend and sharing (host:port)")
	f.String("redis-prefix", "selfcheck:", "Key prefix in redis")
	f.Int("min-pct", 100, "Minimum percentage needed to export")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP self-check server",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /ru)")
	f.String("format", "pdf", "Export format (pdf, json)")
	f.Bool("share", false, "Share exports to the redis inbox before falling back to download")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("SELFCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("selfcheck")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/selfcheck")
	v.AddConfigPath("/etc/selfcheck")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	a, err := openApp(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer a.Close()

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	h := handler.New(a.cat, a.ctrl, a.exports, handler.Config{
		Format: v.GetString("format"),
		Share:  v.GetBool("share"),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(a.lang))

	if basePath != "" {
		r.Route(basePath, h.Routes)
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"app_id", a.cat.AppID,
		"version", a.cat.Version,
		"assessments", len(a.cat.Assessments),
		"backend", v.GetString("backend"),
		"lang", a.lang,
		"min_pct", v.GetInt("min-pct"),
		"format", v.GetString("format"),
		"share", v.GetBool("share"),
		"base_path", basePath,
	)
	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
