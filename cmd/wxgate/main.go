package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"wxgate/internal/bus"
	"wxgate/internal/channel/telegram"
	"wxgate/internal/channel/wechat"
	"wxgate/internal/config"
	"wxgate/internal/domain"
	"wxgate/internal/responder"
	"wxgate/internal/runtime"
	"wxgate/internal/session"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	_ = godotenv.Load()
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "wxgate",
		Short: "wxgate: channel gateway for the json_bot WeChat bridge",
		Long:  "wxgate hosts channel plugins (WeChat via json_bot, Telegram) and routes their messages through a shared dispatch pipeline.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ~/.wxgate/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(wechatCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if err := os.MkdirAll(config.DefaultConfigDir(), 0o755); err != nil {
				return err
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start the gateway (webhook server + channels + dispatch)",
		Long:  "Starts the HTTP server, all enabled channels and the dispatch pipeline. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

// buildRuntime loads config and wires the runtime's collaborators. The
// returned cleanup closes the session store and bus.
func buildRuntime(cfgPath string) (*runtime.Runtime, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.General.LogLevel)}))

	store, err := session.NewSQLiteStore(cfg.Session.DBPath, logger.With("component", "sessions"))
	if err != nil {
		return nil, nil, fmt.Errorf("session store: %w", err)
	}

	messageBus := bus.New(cfg.General.QueueSize, logger.With("component", "bus"))

	var resp domain.Responder
	if cfg.General.AgentURL != "" {
		resp = responder.NewHTTP(responder.HTTPConfig{
			URL:    cfg.General.AgentURL,
			Logger: logger.With("component", "responder"),
		})
	} else {
		logger.Warn("no agent URL configured, replies will echo inbound text")
		resp = responder.NewEcho()
	}

	rt, err := runtime.New(runtime.Options{
		Config:     cfg,
		ConfigPath: cfgPath,
		Logger:     logger,
		Bus:        messageBus,
		Sessions:   store,
		Responder:  resp,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		messageBus.Close()
		store.Close()
	}
	return rt, cleanup, nil
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	rt, cleanup, err := buildRuntime(cfgPath)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wechatCh, err := wechat.Register(rt)
	if err != nil {
		return fmt.Errorf("register wechat channel: %w", err)
	}
	if st := wechatCh.OnboardStatus(); !st.Configured {
		logger.Warn("wechat channel not configured, run: wxgate wechat configure --base-url <url>")
	} else if !st.Enabled {
		logger.Info("wechat channel disabled")
	}

	cfg := rt.Config()
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		tgCh := telegram.New(telegram.Config{
			Token:     cfg.Channels.Telegram.Token,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			ParseMode: cfg.Channels.Telegram.ParseMode,
			Logger:    logger.With("channel", "telegram"),
		})
		if err := rt.RegisterChannel(tgCh); err != nil {
			return err
		}
		logger.Info("telegram channel enabled")
	}

	go rt.Run(ctx)
	rt.StartChannels(ctx)

	logger.Info("gateway started", "version", version)

	serveErr := rt.Serve(ctx)

	// Drain in-flight background work before the deferred cleanup closes
	// the store.
	done := make(chan struct{})
	go func() {
		rt.Tasks().Close()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out, forcing exit")
	}

	return serveErr
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show gateway status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				return nil
			}
			logger.Info("config", "path", cfgPath, "loaded", true)

			wc := wechat.ResolveAccount(cfg, wechat.DefaultAccountID)
			logger.Info("wechat channel",
				"configured", wc.BaseURL() != "",
				"enabled", wc.Enabled,
			)
			logger.Info("telegram channel", "enabled", cfg.Channels.Telegram.Enabled)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. channels.wechat.jsonBotBaseUrl)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. server.port 8090)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func wechatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wechat",
		Short: "Manage the WeChat (json_bot) channel",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show onboarding status",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := buildRuntime(resolveConfigPath())
			if err != nil {
				return err
			}
			defer cleanup()
			ch, err := wechat.New(rt)
			if err != nil {
				return err
			}
			st := ch.OnboardStatus()
			logger.Info("wechat channel",
				"configured", st.Configured,
				"enabled", st.Enabled,
				"name", st.Name,
				"baseUrl", st.BaseURL,
				"tokenSet", st.TokenSet,
			)
			return nil
		},
	})

	var baseURL, token, name string
	configureCmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure the json_bot gateway endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := buildRuntime(resolveConfigPath())
			if err != nil {
				return err
			}
			defer cleanup()
			ch, err := wechat.New(rt)
			if err != nil {
				return err
			}
			if err := ch.Configure(baseURL, token, name); err != nil {
				return err
			}
			logger.Info("wechat channel configured", "baseUrl", ch.OnboardStatus().BaseURL)
			return nil
		},
	}
	configureCmd.Flags().StringVar(&baseURL, "base-url", "", "json_bot gateway base URL (required)")
	configureCmd.Flags().StringVar(&token, "token", "", "inbound webhook token (optional)")
	configureCmd.Flags().StringVar(&name, "name", "", "display name for the account (optional)")
	_ = configureCmd.MarkFlagRequired("base-url")
	cmd.AddCommand(configureCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Disable the channel without clearing its configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := buildRuntime(resolveConfigPath())
			if err != nil {
				return err
			}
			defer cleanup()
			ch, err := wechat.New(rt)
			if err != nil {
				return err
			}
			if err := ch.Disable(); err != nil {
				return err
			}
			logger.Info("wechat channel disabled")
			return nil
		},
	})

	return cmd
}
