package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cadbridge/internal/bridge"
	"cadbridge/internal/config"
	"cadbridge/internal/document"
	"cadbridge/internal/domain"
	"cadbridge/internal/executor"
	"cadbridge/internal/handler"
	"cadbridge/internal/history"
	"cadbridge/internal/metrics"
	"cadbridge/internal/registry"
	"cadbridge/internal/script"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "cadbridge",
		Short:   "cadbridge: CAD tool-call compiler and remote execution bridge",
		Long:    "cadbridge translates CAD tool calls into runnable scripts and relays them to a live in-application executor over a socket.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.cadbridge/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(compileCmd())
	root.AddCommand(execCmd())
	root.AddCommand(executorCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			workspace := config.ExpandPath(cfg.General.Workspace)
			if err := os.MkdirAll(workspace, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "workspace", workspace)
			return nil
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config file, falling back to defaults when it
// does not exist yet.
func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		return config.Defaults()
	}
	return cfg
}

// setupLogger rebuilds the global logger from config: level plus an
// optional log file.
func setupLogger(cfg *config.Config) error {
	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var w io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
			return fmt.Errorf("cannot create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("cannot open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return nil
}

// loadCalls reads a tool-call sequence from a JSON file, or stdin when
// the path is "-".
func loadCalls(path string) ([]domain.ToolCall, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read tool calls: %w", err)
	}
	var calls []domain.ToolCall
	if err := json.Unmarshal(data, &calls); err != nil {
		return nil, fmt.Errorf("cannot parse tool calls: %w", err)
	}
	if len(calls) == 0 {
		return nil, fmt.Errorf("tool call sequence is empty")
	}
	return calls, nil
}

// newLibrary builds the template library with user overlays applied.
func newLibrary(cfg *config.Config) (*script.Library, error) {
	reg := registry.NewDefault(logger)
	lib := script.NewLibrary(reg, logger)
	if cfg.Script.TemplateDir != "" {
		if err := lib.LoadFromDirectory(cfg.Script.TemplateDir, logger); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

func compileCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "compile [calls.json]",
		Short: "Compile a tool-call sequence into a runnable script",
		Long:  "Reads a JSON array of tool calls and emits a self-contained script. Use '-' to read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if err := setupLogger(cfg); err != nil {
				return err
			}

			calls, err := loadCalls(args[0])
			if err != nil {
				return err
			}

			lib, err := newLibrary(cfg)
			if err != nil {
				return err
			}

			compiled, err := lib.Compile(calls)
			if err != nil {
				return err
			}
			metrics.ScriptsCompiled.Inc()

			if output == "-" {
				fmt.Print(compiled.Source)
				return nil
			}

			path := output
			if path == "" {
				if err := os.MkdirAll(cfg.Script.OutputDir, 0o755); err != nil {
					return err
				}
				path = filepath.Join(cfg.Script.OutputDir,
					fmt.Sprintf("cad_%s.py", time.Now().Format("20060102_150405")))
			}
			if err := os.WriteFile(path, []byte(compiled.Source), 0o644); err != nil {
				return fmt.Errorf("cannot write script: %w", err)
			}
			logger.Info("script compiled", "path", path, "calls", compiled.Calls, "bytes", len(compiled.Source))

			if cfg.History.Enabled {
				store, err := history.NewStore(cfg.History.DBPath, logger)
				if err != nil {
					logger.Warn("cannot open history store", "err", err)
					return nil
				}
				defer store.Close()
				if err := store.RecordScript(cmd.Context(), history.Script{
					Path: path, Calls: compiled.Calls, Bytes: len(compiled.Source),
				}); err != nil {
					logger.Warn("cannot record script history", "err", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path ('-' for stdout, default: timestamped file in script.outputDir)")
	return cmd
}

func execCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec [calls.json]",
		Short: "Execute a tool-call sequence on the live executor",
		Long:  "Reads a JSON array of tool calls and sends them in order over the bridge. Use '-' to read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if err := setupLogger(cfg); err != nil {
				return err
			}

			calls, err := loadCalls(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, err := bridge.Dial(bridge.Config{
				Host:        cfg.Bridge.Host,
				Port:        cfg.Bridge.Port,
				DialTimeout: time.Duration(cfg.Bridge.DialTimeoutSeconds) * time.Second,
				Registry:    registry.NewDefault(logger),
				Logger:      logger,
			})
			if err != nil {
				return err
			}
			defer b.Close()

			timeout := time.Duration(cfg.Bridge.RequestTimeoutSeconds) * time.Second
			for i, call := range calls {
				result, err := b.Send(ctx, call, timeout)
				if err != nil {
					return fmt.Errorf("call %d (%s): %w", i+1, call.Name, err)
				}
				data, _ := json.Marshal(result)
				fmt.Printf("%s: %s\n", call.Name, data)
			}
			return nil
		},
	}
}

func executorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "executor",
		Short: "Run the command executor server",
		Long:  "Listens for one bridge client and executes tool calls against the active document. Press Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if err := setupLogger(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			docs := document.NewStore()
			docs.Open(cfg.Executor.DocumentName)

			var recorder executor.Recorder
			if cfg.History.Enabled {
				store, err := history.NewStore(cfg.History.DBPath, logger)
				if err != nil {
					return fmt.Errorf("history store: %w", err)
				}
				defer store.Close()
				recorder = store

				retention := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
				if n, err := store.Prune(ctx, retention); err != nil {
					logger.Warn("history prune failed", "err", err)
				} else if n > 0 {
					logger.Info("pruned history", "records", n)
				}
			}

			if cfg.Metrics.Enabled {
				mux := http.NewServeMux()
				mux.HandleFunc("/metrics", metrics.Collector.Handler())
				srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
				go func() {
					logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Listen)
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("metrics server error", "err", err)
					}
				}()
				defer srv.Close()
			}

			exec := executor.New(executor.Config{
				Host:      cfg.Executor.Host,
				Port:      cfg.Executor.Port,
				Registry:  registry.NewDefault(logger),
				Handlers:  handler.NewDefault(),
				Documents: docs,
				History:   recorder,
				Logger:    logger,
			})
			return exec.Serve(ctx)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show executor status and active scene",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if err := setupLogger(cfg); err != nil {
				return err
			}

			b, err := bridge.Dial(bridge.Config{
				Host:        cfg.Bridge.Host,
				Port:        cfg.Bridge.Port,
				DialTimeout: time.Duration(cfg.Bridge.DialTimeoutSeconds) * time.Second,
				Registry:    registry.NewDefault(logger),
				Logger:      logger,
			})
			if err != nil {
				logger.Info("executor", "reachable", false, "err", err)
				return nil
			}
			defer b.Close()

			timeout := time.Duration(cfg.Bridge.RequestTimeoutSeconds) * time.Second
			scene, err := b.Send(cmd.Context(), domain.ToolCall{Name: "get_scene_info"}, timeout)
			if err != nil {
				logger.Info("executor", "reachable", true, "scene", false, "err", err)
				return nil
			}
			data, _ := json.MarshalIndent(scene, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	var scripts bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent commands and compiled scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if err := setupLogger(cfg); err != nil {
				return err
			}
			store, err := history.NewStore(cfg.History.DBPath, logger)
			if err != nil {
				return fmt.Errorf("history store: %w", err)
			}
			defer store.Close()

			if scripts {
				recs, err := store.RecentScripts(cmd.Context(), limit)
				if err != nil {
					return err
				}
				for _, r := range recs {
					fmt.Printf("%s  %s  calls=%d bytes=%d\n",
						r.CreatedAt.Format(time.RFC3339), r.Path, r.Calls, r.Bytes)
				}
				return nil
			}

			recs, err := store.RecentCommands(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range recs {
				status := "ok"
				if r.ErrCode != "" {
					status = r.ErrCode
				}
				fmt.Printf("%s  %-16s %-18s %dms  %s\n",
					r.CreatedAt.Format(time.RFC3339), r.Tool, status, r.LatencyMS, r.Params)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	cmd.Flags().BoolVar(&scripts, "scripts", false, "show compiled scripts instead of commands")
	return cmd
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List available tools and their schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.NewDefault(logger)
			data, err := json.MarshalIndent(reg.Definitions(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
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
		Short: "Get a config value (e.g. bridge.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
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
		Short: "Set a config value (e.g. bridge.port 9876)",
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
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(cfg, "", "  ")
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
