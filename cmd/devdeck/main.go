package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"devdeck/internal/app"
	"devdeck/internal/tui"
)

const version = "0.3.0"

// modelChoices is the picker list for the settings panel. The config/env
// model is prepended when it is not already present.
var modelChoices = []string{
	"qwen2.5-coder:7b",
	"llama3.1:8b",
	"deepseek-coder-v2:16b",
	"mistral:7b",
}

func main() {
	var configPath string

	root := &cobra.Command{
		Use:     "devdeck",
		Short:   "devdeck - terminal client for an AI coding assistant",
		Long:    "devdeck is a terminal client for AI-assisted coding: chat with a model, attach code and files as context, and browse past sessions.\n\nRun without arguments to open the TUI.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := configPath
			if cfgPath == "" {
				cfgPath = app.DefaultConfigPath()
			}
			cfg, err := app.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			store, logger, cleanup, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			theme, _ := app.ParseTheme(cfg.Theme)
			state := app.NewState(theme, cfg.Model)

			choices := modelChoices
			if !containsString(choices, cfg.Model) {
				choices = append([]string{cfg.Model}, choices...)
			}

			p := tea.NewProgram(tui.New(state, store, app.NewMockAssistant(), logger, cfg, cfgPath, choices), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: user config dir)")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List saved sessions",
		Long:  "List saved sessions without opening the TUI.\n\nExamples:\n  - devdeck history\n  - devdeck history --search pprof\n  - devdeck history --tag debugging",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, _, cleanup, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			search, _ := cmd.Flags().GetString("search")
			tag, _ := cmd.Flags().GetString("tag")
			limit, _ := cmd.Flags().GetInt("limit")
			if !cmd.Flags().Changed("limit") {
				limit = cfg.HistoryLimit
			}

			var rows []app.SessionSummary
			switch {
			case search != "":
				rows, err = store.Search(search)
			case tag != "":
				rows, err = store.FilterByTag(tag)
			default:
				rows, err = store.List(limit)
			}
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("no sessions")
				return nil
			}
			for _, row := range rows {
				title := row.Title
				if title == "" {
					title = "(untitled)"
				}
				line := fmt.Sprintf("%s  %-50s %3d msgs  %s", row.UpdatedAt.Format("2006-01-02 15:04"), title, row.MessageCount, row.Model)
				if len(row.Tags) > 0 {
					line += "  #" + strings.Join(row.Tags, " #")
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	historyCmd.Flags().String("search", "", "search titles, tags and message content")
	historyCmd.Flags().String("tag", "", "filter by tag")
	historyCmd.Flags().Int("limit", 0, "maximum sessions to list (default: config history_limit)")
	root.AddCommand(historyCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (app.Config, error) {
	if path == "" {
		path = app.DefaultConfigPath()
	}
	return app.LoadConfig(path)
}

// openStore opens the sqlite store under the storage root, falling back to
// the JSON file store, and sets up the file logger.
func openStore(cfg app.Config) (app.SessionStore, *app.Logger, func(), error) {
	root := cfg.StorageRoot
	if root == "" {
		root = app.DefaultStorageRoot()
	}

	var store app.SessionStore
	if st, err := app.NewSQLiteSessionStore(root); err == nil {
		store = st
	} else {
		store = app.NewFileSessionStore(root)
	}

	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join(root, "devdeck.log")
	}
	var logger *app.Logger
	cleanup := func() { _ = store.Close() }
	if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		logger = app.NewLogger(f)
		cleanup = func() {
			_ = store.Close()
			_ = f.Close()
		}
	} else {
		logger = app.NewLogger(nil)
	}
	return store, logger, cleanup, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
