package main

import (
	"shiwake/internal/config"
	"shiwake/internal/log"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	debug     bool
	logFormat string

	store *config.FileStore
	cfg   *config.Config
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shiwake",
		Short: "Sort files into category folders by extension",
		Long: `shiwake moves files from an input folder into category folders
(Images, Documents, ...) under a destination root, based on an ordered list
of extension rules.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.NewFileStore(cfgFile)
			if err != nil {
				return err
			}
			loaded, err := s.Load()
			if err != nil {
				return err
			}
			store, cfg = s, loaded
			configureLogging(cmd)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/shiwake/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")

	rootCmd.AddCommand(NewOrganizeCmd())
	rootCmd.AddCommand(NewRulesCmd())
	rootCmd.AddCommand(NewFoldersCmd())
	rootCmd.AddCommand(NewWatchCmd())
	rootCmd.AddCommand(NewHistoryCmd())
	rootCmd.AddCommand(NewPermissionsCmd())

	return rootCmd
}

func configureLogging(cmd *cobra.Command) {
	format := cfg.Logging.Format
	if logFormat != "" {
		format = logFormat
	}
	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	log.Configure(
		log.WithOutput(cmd.ErrOrStderr()),
		log.WithFormat(format),
		log.WithLevel(level),
	)
	log.SetDebug(level == "debug")
}
