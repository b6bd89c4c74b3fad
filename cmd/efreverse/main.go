package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/howjerry/efreverse/internal/config"
	"github.com/howjerry/efreverse/internal/formatter"
	"github.com/howjerry/efreverse/internal/generator"
	"github.com/howjerry/efreverse/internal/logging"
)

const (
	formatMarkdown = "markdown"
	formatText     = "text"
)

type cliOptions struct {
	connection     string
	provider       string
	namespace      string
	output         string
	schemaName     string
	tables         string
	excludeTables  string
	configFile     string
	settingsFile   string
	logLevel       string
	timeout        time.Duration
	pluralize      bool
	dataAnnotation bool
	separateFiles  bool
	init           bool
	format         string
}

func newRootCmd(opts *cliOptions, stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "efreverse",
		Short: "Generate Entity Framework Core code from an existing database",
		Long: `efreverse reads tables, keys and indexes from SQL Server, PostgreSQL, MySQL or SQLite,
classifies their relationships and writes entity classes, IEntityTypeConfiguration
classes and a DbContext for Entity Framework Core.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts, stdout, stderr)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.connection, "connection", "c", "", "Database connection string or URL")
	pf.StringVarP(&opts.provider, "provider", "p", "", "Database provider: sqlserver, postgres, mysql or sqlite (default: inferred)")
	pf.StringVar(&opts.schemaName, "schema", "", "Database schema to read (default: dbo, public or the connected database)")
	pf.StringVarP(&opts.tables, "tables", "t", "", "Specific tables (comma-separated, optional)")
	pf.StringVar(&opts.excludeTables, "exclude-tables", "", "Tables to skip (comma-separated)")
	pf.StringVar(&opts.configFile, "config", config.DefaultConfigFile, "Custom configuration file")
	pf.StringVar(&opts.settingsFile, "settings", config.DefaultSettingsFile, "Application settings file with a code_generator section")
	pf.StringVar(&opts.logLevel, "log-level", "", "Console log level: debug, info, warn or error")
	pf.DurationVar(&opts.timeout, "timeout", 0, "Abort after this duration, e.g. 2m (default: no timeout)")
	pf.BoolVar(&opts.pluralize, "pluralize", true, "Pluralize collection navigations and DbSet names")

	f := rootCmd.Flags()
	f.StringVarP(&opts.namespace, "namespace", "n", "", "Root namespace of the generated code")
	f.StringVarP(&opts.output, "output", "o", "", "Output directory")
	f.BoolVar(&opts.dataAnnotation, "data-annotations", false, "Use data annotations on entity classes")
	f.BoolVar(&opts.separateFiles, "separate-files", true, "Write one file per class")
	f.BoolVar(&opts.init, "init", false, "Write default appsettings.yaml and efrev.yaml to the current directory and exit")

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print the tables and classified relationships without generating code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, stdout, stderr)
		},
	}
	analyzeCmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text or markdown")
	rootCmd.AddCommand(analyzeCmd)

	return rootCmd
}

func runGenerate(cmd *cobra.Command, opts *cliOptions, stdout, stderr io.Writer) error {
	if opts.init {
		written, err := config.WriteDefaults(".")
		if err != nil {
			return err
		}
		for _, path := range written {
			_, _ = fmt.Fprintf(stdout, "Created %s\n", path)
		}
		return nil
	}

	settings, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(settings, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, cancel := commandContext(opts.timeout)
	defer cancel()

	res, err := generator.New(*settings, logger).Run(ctx)
	if res.Files > 0 {
		_, _ = fmt.Fprintf(stdout, "Generated %d files for %d entities in %s\n", res.Files, res.Entities, settings.OutputDirectory)
	}
	if len(res.Warnings) > 0 {
		_, _ = fmt.Fprintf(stdout, "%d warnings logged\n", len(res.Warnings))
	}
	if err != nil {
		logger.Error("Generation failed", zap.Error(err))
		return err
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, opts *cliOptions, stdout, stderr io.Writer) error {
	if opts.format != formatText && opts.format != formatMarkdown {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'markdown')", opts.format)
	}

	settings, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(settings, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, cancel := commandContext(opts.timeout)
	defer cancel()

	analysis, err := generator.New(*settings, logger).Analyze(ctx)
	if analysis == nil {
		return err
	}

	report := analysis.Report()
	var formatErr error
	switch opts.format {
	case formatMarkdown:
		formatErr = formatter.NewMarkdownFormatter(stdout).Format(report)
	default:
		formatErr = formatter.NewTextFormatter(stdout).Format(report)
	}
	if formatErr != nil {
		return fmt.Errorf("failed to format output: %w", formatErr)
	}
	return err
}

// loadSettings layers the command line over the configuration files and
// environment, then validates the result.
func loadSettings(cmd *cobra.Command, opts *cliOptions) (*config.Settings, error) {
	flags := cmd.Flags()

	settings, err := config.Load(config.LoadOptions{
		SettingsFile:         opts.settingsFile,
		SettingsFileExplicit: flags.Changed("settings"),
		ConfigFile:           opts.configFile,
		ConfigFileExplicit:   flags.Changed("config"),
	})
	if err != nil {
		return nil, err
	}

	err = settings.Merge(config.Settings{
		ConnectionString: opts.connection,
		Provider:         opts.provider,
		Schema:           opts.schemaName,
		Namespace:        opts.namespace,
		OutputDirectory:  opts.output,
		Tables:           parseTableList(opts.tables),
		ExcludeTables:    parseTableList(opts.excludeTables),
		LogLevel:         opts.logLevel,
	})
	if err != nil {
		return nil, err
	}

	// Booleans are only applied when given, so false can override a file.
	if flags.Changed("pluralize") {
		settings.Pluralize = opts.pluralize
	}
	if flags.Changed("data-annotations") {
		settings.UseDataAnnotations = opts.dataAnnotation
	}
	if flags.Changed("separate-files") {
		settings.GenerateSeparateFiles = opts.separateFiles
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func newLogger(settings *config.Settings, stderr io.Writer) (*zap.Logger, func() error, error) {
	logger, closeLog, err := logging.New(logging.Options{
		Level:   settings.LogLevel,
		File:    settings.LogFile,
		Console: stderr,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Settings loaded",
		zap.String("provider", settings.Provider),
		zap.String("connection", logging.SanitizeConnectionString(settings.ConnectionString)),
		zap.String("namespace", settings.Namespace),
		zap.Strings("elements", settings.Elements))
	return logger, closeLog, nil
}

func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// parseTableList splits a comma-separated list, dropping blanks.
func parseTableList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var tables []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tables = append(tables, t)
		}
	}
	return tables
}

func main() {
	if err := newRootCmd(&cliOptions{}, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
