// Package generator runs the reverse engineering pipeline: read the schema,
// classify relationships, plan entities and write the generated source.
package generator

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/howjerry/efreverse/internal/config"
	"github.com/howjerry/efreverse/internal/db"
	"github.com/howjerry/efreverse/internal/emit"
	"github.com/howjerry/efreverse/internal/formatter"
	"github.com/howjerry/efreverse/internal/logging"
	"github.com/howjerry/efreverse/internal/naming"
	"github.com/howjerry/efreverse/internal/relationship"
	"github.com/howjerry/efreverse/internal/schema"
)

// ReaderFunc opens a schema reader. db.Open is the default.
type ReaderFunc func(ctx context.Context, connString, provider, schemaName string, logger *zap.Logger) (db.SchemaReader, error)

// Service generates the object model described by its settings
type Service struct {
	settings config.Settings
	logger   *zap.Logger
	open     ReaderFunc
}

// Option configures a Service
type Option func(*Service)

// WithReader replaces the schema reader factory.
func WithReader(open ReaderFunc) Option {
	return func(s *Service) {
		if open != nil {
			s.open = open
		}
	}
}

// New creates a service. The settings are expected to be validated.
func New(settings config.Settings, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		settings: settings,
		logger:   logger.Named("generator"),
		open:     db.Open,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result summarizes a generation run
type Result struct {
	Tables   int
	Entities int
	Files    int
	Paths    []string
	Warnings []emit.Warning
}

// Analysis holds the loaded tables, their relationships and the entity plans
type Analysis struct {
	Tables        []schema.Table
	Relationships []relationship.Relationship
	Plans         []*emit.EntityPlan
}

// Report converts the analysis for the report formatters.
func (a *Analysis) Report() *formatter.Report {
	return &formatter.Report{
		Tables:        a.Tables,
		Relationships: a.Relationships,
		Plans:         a.Plans,
	}
}

// Warnings returns the planning warnings of every table.
func (a *Analysis) Warnings() []emit.Warning {
	return a.Report().Warnings()
}

// Analyze reads the schema and plans every table without writing anything.
// Planning failures of single tables are returned joined together with the
// analysis; a read failure returns no analysis.
func (s *Service) Analyze(ctx context.Context) (*Analysis, error) {
	tables, err := s.readTables(ctx)
	if err != nil {
		return nil, err
	}

	analyzer := relationship.New(s.logger, relationship.WithPayloadTolerance(s.settings.PayloadTolerance))

	rels, relErr := analyzer.AnalyzeAll(tables, relationship.NewPairMemo())
	if relErr != nil {
		for _, e := range multierr.Errors(relErr) {
			s.logger.Debug("Relationship not classified", zap.Error(e))
		}
	}

	planner := emit.NewPlanner(tables, analyzer, s.namer(), s.logger)
	plans, planErr := planner.PlanAll(ctx)

	return &Analysis{Tables: tables, Relationships: rels, Plans: plans}, planErr
}

// Run generates the source files. Tables that fail to plan are logged and
// skipped; the remaining tables are still written and the joined error is returned.
func (s *Service) Run(ctx context.Context) (Result, error) {
	analysis, err := s.Analyze(ctx)
	if analysis == nil {
		return Result{}, err
	}
	planErr := err
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	res := Result{Tables: len(analysis.Tables)}
	for _, p := range analysis.Plans {
		if p.Err != nil {
			s.logger.Error("Skipping table", zap.String("table", p.Table.Name), zap.Error(p.Err))
			continue
		}
		res.Warnings = append(res.Warnings, p.Warnings...)
		if !p.Elided {
			res.Entities++
		} else {
			s.logger.Debug("Junction table mapped as many-to-many", zap.String("table", p.Table.Name))
		}
	}

	out := formatter.NewCodeFormatter(s.settings.OutputDirectory, s.settings.GenerateSeparateFiles, FormatterOptions(s.settings))
	paths, err := out.Format(analysis.Plans)
	res.Paths = paths
	res.Files = len(paths)
	if err != nil {
		return res, multierr.Append(planErr, fmt.Errorf("failed to write generated code: %w", err))
	}

	s.logger.Info("Generated code",
		zap.Int("tables", res.Tables),
		zap.Int("entities", res.Entities),
		zap.Int("files", res.Files),
		zap.String("output", s.settings.OutputDirectory))
	return res, planErr
}

func (s *Service) readTables(ctx context.Context) ([]schema.Table, error) {
	s.logger.Info("Reading schema",
		zap.String("provider", s.settings.Provider),
		zap.String("connection", logging.SanitizeConnectionString(s.settings.ConnectionString)))

	reader, err := s.open(ctx, s.settings.ConnectionString, s.settings.Provider, s.settings.Schema, s.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.logger.Warn("Failed to close database connection", zap.Error(err))
		}
	}()

	tables, err := reader.ReadTables(ctx, s.settings.Tables)
	if err != nil {
		return nil, err
	}

	sc := &schema.Schema{Tables: tables}
	sc.Exclude(s.settings.ExcludeTables)
	s.logger.Info("Loaded tables", zap.Int("count", len(sc.Tables)))
	return sc.Tables, nil
}

func (s *Service) namer() naming.Namer {
	return naming.Namer{
		PascalCase:          s.settings.UsePascalCase,
		Pluralize:           s.settings.Pluralize,
		SingularizeEntities: s.settings.SingularizeEntities,
	}
}

// FormatterOptions maps settings to rendering options.
func FormatterOptions(s config.Settings) formatter.Options {
	return formatter.Options{
		Namespace:          s.Namespace,
		DbContextName:      s.DbContextName,
		UseDataAnnotations: s.UseDataAnnotations,
		IncludeComments:    s.IncludeComments,
		Pluralize:          s.Pluralize,
		Elements: formatter.Elements{
			Entities:       s.HasElement(config.ElementPOCO),
			Configurations: s.HasElement(config.ElementConfiguration),
			DbContext:      s.HasElement(config.ElementDbContext),
		},
	}
}
