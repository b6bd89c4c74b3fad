package relationship

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/howjerry/efreverse/internal/schema"
)

// Analyzer classifies table pairs. It holds no per-run state and is safe for
// concurrent use as long as the tables it is given are not mutated.
type Analyzer struct {
	logger    *zap.Logger
	tolerance int
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithPayloadTolerance sets how many non-key columns a junction table may carry.
func WithPayloadTolerance(n int) Option {
	return func(a *Analyzer) {
		if n >= 0 {
			a.tolerance = n
		}
	}
}

// New creates an Analyzer. A nil logger discards diagnostics.
func New(logger *zap.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Analyzer{
		logger:    logger.Named("relationship"),
		tolerance: schema.DefaultPayloadTolerance,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PayloadTolerance returns the junction payload tolerance in use.
func (a *Analyzer) PayloadTolerance() int {
	return a.tolerance
}

// IsJunction reports whether t is a many-to-many junction under this analyzer's tolerance.
func (a *Analyzer) IsJunction(t *schema.Table) bool {
	// The column-count pre-filter only holds for single-column keys within its slack.
	if a.tolerance <= schema.JunctionColumnSlack && !hasCompositeKey(t) && !schema.IsJunctionTable(t) {
		return false
	}
	return schema.IsManyToManyWithin(t, a.tolerance)
}

// AnalyzeRelationship classifies how source relates to target through the
// foreign keys declared on source. A pair without such keys yields Unknown.
func (a *Analyzer) AnalyzeRelationship(source, target *schema.Table) (rel Relationship, err error) {
	if err := validate(source, target); err != nil {
		return Relationship{}, err
	}

	a.logger.Debug("Analyzing relationship",
		zap.String("source", source.Name),
		zap.String("target", target.Name))

	defer func() {
		if r := recover(); r != nil {
			rel = Relationship{}
			err = a.fail(source.Name, target.Name, fmt.Errorf("unexpected fault: %v", r))
		}
	}()

	return a.analyze(source, target)
}

func (a *Analyzer) analyze(source, target *schema.Table) (Relationship, error) {
	fks := referencing(source, target.Name)
	if len(fks) == 0 {
		return Relationship{Kind: Unknown, SourceTable: source.Name, TargetTable: target.Name}, nil
	}

	// Only the keys under analysis are checked; faults in unrelated keys belong to other pairs.
	if err := source.ValidateColumns(); err != nil {
		return Relationship{}, a.fail(source.Name, target.Name, err)
	}
	for _, fk := range fks {
		if err := source.ValidateForeignKey(fk); err != nil {
			return Relationship{}, a.fail(source.Name, target.Name, err)
		}
	}

	if rel, ok := a.manyToMany(source, target); ok {
		return rel, nil
	}

	if len(fks) == 1 && isOneToOne(source, target, fks[0]) {
		return Relationship{
			Kind:        OneToOne,
			SourceTable: source.Name,
			TargetTable: target.Name,
			ForeignKeys: foreignKeyInfos(fks),
		}, nil
	}

	// The declaring table is the dependent, many side.
	return Relationship{
		Kind:        OneToMany,
		SourceTable: target.Name,
		TargetTable: source.Name,
		ForeignKeys: foreignKeyInfos(fks),
	}, nil
}

func (a *Analyzer) manyToMany(source, target *schema.Table) (Relationship, bool) {
	if !a.IsJunction(source) {
		return Relationship{}, false
	}

	sides := schema.JunctionSides(source)
	if len(sides) < 2 {
		return Relationship{}, false
	}
	if !sameTable(sides[0].ReferencedTable, target.Name) && !sameTable(sides[1].ReferencedTable, target.Name) {
		return Relationship{}, false
	}

	return Relationship{
		Kind:        ManyToMany,
		SourceTable: sides[0].ReferencedTable,
		TargetTable: sides[1].ReferencedTable,
		ForeignKeys: foreignKeyInfos(sides),
		Junction: &JunctionTableInfo{
			TableName:        source.Name,
			SourceKeyColumns: sides[0].LocalColumns(),
			TargetKeyColumns: sides[1].LocalColumns(),
			PayloadColumns:   schema.PayloadColumns(source),
		},
	}, true
}

// AnalyzeAll classifies every pair linked by an enabled foreign key within tables.
// Relationships already recorded in memo are skipped; a nil memo starts a fresh one.
// A failing pair is reported in the returned error and does not stop the others.
func (a *Analyzer) AnalyzeAll(tables []schema.Table, memo *PairMemo) ([]Relationship, error) {
	if memo == nil {
		memo = NewPairMemo()
	}

	s := &schema.Schema{Tables: tables}

	var (
		out  []Relationship
		errs error
	)
	for i := range tables {
		source := &tables[i]
		visited := make(map[string]bool)

		for _, fk := range source.ForeignKeys {
			if !fk.Enabled || visited[strings.ToLower(fk.ReferencedTable)] {
				continue
			}
			visited[strings.ToLower(fk.ReferencedTable)] = true

			target, ok := s.Table(fk.ReferencedTable)
			if !ok {
				a.logger.Warn("Referenced table not loaded",
					zap.String("table", source.Name),
					zap.String("foreign_key", fk.Name),
					zap.String("referenced_table", fk.ReferencedTable))
				continue
			}

			rel, err := a.AnalyzeRelationship(source, target)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if rel.Kind == Unknown || memo.Seen(rel) {
				continue
			}
			out = append(out, rel)
		}
	}
	return out, errs
}

func (a *Analyzer) fail(source, target string, cause error) error {
	a.logger.Error("Relationship analysis failed",
		zap.String("source", source),
		zap.String("target", target),
		zap.Error(cause))
	return &AnalysisError{Source: source, Target: target, Err: cause}
}

func validate(source, target *schema.Table) error {
	switch {
	case source == nil:
		return fmt.Errorf("%w: source table is nil", ErrInvalidArgument)
	case target == nil:
		return fmt.Errorf("%w: target table is nil", ErrInvalidArgument)
	case source.Name == "":
		return fmt.Errorf("%w: source table name is empty", ErrInvalidArgument)
	case target.Name == "":
		return fmt.Errorf("%w: target table name is empty (source %s)", ErrInvalidArgument, source.Name)
	}
	return nil
}

// referencing returns the enabled foreign keys of source that point at target.
func referencing(source *schema.Table, target string) []schema.ForeignKey {
	var fks []schema.ForeignKey
	for _, fk := range source.ForeignKeys {
		if fk.Enabled && sameTable(fk.ReferencedTable, target) {
			fks = append(fks, fk)
		}
	}
	return fks
}

// isOneToOne applies the unique-index rule, then the shared-primary-key rule: every
// local column is in the source primary key and the key maps column by column onto
// the whole target primary key. Keys with an unmapped referenced column fail both rules.
func isOneToOne(source, target *schema.Table, fk schema.ForeignKey) bool {
	for _, p := range fk.ColumnPairs {
		if p.ReferencedColumn == "" {
			return false
		}
	}

	if !fk.IsComposite() && schema.IsOneToOne(source, fk.ColumnPairs[0].Column) {
		return true
	}

	targetPK := schema.PrimaryKeyColumns(target)
	if len(targetPK) == 0 || len(fk.ColumnPairs) != len(targetPK) {
		return false
	}
	for _, p := range fk.ColumnPairs {
		if !schema.IsPrimaryKeyColumn(source, p.Column) || !schema.IsPrimaryKeyColumn(target, p.ReferencedColumn) {
			return false
		}
	}
	return true
}

func hasCompositeKey(t *schema.Table) bool {
	for _, fk := range t.ForeignKeys {
		if fk.IsComposite() {
			return true
		}
	}
	return false
}

func sameTable(a, b string) bool {
	return strings.EqualFold(a, b)
}
