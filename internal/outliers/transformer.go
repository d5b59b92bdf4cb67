package outliers

import (
	"context"
	"fmt"
	"log/slog"

	"evalpanel/internal/panel"
)

// Method is the outlier treatment applied to a column
type Method string

const (
	MethodTrim      Method = "trim"
	MethodWinsorize Method = "winsorize"
)

// Spec declares the treatment of one column
type Spec struct {
	Column string  `yaml:"column" json:"column"`
	Method Method  `yaml:"method" json:"method"`
	Pct    float64 `yaml:"pct" json:"pct"`
	Side   Side    `yaml:"side" json:"side"`
}

// DefaultSpecs returns the reference treatment for a winsorization budget.
// Non-negative monetary columns are clipped at the top only; net flows, which
// can be legitimately negative, are clipped on both tails with half the budget
// per side.
func DefaultSpecs(winPct float64) []Spec {
	upper := func(col string, pct float64) Spec {
		return Spec{Column: col, Method: MethodWinsorize, Pct: pct, Side: SideUpper}
	}
	both := func(col string, pct float64) Spec {
		return Spec{Column: col, Method: MethodWinsorize, Pct: pct, Side: SideBoth}
	}
	return []Spec{
		upper("inflows", winPct),
		upper("outflows", winPct),
		both("netflows", winPct/2),
		upper("pos_netflows", winPct/2),
		upper("inflows_norm", winPct),
		upper("outflows_norm", winPct),
		both("netflows_norm", winPct/2),
		upper("txns_count", winPct),
		upper("txns_volume", winPct),
		upper("month_spend", winPct),
		upper("discret_spend", winPct),
		upper("month_income", winPct),
	}
}

// Standardization maps a source column to the column receiving its z-scores
type Standardization struct {
	Source string
	Target string
}

// DefaultStandardizations z-scores the entropy measures
func DefaultStandardizations() []Standardization {
	return []Standardization{
		{Source: "entropy_tag", Target: "entropy_tag_z"},
		{Source: "entropy_merchant", Target: "entropy_merchant_z"},
	}
}

// Report collects the bounds applied per column
type Report map[string]Result

// Transformer applies outlier control to a gathered panel
type Transformer struct {
	specs  []Spec
	zs     []Standardization
	logger *slog.Logger
}

// NewTransformer creates a transformer for the given column treatments
func NewTransformer(specs []Spec, zs []Standardization, logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{
		specs:  specs,
		zs:     zs,
		logger: logger.With(slog.String("component", "outliers")),
	}
}

// Apply treats every configured column in place over the full sample.
// Columns the panel does not carry are skipped.
func (t *Transformer) Apply(ctx context.Context, p *panel.Panel) (Report, error) {
	report := make(Report, len(t.specs))

	for _, spec := range t.specs {
		if !p.HasColumn(spec.Column) {
			t.logger.DebugContext(ctx, "column not in panel, skipping",
				slog.String("column", spec.Column))
			continue
		}
		values, err := p.Column(spec.Column)
		if err != nil {
			return nil, err
		}

		var out []float64
		var res Result
		switch spec.Method {
		case MethodTrim:
			out, res, err = Trim(values, spec.Pct, spec.Side)
		case MethodWinsorize:
			out, res, err = Winsorize(values, spec.Pct, spec.Side)
		default:
			err = fmt.Errorf("unknown method %q", spec.Method)
		}
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", spec.Column, err)
		}
		if err := p.SetColumn(spec.Column, out); err != nil {
			return nil, err
		}
		report[spec.Column] = res

		t.logger.InfoContext(ctx, "outlier control applied",
			slog.String("column", spec.Column),
			slog.String("method", string(spec.Method)),
			slog.String("side", string(spec.Side)),
			slog.Float64("pct", spec.Pct),
			slog.Float64("lower", res.Lower),
			slog.Float64("upper", res.Upper),
			slog.Int("changed", res.Changed))
	}

	for _, z := range t.zs {
		if !p.HasColumn(z.Source) {
			continue
		}
		values, err := p.Column(z.Source)
		if err != nil {
			return nil, err
		}
		if err := p.AddColumn(z.Target); err != nil {
			return nil, err
		}
		if err := p.SetColumn(z.Target, Standardize(values)); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// ValidateSpecs checks every spec names a numeric column and a sane budget
func ValidateSpecs(specs []Spec) error {
	for _, s := range specs {
		col, ok := panel.LookupColumn(s.Column)
		if !ok || !col.Numeric {
			return fmt.Errorf("outlier spec: unknown numeric column %q", s.Column)
		}
		if s.Method != MethodTrim && s.Method != MethodWinsorize {
			return fmt.Errorf("outlier spec %s: unknown method %q", s.Column, s.Method)
		}
		if _, err := ParseSide(string(s.Side)); err != nil {
			return fmt.Errorf("outlier spec %s: %w", s.Column, err)
		}
		if err := validatePct(s.Pct); err != nil {
			return fmt.Errorf("outlier spec %s: %w", s.Column, err)
		}
	}
	return nil
}
