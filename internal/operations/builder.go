package operations

import (
	"fmt"
	"log/slog"
	"regexp"

	"evalpanel/internal/config"
	"evalpanel/internal/outliers"
	"evalpanel/internal/panel"
	"evalpanel/internal/selection"
	"evalpanel/internal/validation"
	"evalpanel/pkg/contracts/domain"
)

// Pipeline is the assembled set of components for a run
type Pipeline struct {
	Stages       *Registry
	Metrics      *panel.Registry
	Assembler    *panel.Assembler
	Funnel       *selection.Funnel
	Validator    *validation.Validator
	Thresholds   selection.Thresholds
	OutlierSpecs []outliers.Spec
}

// Builder turns the pipeline configuration into an explicit, ordered set of
// stages
type Builder struct {
	cfg    config.PipelineConfig
	logger *slog.Logger
}

// NewBuilder creates a builder over the pipeline section of cfg
func NewBuilder(cfg *config.Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cfg: cfg.Pipeline, logger: logger}
}

// Thresholds converts the configured sample definition
func (b *Builder) Thresholds() (selection.Thresholds, error) {
	th := b.cfg.Thresholds
	signup, err := domain.ParseYearMonth(th.MinSignupYM)
	if err != nil {
		return selection.Thresholds{}, NewValidationError(StageSelect, fmt.Sprintf("invalid min_signup_ym %q", th.MinSignupYM))
	}
	return selection.Thresholds{
		MinSignupYM:       signup,
		MinPreMonths:      th.MinPreMonths,
		MinPostMonths:     th.MinPostMonths,
		MinYearIncome:     th.MinYearIncome,
		MinMonthTxns:      th.MinMonthTxns,
		MinMonthSpend:     th.MinMonthSpend,
		MaxActiveAccounts: th.MaxActiveAccounts,
		MinAge:            th.MinAge,
		MaxAge:            th.MaxAge,
	}, nil
}

// Params converts the aggregation settings, falling back to the built-in tag
// lists when none are configured
func (b *Builder) Params() (panel.Params, error) {
	params := panel.DefaultParams()
	sf := b.cfg.SavingsFlows

	params.SAFlowMinAmount = sf.MinAmount
	params.SAFlowExcludedTags = sf.ExcludedTags
	params.SAFlowExcludedPattern = nil
	if sf.ExcludedPattern != "" {
		re, err := regexp.Compile(sf.ExcludedPattern)
		if err != nil {
			return panel.Params{}, NewValidationError(StageAssemble, fmt.Sprintf("invalid savings flow pattern: %v", err))
		}
		params.SAFlowExcludedPattern = re
	}
	if len(b.cfg.LoanTags) > 0 {
		params.LoanTags = b.cfg.LoanTags
	}
	if len(b.cfg.DiscretionaryTags) > 0 {
		params.DiscretionaryTags = b.cfg.DiscretionaryTags
	}
	if b.cfg.EntropyWeight != "" {
		params.EntropyWeight = panel.EntropyWeight(b.cfg.EntropyWeight)
	}
	return params, nil
}

// OutlierSpecs returns the configured column treatments, or the reference
// treatment for the winsorization budget when none are configured
func (b *Builder) OutlierSpecs() ([]outliers.Spec, error) {
	if len(b.cfg.Outliers) == 0 {
		return outliers.DefaultSpecs(b.cfg.WinPct), nil
	}
	specs := make([]outliers.Spec, 0, len(b.cfg.Outliers))
	for _, o := range b.cfg.Outliers {
		side, err := outliers.ParseSide(o.Side)
		if err != nil {
			return nil, NewValidationError(StageOutliers, err.Error())
		}
		specs = append(specs, outliers.Spec{
			Column: o.Column,
			Method: outliers.Method(o.Method),
			Pct:    o.Pct,
			Side:   side,
		})
	}
	if err := outliers.ValidateSpecs(specs); err != nil {
		return nil, NewValidationError(StageOutliers, err.Error())
	}
	return specs, nil
}

// Build assembles the pipeline. Every unknown stage, metric, step or check
// named in the toggles is reported together.
func (b *Builder) Build(source ShardSource) (*Pipeline, error) {
	var errs ErrorList

	th, err := b.Thresholds()
	if err != nil {
		return nil, err
	}
	params, err := b.Params()
	if err != nil {
		return nil, err
	}
	specs, err := b.OutlierSpecs()
	if err != nil {
		return nil, err
	}

	metrics := panel.DefaultRegistry()
	applyToggles(&errs, StageAssemble, b.cfg.Metrics, metrics.SetEnabled)

	funnel, err := selection.NewDefaultFunnel(th, selection.DefaultDisabled(), b.logger)
	if err != nil {
		return nil, NewValidationError(StageSelect, err.Error())
	}
	applyToggles(&errs, StageSelect, b.cfg.Selection, funnel.SetEnabled)

	stages := NewRegistry()
	exceptions := append(validation.DefaultMissingExceptions(), trimmedColumns(specs)...)
	validator := validation.NewValidator(
		validation.DefaultChecks(th, exceptions),
		selectedSteps{stages: stages, funnel: funnel},
		b.logger,
	)
	applyToggles(&errs, StageValidate, b.cfg.Validation, validator.SetEnabled)

	assembler := panel.NewAssembler(metrics, params, b.logger)
	for _, stage := range []Stage{
		NewReadStage(source),
		NewAssembleStage(assembler),
		NewSelectStage(funnel),
		NewOutlierStage(outliers.NewTransformer(specs, nil, b.logger)),
		NewStandardizeStage(outliers.NewTransformer(nil, outliers.DefaultStandardizations(), b.logger)),
		NewValidateStage(validator),
	} {
		if err := stages.Register(stage); err != nil {
			return nil, err
		}
	}
	applyToggles(&errs, "", b.cfg.Stages, stages.SetEnabled)

	if errs.HasErrors() {
		return nil, &errs
	}

	b.logger.Info("pipeline built",
		slog.Any("stages", stages.ListIDs()),
		slog.Int("metrics", len(metrics.Enabled())),
		slog.Int("funnel_steps", len(funnel.Steps())),
		slog.Int("outlier_columns", len(specs)))

	return &Pipeline{
		Stages:       stages,
		Metrics:      metrics,
		Assembler:    assembler,
		Funnel:       funnel,
		Validator:    validator,
		Thresholds:   th,
		OutlierSpecs: specs,
	}, nil
}

func applyToggles(errs *ErrorList, stage string, t config.ToggleConfig, set func(string, bool) error) {
	for _, id := range t.Disabled {
		if err := set(id, false); err != nil {
			errs.Add(WrapError(err, stage, "disable "+id))
		}
	}
	for _, id := range t.Enabled {
		if err := set(id, true); err != nil {
			errs.Add(WrapError(err, stage, "enable "+id))
		}
	}
}

// trimmedColumns lists the columns trimming may leave with missing values
func trimmedColumns(specs []outliers.Spec) []string {
	var cols []string
	for _, s := range specs {
		if s.Method == outliers.MethodTrim {
			cols = append(cols, s.Column)
		}
	}
	return cols
}

// selectedSteps reports a funnel step as enabled only while the select
// stage itself runs
type selectedSteps struct {
	stages *Registry
	funnel *selection.Funnel
}

func (s selectedSteps) IsEnabled(id string) bool {
	return s.stages.IsEnabled(StageSelect) && s.funnel.IsEnabled(id)
}
