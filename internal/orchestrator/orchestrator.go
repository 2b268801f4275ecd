// Package orchestrator implements the single entry point (spec.md §4.8,
// C8): load contract, build rules, compile the plan, then run the
// preplan → SQL pushdown → residual columnar cascade in strict phase order,
// merging and summarizing the result.
package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kontra-dev/kontra/internal/compile"
	"github.com/kontra-dev/kontra/internal/contract"
	"github.com/kontra-dev/kontra/internal/handle"
	"github.com/kontra-dev/kontra/internal/kontralog"
	"github.com/kontra-dev/kontra/internal/materialize"
	"github.com/kontra-dev/kontra/internal/plan"
	"github.com/kontra-dev/kontra/internal/preplan"
	"github.com/kontra-dev/kontra/internal/result"
	"github.com/kontra-dev/kontra/internal/rules"
	"github.com/kontra-dev/kontra/internal/sqlexec"
	"github.com/kontra-dev/kontra/internal/sqlexec/fileengine"
	"github.com/kontra-dev/kontra/internal/sqlexec/postgres"
	"github.com/kontra-dev/kontra/internal/sqlexec/sqlserver"
	"github.com/kontra-dev/kontra/internal/stats"
)

// RunOptions configures one orchestrator run (spec.md §4.8, §9 Open
// Question 1, and the tally/show_plan/explain_preplan supplements).
type RunOptions struct {
	// DataOverride replaces the contract's datasource, mirroring
	// `data_override ?? contract.dataset` (spec.md §4.8 step 3).
	DataOverride string

	// ExternalConn, ExternalDialect, and ExternalTableRef wire a BYOC
	// handle (spec.md §4.4); when ExternalConn is non-nil it takes
	// precedence over DataOverride/contract datasource.
	ExternalConn     *sql.DB
	ExternalDialect  string
	ExternalTableRef string

	PreplanEnabled  bool
	PushdownEnabled bool

	// Tally switches not_null's SQL pushdown to exact-count mode
	// (spec.md §9 Open Question 1).
	Tally bool

	CsvMode    materialize.CsvMode
	StagingDir string

	// ShowPlan and ExplainPreplan log the generated SQL text / preplan
	// row-group decisions at info level instead of printing them
	// (SPEC_FULL.md supplement of original_source's show_plan/
	// explain_preplan flags).
	ShowPlan       bool
	ExplainPreplan bool
}

// DefaultRunOptions returns the options a bare CLI invocation uses: both
// optimization tiers enabled, EXISTS-based (non-tally) not_null, auto CSV
// staging policy.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		PreplanEnabled:  true,
		PushdownEnabled: true,
		CsvMode:         materialize.CsvModeAuto,
	}
}

// defaultExecutors is the SQL Executor Registry's fixed registration order
// (spec.md §4.6: FileSqlExecutor, RelationalDialectA, RelationalDialectB).
func defaultExecutors() []sqlexec.Executor {
	return []sqlexec.Executor{fileengine.New(), postgres.New(), sqlserver.New()}
}

// Run loads a contract from path, then executes it (spec.md §4.8 step 1).
func Run(ctx context.Context, contractPath string, opts RunOptions) (*result.RunOutput, result.Status) {
	kontralog.Init()
	c, err := contract.Load(contractPath)
	if err != nil {
		return configErrorOutput("", err)
	}
	return RunContract(ctx, c, opts)
}

// RunContract executes an already-parsed contract (spec.md §4.8 steps 2-7).
func RunContract(ctx context.Context, c *contract.Contract, opts RunOptions) (*result.RunOutput, result.Status) {
	kontralog.Init()
	datasetName := c.Name
	if datasetName == "" {
		datasetName = c.ResolvedDatasource()
	}

	ruleList, err := rules.BuildRules(c.ToRuleSpecs())
	if err != nil {
		return configErrorOutput(datasetName, err)
	}

	compiled, err := plan.Compile(ruleList)
	if err != nil {
		return configErrorOutput(datasetName, err)
	}

	h, err := buildHandle(c, opts)
	if err != nil {
		return configErrorOutput(datasetName, err)
	}

	sb := stats.NewBuilder()
	ruleOrder := make([]string, len(ruleList))
	ruleByID := make(map[string]rules.Rule, len(ruleList))
	for i, r := range ruleList {
		ruleOrder[i] = r.RuleID()
		ruleByID[r.RuleID()] = r
	}

	handledIDs := map[string]bool{}
	metadataResults := map[string]result.RuleResult{}
	sqlResults := map[string]result.RuleResult{}
	columnarResults := map[string]result.RuleResult{}

	// Phase: preplan (spec.md §4.8 step 4).
	sb.StartPhase("preplan")
	preplanEnabled := opts.PreplanEnabled && isPreplanEligible(h)
	var preplanOut *preplan.Output
	if preplanEnabled {
		preplanOut, err = runPreplan(h, compiled, ruleByID, opts.ExplainPreplan)
		if err != nil {
			sb.EndPhase("preplan")
			return runtimeErrorOutput(datasetName, err)
		}
		if preplanOut.Effective {
			for id, decision := range preplanOut.RuleDecisions {
				if decision == preplan.Unknown {
					continue
				}
				r, ok := ruleByID[id]
				if !ok {
					continue
				}
				metadataResults[id] = preplanResult(r, decision, preplanOut.FailDetails[id])
				handledIDs[id] = true
			}
		}
	}
	sb.EndPhase("preplan")
	sb.SetPreplan(preplanEnabled, preplanOut)

	if ctx.Err() != nil {
		return cancelledOutput(datasetName, ruleOrder, ruleByID, metadataResults, sqlResults, columnarResults, sb)
	}

	// Phase: SQL pushdown (spec.md §4.8 step 5).
	sb.StartPhase("pushdown")
	pushdownEffective := false
	var stagingPath string
	if opts.PushdownEnabled {
		residualSpecs := plan.FilterSQLSpecs(compiled, handledIDs)
		if len(residualSpecs) > 0 {
			executor, execErr := sqlexec.Pick(defaultExecutors(), h, residualSpecs)
			if execErr == nil {
				execOpts := sqlexec.ExecOptions{Tally: opts.Tally, Meta: ruleMetaFor(ruleByID)}
				supported, _ := sqlexec.FilterSupported(executor.Dialect(), residualSpecs)
				if len(supported) > 0 {
					planned, compileErr := executor.Compile(h, supported, execOpts)
					if compileErr != nil {
						sb.EndPhase("pushdown")
						return runtimeErrorOutput(datasetName, compileErr)
					}
					if opts.ShowPlan {
						kontralog.Event().Str("executor", string(executor.Dialect())).
							Int("exists_queries", len(planned.ExistsQueries)).
							Str("agg_sql", planned.AggSQL).Msg("sql pushdown plan")
					}
					execResult, runErr := executor.Execute(ctx, h, planned, execOpts)
					if runErr != nil {
						sb.EndPhase("pushdown")
						return runtimeErrorOutput(datasetName, runErr)
					}
					for id, r := range execResult.Results {
						sqlResults[id] = r
						handledIDs[id] = true
					}
					if execResult.Staging != nil {
						stagingPath = execResult.Staging.Path
						h = stagedHandle(h, stagingPath)
					}
					pushdownEffective = len(execResult.Results) > 0
					sb.SetPushdown(true, pushdownEffective, string(executor.Dialect()), len(execResult.Results), nil)
				}
			}
		}
	}
	sb.EndPhase("pushdown")
	if !pushdownEffective {
		sb.SetPushdown(opts.PushdownEnabled, false, "", 0, nil)
	}
	defer cleanupStaging(stagingPath)

	if ctx.Err() != nil {
		return cancelledOutput(datasetName, ruleOrder, ruleByID, metadataResults, sqlResults, columnarResults, sb)
	}

	// Phase: residual columnar (spec.md §4.8 step 6).
	sb.StartPhase("residual")
	residual := plan.WithoutIDs(compiled, handledIDs)
	if !residual.IsEmpty() {
		mat, matErr := materialize.PickMaterializer(h, materialize.Options{
			CsvMode: opts.CsvMode, RowGroups: manifestFor(preplanOut), StagingDir: opts.StagingDir,
		})
		if matErr != nil {
			sb.EndPhase("residual")
			return runtimeErrorOutput(datasetName, matErr)
		}
		defer mat.Close()

		schemaCols, schemaErr := mat.Schema(ctx)
		loaded := len(residual.RequiredCols)
		available := loaded
		if schemaErr == nil {
			available = len(schemaCols)
		}
		sb.SetProjection(len(residual.RequiredCols), loaded, available, len(residual.RequiredCols) > 0)

		batch, loadErr := mat.ToColumnar(ctx, residual.RequiredCols)
		if loadErr != nil {
			sb.EndPhase("residual")
			return runtimeErrorOutput(datasetName, loadErr)
		}
		if kontralog.IODebugEnabled() {
			sb.SetIO(mat.IODebug())
		}
		for _, r := range plan.ExecuteCompiled(batch, residual) {
			columnarResults[r.RuleID] = r
		}
	}
	sb.EndPhase("residual")

	engineLabel := engineLabelFor(preplanEnabled, preplanOut, pushdownEffective, !residual.IsEmpty())
	sb.SetEngineLabel(engineLabel)

	merged := result.Merge(ruleOrder, metadataResults, sqlResults, columnarResults)
	summary := result.Summarize(merged, datasetName)
	out := &result.RunOutput{Dataset: datasetName, Results: merged, Summary: summary, Stats: sb.Build()}
	return out, statusFor(summary)
}

// ruleMetaFor builds the sqlexec.RuleMeta side-channel (spec.md §3's SqlSpec
// carries no name/severity) from the already-built rule registry, so every
// RuleResult an executor stamps carries the severity result.Summarize needs.
func ruleMetaFor(ruleByID map[string]rules.Rule) map[string]sqlexec.RuleMeta {
	meta := make(map[string]sqlexec.RuleMeta, len(ruleByID))
	for id, r := range ruleByID {
		meta[id] = sqlexec.RuleMeta{Name: r.Name(), Severity: r.Severity()}
	}
	return meta
}

func isPreplanEligible(h *handle.Handle) bool {
	if h.Scheme != handle.SchemeFile {
		return false
	}
	if h.IsGlob() {
		return true
	}
	return h.Format == handle.FormatParquet
}

func runPreplan(h *handle.Handle, compiled *plan.CompiledPlan, ruleByID map[string]rules.Rule, explain bool) (*preplan.Output, error) {
	src, err := preplanSource(h)
	if err != nil {
		return nil, err
	}
	var preds []compile.StaticPredicate
	for _, r := range ruleByID {
		preds = append(preds, r.ToStaticPredicates()...)
	}
	out, err := preplan.Run(src, compiled.RequiredCols, preds)
	if err != nil {
		return nil, err
	}
	if explain {
		kontralog.Event().Bool("effective", out.Effective).Int("rg_kept", len(out.ManifestRowGroups)).
			Int("rg_total", out.Stats.RgTotal).Msg("preplan decision")
	}
	return out, nil
}

func preplanSource(h *handle.Handle) (preplan.Source, error) {
	if h.IsGlob() {
		matches, err := filepath.Glob(h.Path)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: expand glob %q: %w", h.Path, err)
		}
		parquetOnly := matches[:0]
		for _, m := range matches {
			if filepath.Ext(m) == ".parquet" {
				parquetOnly = append(parquetOnly, m)
			}
		}
		if len(parquetOnly) == 0 {
			return nil, fmt.Errorf("orchestrator: glob %q matched no parquet files", h.Path)
		}
		return preplan.NewParquetSource(parquetOnly[0], parquetOnly)
	}
	return preplan.NewParquetSource(h.Path, nil)
}

func manifestFor(out *preplan.Output) []int {
	if out == nil || !out.Effective {
		return nil
	}
	return out.ManifestRowGroups
}

func buildHandle(c *contract.Contract, opts RunOptions) (*handle.Handle, error) {
	if opts.ExternalConn != nil {
		return handle.FromConnection(opts.ExternalConn, opts.ExternalDialect, opts.ExternalTableRef)
	}
	datasource := c.ResolvedDatasource()
	if opts.DataOverride != "" {
		datasource = opts.DataOverride
	}
	return handle.FromURI(datasource)
}

func stagedHandle(h *handle.Handle, stagedPath string) *handle.Handle {
	if stagedPath == "" {
		return h
	}
	staged := *h
	staged.Scheme = handle.SchemeFile
	staged.Path = stagedPath
	staged.Format = handle.FormatParquet
	staged.Dialect = ""
	staged.TableRef = ""
	return &staged
}

func cleanupStaging(path string) {
	if path == "" {
		return
	}
	_ = os.RemoveAll(filepath.Dir(path))
}

func engineLabelFor(preplanEnabled bool, preplanOut *preplan.Output, pushdownEffective, residualRan bool) string {
	label := "columnar"
	if preplanEnabled && preplanOut != nil && preplanOut.Effective {
		label = "preplan+" + label
	}
	if pushdownEffective {
		label = "sql+" + label
	}
	if !residualRan {
		label = label + " (residual skipped)"
	}
	return label
}

func statusFor(s result.RunSummary) result.Status {
	if s.BlockingFailures > 0 {
		return result.StatusValidationFailed
	}
	return result.StatusPassed
}

func preplanResult(r rules.Rule, decision preplan.Decision, detail preplan.FailDetail) result.RuleResult {
	passed := decision == preplan.PassMeta
	msg := fmt.Sprintf("%s passed (metadata)", r.Name())
	if !passed {
		msg = fmt.Sprintf("%s failed (metadata): expected %v, found %v", r.Name(), detail.Expected, detail.Actual)
	}
	return result.RuleResult{
		RuleID:          r.RuleID(),
		RuleName:        r.Name(),
		Passed:          passed,
		Message:         msg,
		Severity:        r.Severity(),
		ExecutionSource: result.SourceMetadata,
		FailureMode:     preplanFailureMode(r.Name(), passed),
	}
}

func preplanFailureMode(ruleName string, passed bool) result.FailureMode {
	if passed {
		return ""
	}
	switch ruleName {
	case "not_null":
		return result.FailureNullValues
	case "dtype":
		return result.FailureSchemaDrift
	case "range":
		return result.FailureRangeViolation
	default:
		return result.FailureConfigError
	}
}

func configErrorOutput(datasetName string, err error) (*result.RunOutput, result.Status) {
	r := result.RuleResult{
		RuleID:          "contract",
		RuleName:        "contract",
		Passed:          false,
		Message:         err.Error(),
		Severity:        result.Blocking,
		ExecutionSource: result.SourceColumnar,
		FailureMode:     result.FailureConfigError,
	}
	results := []result.RuleResult{r}
	summary := result.Summarize(results, datasetName)
	return &result.RunOutput{Dataset: datasetName, Results: results, Summary: summary}, result.StatusConfigError
}

func runtimeErrorOutput(datasetName string, err error) (*result.RunOutput, result.Status) {
	r := result.RuleResult{
		RuleID:          "runtime",
		RuleName:        "runtime",
		Passed:          false,
		Message:         err.Error(),
		Severity:        result.Blocking,
		ExecutionSource: result.SourceColumnar,
		FailureMode:     result.FailureConfigError,
	}
	results := []result.RuleResult{r}
	summary := result.Summarize(results, datasetName)
	return &result.RunOutput{Dataset: datasetName, Results: results, Summary: summary}, result.StatusRuntimeError
}

// cancelledOutput builds the result set spec.md §5 describes for a
// between-phase cancellation: completed tiers keep their results,
// uncompleted rules carry failure_mode=config_error and a runtime message.
func cancelledOutput(datasetName string, ruleOrder []string, ruleByID map[string]rules.Rule, metadata, sqlRes, colRes map[string]result.RuleResult, sb *stats.Builder) (*result.RunOutput, result.Status) {
	for _, id := range ruleOrder {
		if _, ok := metadata[id]; ok {
			continue
		}
		if _, ok := sqlRes[id]; ok {
			continue
		}
		if _, ok := colRes[id]; ok {
			continue
		}
		name := id
		severity := result.Blocking
		if r, ok := ruleByID[id]; ok {
			name = r.Name()
			severity = r.Severity()
		}
		colRes[id] = result.RuleResult{
			RuleID: id, RuleName: name, Passed: false,
			Message: "run cancelled before this rule completed",
			Severity: severity, ExecutionSource: result.SourceColumnar,
			FailureMode: result.FailureConfigError,
		}
	}
	merged := result.Merge(ruleOrder, metadata, sqlRes, colRes)
	summary := result.Summarize(merged, datasetName)
	sb.SetEngineLabel("cancelled")
	return &result.RunOutput{Dataset: datasetName, Results: merged, Summary: summary, Stats: sb.Build()}, result.StatusRuntimeError
}
