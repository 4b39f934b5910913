/*

Deterministic scenario runner: replays a scripted sequence of swaps, joins and
exits against a pool backed by the in-memory host. Used by the poolsim binary
and as an end-to-end harness for the math and fee layers.

*/

package simulations

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openamm/weightedpool/internal/config"
	"github.com/openamm/weightedpool/internal/logger"
	"github.com/openamm/weightedpool/internal/pool"
	"github.com/openamm/weightedpool/internal/state"
	"github.com/openamm/weightedpool/internal/types"
	"github.com/openamm/weightedpool/internal/vault"
)

var runLogger = logger.GetForComponent("scenario_runner")

// Error definitions for zero-tolerance error handling
var (
	ErrScenario      = errors.New("simulations: invalid scenario")
	ErrUnhandledStep = errors.New("simulations: unhandled step kind")
)

// Step kinds accepted by the runner.
const (
	StepSwap = "swap"
	StepJoin = "join"
	StepExit = "exit"
)

// Step is one scripted operation. Swap steps use the swap fields; join and
// exit steps carry the pool's join/exit user data verbatim.
type Step struct {
	Kind    string `json:"kind"`
	Sender  string `json:"sender"`
	Account string `json:"account,omitempty"`

	// Swap fields.
	SwapKind string `json:"swap_kind,omitempty"` // "given_in" or "given_out"
	TokenIn  string `json:"token_in,omitempty"`
	TokenOut string `json:"token_out,omitempty"`
	Amount   string `json:"amount,omitempty"`

	// Join/exit user data, passed to the pool unmodified.
	UserData json.RawMessage `json:"user_data,omitempty"`
}

// Scenario is a scripted run against one pool.
type Scenario struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// StepReport records the outcome of one executed step.
type StepReport struct {
	StepID    string    `json:"step_id"`
	Index     int       `json:"index"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	BptDelta   string   `json:"bpt_delta,omitempty"`
	Amounts    []string `json:"amounts,omitempty"`
	Invariant  string   `json:"invariant"`
	FailedWith string   `json:"failed_with,omitempty"`
}

// RunReport is the outcome of a full scenario run.
type RunReport struct {
	RunID    string       `json:"run_id"`
	Scenario string       `json:"scenario"`
	PoolID   string       `json:"pool_id"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Steps    []StepReport `json:"steps"`
	Failed   int          `json:"failed"`
}

// Runner executes scenarios against a pool and its in-memory host.
type Runner struct {
	pool *pool.Pool
	host *vault.MemoryHost
}

// NewRunner pairs a pool with the memory host holding its balances.
func NewRunner(p *pool.Pool, h *vault.MemoryHost) *Runner {
	return &Runner{pool: p, host: h}
}

// LoadScenario reads a scenario file from disk.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScenario, err)
	}
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScenario, err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrScenario)
	}
	return &sc, nil
}

// Run executes every step in order. Step failures are recorded in the report
// and do not stop the run; the pool's all-or-nothing commit rules guarantee a
// failed step leaves no state behind.
func (r *Runner) Run(sc *Scenario) (*RunReport, error) {
	report := &RunReport{
		RunID:    uuid.New().String(),
		Scenario: sc.Name,
		PoolID:   r.pool.PoolID(),
		Started:  time.Now().UTC(),
	}
	runLogger.Info().
		Str("run_id", report.RunID).
		Str("scenario", sc.Name).
		Int("steps", len(sc.Steps)).
		Msg("Starting scenario run")

	for i, step := range sc.Steps {
		sr := StepReport{
			StepID:    uuid.New().String(),
			Index:     i,
			Kind:      step.Kind,
			Timestamp: time.Now().UTC(),
		}

		err := r.executeStep(step, &sr)
		if err != nil {
			sr.FailedWith = err.Error()
			report.Failed++
			runLogger.Warn().
				Err(err).
				Str("run_id", report.RunID).
				Int("step", i).
				Str("kind", step.Kind).
				Msg("Step failed")
		}

		if inv, invErr := r.pool.Invariant(); invErr == nil {
			sr.Invariant = inv.String()
		}
		report.Steps = append(report.Steps, sr)
	}

	report.Finished = time.Now().UTC()
	runLogger.Info().
		Str("run_id", report.RunID).
		Int("steps", len(report.Steps)).
		Int("failed", report.Failed).
		Msg("Scenario run finished")
	return report, nil
}

func (r *Runner) executeStep(step Step, sr *StepReport) error {
	switch step.Kind {
	case StepSwap:
		return r.executeSwap(step, sr)
	case StepJoin:
		return r.executeJoin(step, sr)
	case StepExit:
		return r.executeExit(step, sr)
	default:
		return fmt.Errorf("%w: %q", ErrUnhandledStep, step.Kind)
	}
}

// executeSwap quotes the swap and settles both legs on the host.
func (r *Runner) executeSwap(step Step, sr *StepReport) error {
	amount, err := parseAmount(step.Amount)
	if err != nil {
		return err
	}
	var kind types.SwapKind
	switch step.SwapKind {
	case "given_in", "":
		kind = types.SwapGivenIn
	case "given_out":
		kind = types.SwapGivenOut
	default:
		return fmt.Errorf("%w: swap kind %q", ErrScenario, step.SwapKind)
	}

	balanceIn, err := r.poolBalance(step.TokenIn)
	if err != nil {
		return err
	}
	balanceOut, err := r.poolBalance(step.TokenOut)
	if err != nil {
		return err
	}

	req := types.SwapRequest{Kind: kind, TokenIn: step.TokenIn, TokenOut: step.TokenOut, Amount: amount}
	quoted, err := r.pool.OnSwap(req, balanceIn, balanceOut)
	if err != nil {
		return err
	}

	amountIn, amountOut := amount, quoted
	if kind == types.SwapGivenOut {
		amountIn, amountOut = quoted, amount
	}
	if err := r.host.Credit(r.pool.PoolID(), step.TokenIn, amountIn); err != nil {
		return err
	}
	if err := r.host.Debit(r.pool.PoolID(), step.TokenOut, amountOut); err != nil {
		return err
	}

	sr.Amounts = []string{amountIn.String(), amountOut.String()}
	runLogger.Debug().
		Str("token_in", step.TokenIn).
		Str("token_out", step.TokenOut).
		Str("amount_in", humanize(amountIn)).
		Str("amount_out", humanize(amountOut)).
		Msg("Swap settled")
	return nil
}

// executeJoin runs the join and credits the collected amounts to the pool.
func (r *Runner) executeJoin(step Step, sr *StepReport) error {
	denoms, balances, err := r.poolBalances()
	if err != nil {
		return err
	}

	preInvariant := r.invariantOrZero()
	bptOut, amountsIn, err := r.pool.OnJoin(step.Sender, r.recipient(step), balances, step.UserData)
	if err != nil {
		return err
	}
	for i, denom := range denoms {
		if err := r.host.Credit(r.pool.PoolID(), denom, amountsIn[i]); err != nil {
			return err
		}
	}

	sr.BptDelta = bptOut.String()
	sr.Amounts = amountStrings(amountsIn)
	r.persistSnapshot("join", preInvariant)
	return nil
}

// executeExit runs the exit and debits the paid amounts from the pool.
func (r *Runner) executeExit(step Step, sr *StepReport) error {
	denoms, balances, err := r.poolBalances()
	if err != nil {
		return err
	}

	preInvariant := r.invariantOrZero()
	bptIn, amountsOut, err := r.pool.OnExit(step.Sender, r.recipient(step), balances, step.UserData)
	if err != nil {
		return err
	}
	for i, denom := range denoms {
		if err := r.host.Debit(r.pool.PoolID(), denom, amountsOut[i]); err != nil {
			return err
		}
	}

	sr.BptDelta = bptIn.Neg().String()
	sr.Amounts = amountStrings(amountsOut)
	r.persistSnapshot("exit", preInvariant)
	return nil
}

// persistSnapshot writes one join/exit cycle snapshot when persistence is on.
func (r *Runner) persistSnapshot(operation string, preInvariant sdkmath.Int) {
	if !config.SnapshotsEnabled {
		return
	}
	_, balances, err := r.poolBalances()
	if err != nil {
		runLogger.Warn().Err(err).Msg("Snapshot skipped: balances unavailable")
		return
	}
	snapshot := types.PoolSnapshot{
		PoolID:         r.pool.PoolID(),
		Operation:      operation,
		Timestamp:      time.Now().UTC(),
		PreInvariant:   preInvariant,
		PostInvariant:  r.invariantOrZero(),
		ProtocolFeeBpt: r.pool.LastProtocolFeeBpt(),
		TotalSupply:    r.pool.TotalSupply(),
		ATHRateProduct: r.pool.ATHRateProduct(),
		Balances:       balances,
	}
	if _, err := state.SavePoolSnapshot(snapshot); err != nil {
		runLogger.Warn().Err(err).Msg("Snapshot persistence failed")
	}
}

func (r *Runner) recipient(step Step) string {
	if step.Account != "" {
		return step.Account
	}
	return step.Sender
}

func (r *Runner) poolBalances() ([]string, []sdkmath.Int, error) {
	denoms, balances, _, err := r.host.GetPoolBalances(r.pool.PoolID())
	return denoms, balances, err
}

func (r *Runner) poolBalance(denom string) (sdkmath.Int, error) {
	denoms, balances, err := r.poolBalances()
	if err != nil {
		return sdkmath.Int{}, err
	}
	for i, d := range denoms {
		if d == denom {
			return balances[i], nil
		}
	}
	return sdkmath.Int{}, fmt.Errorf("%w: %s", vault.ErrUnknownDenom, denom)
}

func (r *Runner) invariantOrZero() sdkmath.Int {
	inv, err := r.pool.Invariant()
	if err != nil {
		return sdkmath.ZeroInt()
	}
	return inv
}

func parseAmount(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok || !v.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("%w: amount %q", ErrScenario, s)
	}
	return v, nil
}

func amountStrings(amounts []sdkmath.Int) []string {
	out := make([]string, len(amounts))
	for i, a := range amounts {
		out[i] = a.String()
	}
	return out
}

func humanize(v sdkmath.Int) string {
	return decimal.NewFromBigInt(v.BigInt(), -18).String()
}
