// Package engine implements the solvency-and-liquidation engine: the
// guarded, atomic position operations over the collateral ledger, the
// health-factor invariant enforced after every debt-moving mutation,
// and the incentivized liquidation path that restores solvency.
//
// Every mutating operation stages position copies, validates the
// solvency invariant against the staged state, performs the external
// token movements, and only then commits the staged state to the
// ledger in one step. A failure at any point leaves the ledger exactly
// as it was.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/atmx/synth-engine/internal/fixed"
	"github.com/atmx/synth-engine/internal/journal"
	"github.com/atmx/synth-engine/internal/ledger"
	"github.com/atmx/synth-engine/internal/limits"
	"github.com/atmx/synth-engine/internal/metrics"
	"github.com/atmx/synth-engine/internal/model"
	"github.com/atmx/synth-engine/internal/oracle"
	"github.com/atmx/synth-engine/internal/token"
)

var (
	// liquidationThreshold: only 50% of raw collateral value counts
	// toward solvency.
	liquidationThreshold = uint256.NewInt(50)
	liquidationPrecision = uint256.NewInt(100)

	// liquidationBonus: liquidators receive a 10% premium in seized
	// collateral over the USD value of debt they extinguish.
	liquidationBonus = uint256.NewInt(10)

	// MinHealthFactor is 1.0 in 18-decimal fixed-point. A position at
	// exactly this value is solvent.
	MinHealthFactor = uint256.NewInt(1e18)

	// MaxHealthFactor is the sentinel for debt-free positions.
	MaxHealthFactor = new(uint256.Int).SetAllOne()
)

// Event describes one committed ledger mutation, for broadcast to
// subscribed clients.
type Event struct {
	Op           string `json:"op"`
	User         string `json:"user"`
	Counterparty string `json:"counterparty,omitempty"`
	Asset        string `json:"asset,omitempty"`
	Amount       string `json:"amount"`
	HealthFactor string `json:"health_factor"`
}

// EventSink receives committed-operation events. Publish must not
// block.
type EventSink interface {
	Publish(Event)
}

// Config wires the engine's collaborators. Assets and Sources are
// parallel ordered lists; a length mismatch fails construction.
type Config struct {
	// Account is the engine's custody account with the token ledgers.
	Account string

	Assets  []string
	Sources []oracle.PriceSource

	// Collateral maps each approved asset to its transfer interface.
	Collateral map[string]token.CollateralToken

	Synth token.SyntheticToken

	Journal journal.Store // optional audit trail
	Events  EventSink     // optional broadcast sink

	// Limits bounds per-user exposure. Nil disables.
	Limits *limits.PositionLimits

	// MaxQuoteAge rejects oracle quotes older than this. Zero disables
	// the staleness check.
	MaxQuoteAge time.Duration
}

// Engine owns the ledger and serializes all mutating operations
// through a single mutex. Concurrent callers queue on the mutex;
// reentrancy from a collaborator callback is detected through a
// context marker, since the mutex is not reentrant.
type Engine struct {
	account    string
	ledger     *ledger.Ledger
	oracle     *oracle.Adapter
	collateral map[string]token.CollateralToken
	synth      token.SyntheticToken
	journal    journal.Store
	events     EventSink
	limits     *limits.PositionLimits

	mu sync.Mutex
}

// New validates the configuration and constructs the engine.
func New(cfg Config) (*Engine, error) {
	adapter, err := oracle.NewAdapter(cfg.Assets, cfg.Sources, cfg.MaxQuoteAge)
	if err != nil {
		return nil, err
	}
	if cfg.Synth == nil {
		return nil, fmt.Errorf("%w: synthetic token not configured", oracle.ErrConfigMismatch)
	}
	for _, asset := range cfg.Assets {
		if cfg.Collateral[asset] == nil {
			return nil, fmt.Errorf("%w: no collateral token for %s", oracle.ErrConfigMismatch, asset)
		}
	}
	account := cfg.Account
	if account == "" {
		account = "engine"
	}
	return &Engine{
		account:    account,
		ledger:     ledger.New(cfg.Assets),
		oracle:     adapter,
		collateral: cfg.Collateral,
		synth:      cfg.Synth,
		journal:    cfg.Journal,
		events:     cfg.Events,
		limits:     cfg.Limits,
	}, nil
}

// Account returns the engine's custody account ID.
func (e *Engine) Account() string { return e.account }

// Assets returns the approved collateral assets in configuration order.
func (e *Engine) Assets() []string { return e.ledger.Assets() }

// Position returns a copy of a user's committed position.
func (e *Engine) Position(user string) model.Position {
	return e.ledger.Position(user)
}

// Quote returns the validated raw quote for an approved asset.
func (e *Engine) Quote(ctx context.Context, asset string) (oracle.Quote, error) {
	return e.oracle.Quote(ctx, asset)
}

// inFlightKey marks a context as being inside a mutating operation.
// The engine passes the marked context into every collaborator call,
// so a collaborator calling back into the engine carries the marker
// and is rejected instead of deadlocking on the non-reentrant mutex.
type inFlightKey struct{}

// begin rejects reentrant calls, then queues on the single-writer
// lock. Concurrent callers from other requests serialize normally.
// The returned context must be used for all external effects.
func (e *Engine) begin(ctx context.Context) (context.Context, func(), error) {
	if ctx.Value(inFlightKey{}) != nil {
		return nil, nil, ErrReentrantCall
	}
	e.mu.Lock()
	return context.WithValue(ctx, inFlightKey{}, struct{}{}), e.mu.Unlock, nil
}

// compensate undoes a completed external effect after a later one
// failed, so an aborted operation does not strand user value outside
// the ledger. Best-effort: if the undo itself fails, the discrepancy
// needs operator reconciliation and is logged at error level.
func (e *Engine) compensate(action string, fn func() error) {
	if err := fn(); err != nil {
		slog.Error("compensation failed, manual reconciliation required", "action", action, "err", err)
	}
}

func guardAmount(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	return nil
}

// --- staged transaction ---

// tx stages position mutations against copies. Nothing touches the
// ledger until commit.
type tx struct {
	eng    *Engine
	staged map[string]model.Position
}

func (e *Engine) newTx() *tx {
	return &tx{eng: e, staged: make(map[string]model.Position)}
}

func (t *tx) position(user string) model.Position {
	if p, ok := t.staged[user]; ok {
		return p
	}
	return t.eng.ledger.Position(user)
}

func (t *tx) mutable(user string) model.Position {
	if p, ok := t.staged[user]; ok {
		return p
	}
	p := t.eng.ledger.Position(user)
	t.staged[user] = p
	return p
}

func (t *tx) addCollateral(user, asset string, amount *uint256.Int) error {
	p := t.mutable(user)
	bal := p.Collateral[asset]
	if bal == nil {
		bal = uint256.NewInt(0)
	}
	sum, err := fixed.Add(bal, amount)
	if err != nil {
		return err
	}
	if err := t.eng.limits.CheckCollateral(sum); err != nil {
		return err
	}
	p.Collateral[asset] = sum
	return nil
}

func (t *tx) subCollateral(user, asset string, amount *uint256.Int) error {
	p := t.mutable(user)
	bal := p.Collateral[asset]
	if bal == nil {
		bal = uint256.NewInt(0)
	}
	diff, err := fixed.Sub(bal, amount)
	if err != nil {
		return fmt.Errorf("%w: %s has %s %s", ErrInsufficientCollateral, user, bal.Dec(), asset)
	}
	p.Collateral[asset] = diff
	return nil
}

func (t *tx) addDebt(user string, amount *uint256.Int) error {
	p := t.mutable(user)
	sum, err := fixed.Add(p.Debt, amount)
	if err != nil {
		return err
	}
	if err := t.eng.limits.CheckDebt(sum); err != nil {
		return err
	}
	p.Debt = sum
	t.staged[user] = p
	return nil
}

func (t *tx) subDebt(user string, amount *uint256.Int) error {
	p := t.mutable(user)
	diff, err := fixed.Sub(p.Debt, amount)
	if err != nil {
		return fmt.Errorf("%w: %s owes %s", ErrInsufficientDebt, user, p.Debt.Dec())
	}
	p.Debt = diff
	t.staged[user] = p
	return nil
}

// commit applies the staged positions in one step and records the
// journal entries and events. Journal persistence is best-effort; the
// ledger is the source of truth.
func (e *Engine) commit(ctx context.Context, t *tx, entries ...model.JournalEntry) {
	e.ledger.Apply(t.staged)

	now := time.Now().UTC()
	for i := range entries {
		entries[i].ID = uuid.New().String()
		entries[i].Timestamp = now

		if e.journal != nil {
			if err := e.journal.Append(ctx, &entries[i]); err != nil {
				slog.Warn("journal append failed",
					"op", entries[i].Op,
					"user", entries[i].User,
					"err", err,
				)
			}
		}
		if e.events != nil {
			e.events.Publish(Event{
				Op:           entries[i].Op,
				User:         entries[i].User,
				Counterparty: entries[i].Counterparty,
				Asset:        entries[i].Asset,
				Amount:       entries[i].Amount.String(),
				HealthFactor: entries[i].HealthFactor,
			})
		}
	}
}

// --- position operations ---

// DepositCollateral pulls amount of asset from the user into engine
// custody and credits the position. Deposit alone cannot worsen
// solvency, so no health check runs.
func (e *Engine) DepositCollateral(ctx context.Context, user, asset string, amount *uint256.Int) error {
	ctx, done, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := guardAmount(amount); err != nil {
		return err
	}
	if !e.ledger.Approved(asset) {
		return fmt.Errorf("%w: %s", ErrAssetNotApproved, asset)
	}

	t := e.newTx()
	if err := t.addCollateral(user, asset, amount); err != nil {
		return err
	}
	if err := e.collateral[asset].TransferFrom(ctx, user, e.account, amount); err != nil {
		return fmt.Errorf("%w: pull %s from %s: %v", ErrTransferFailed, asset, user, err)
	}

	e.commit(ctx, t, model.JournalEntry{
		Op:           "deposit",
		User:         user,
		Asset:        asset,
		Amount:       fixed.ToDecimal(amount),
		HealthFactor: e.healthFactorString(ctx, t, user),
	})

	slog.Info("collateral deposited", "user", user, "asset", asset, "amount", fixed.ToDecimal(amount).String())
	return nil
}

// Mint increases the user's debt and requests the synthetic mint. The
// solvency gate runs after the debt mutation and before the external
// mint call.
func (e *Engine) Mint(ctx context.Context, user string, amount *uint256.Int) error {
	ctx, done, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	t := e.newTx()
	if err := e.stageMint(ctx, t, user, amount); err != nil {
		return err
	}
	if err := e.synth.Mint(ctx, user, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrMintFailed, err)
	}

	e.commit(ctx, t, e.mintEntry(ctx, t, user, amount))

	slog.Info("synthetic minted", "user", user, "amount", fixed.ToDecimal(amount).String())
	return nil
}

// DepositAndMint composes deposit and mint with a single solvency
// check after both mutations. The collateral pull runs before the
// external mint call.
func (e *Engine) DepositAndMint(ctx context.Context, user, asset string, collateralAmount, mintAmount *uint256.Int) error {
	ctx, done, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := guardAmount(collateralAmount); err != nil {
		return err
	}
	if !e.ledger.Approved(asset) {
		return fmt.Errorf("%w: %s", ErrAssetNotApproved, asset)
	}

	t := e.newTx()
	if err := t.addCollateral(user, asset, collateralAmount); err != nil {
		return err
	}
	if err := e.stageMint(ctx, t, user, mintAmount); err != nil {
		return err
	}

	if err := e.collateral[asset].TransferFrom(ctx, user, e.account, collateralAmount); err != nil {
		return fmt.Errorf("%w: pull %s from %s: %v", ErrTransferFailed, asset, user, err)
	}
	if err := e.synth.Mint(ctx, user, mintAmount); err != nil {
		// The collateral is already in custody; return it.
		e.compensate("return collateral", func() error {
			return e.collateral[asset].Transfer(ctx, user, collateralAmount)
		})
		return fmt.Errorf("%w: %v", ErrMintFailed, err)
	}

	e.commit(ctx, t,
		model.JournalEntry{
			Op:           "deposit",
			User:         user,
			Asset:        asset,
			Amount:       fixed.ToDecimal(collateralAmount),
			HealthFactor: e.healthFactorString(ctx, t, user),
		},
		e.mintEntry(ctx, t, user, mintAmount),
	)

	slog.Info("deposited and minted",
		"user", user,
		"asset", asset,
		"collateral", fixed.ToDecimal(collateralAmount).String(),
		"minted", fixed.ToDecimal(mintAmount).String(),
	)
	return nil
}

// stageMint validates the amount, stages the debt increase, and runs
// the solvency gate against the staged state.
func (e *Engine) stageMint(ctx context.Context, t *tx, user string, amount *uint256.Int) error {
	if err := guardAmount(amount); err != nil {
		return err
	}
	if err := t.addDebt(user, amount); err != nil {
		return err
	}
	return e.assertHealthy(ctx, t, user)
}

func (e *Engine) mintEntry(ctx context.Context, t *tx, user string, amount *uint256.Int) model.JournalEntry {
	return model.JournalEntry{
		Op:           "mint",
		User:         user,
		Amount:       fixed.ToDecimal(amount),
		HealthFactor: e.healthFactorString(ctx, t, user),
	}
}

// RedeemCollateral debits the position and pushes amount of asset from
// engine custody back to the user. The solvency gate runs on the
// staged state before the transfer out.
func (e *Engine) RedeemCollateral(ctx context.Context, user, asset string, amount *uint256.Int) error {
	ctx, done, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := guardAmount(amount); err != nil {
		return err
	}
	if !e.ledger.Approved(asset) {
		return fmt.Errorf("%w: %s", ErrAssetNotApproved, asset)
	}

	t := e.newTx()
	if err := t.subCollateral(user, asset, amount); err != nil {
		return err
	}
	if err := e.assertHealthy(ctx, t, user); err != nil {
		return err
	}
	if err := e.collateral[asset].Transfer(ctx, user, amount); err != nil {
		return fmt.Errorf("%w: push %s to %s: %v", ErrTransferFailed, asset, user, err)
	}

	e.commit(ctx, t, model.JournalEntry{
		Op:           "redeem",
		User:         user,
		Asset:        asset,
		Amount:       fixed.ToDecimal(amount),
		HealthFactor: e.healthFactorString(ctx, t, user),
	})

	slog.Info("collateral redeemed", "user", user, "asset", asset, "amount", fixed.ToDecimal(amount).String())
	return nil
}

// Burn pulls synthetic units from the user, destroys them, and reduces
// the debt. Burning cannot worsen solvency; the gate still runs.
func (e *Engine) Burn(ctx context.Context, user string, amount *uint256.Int) error {
	ctx, done, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	t := e.newTx()
	if err := e.stageBurn(ctx, t, user, amount); err != nil {
		return err
	}
	if err := e.pullAndBurn(ctx, user, amount); err != nil {
		return err
	}

	e.commit(ctx, t, e.burnEntry(ctx, t, user, amount))

	slog.Info("synthetic burned", "user", user, "amount", fixed.ToDecimal(amount).String())
	return nil
}

// RedeemAndBurn composes burn and redeem: the debt reduction stages
// first, then the collateral debit, with one solvency check at the
// end. External effects run in the same order.
func (e *Engine) RedeemAndBurn(ctx context.Context, user, asset string, collateralAmount, burnAmount *uint256.Int) error {
	ctx, done, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := guardAmount(collateralAmount); err != nil {
		return err
	}
	if !e.ledger.Approved(asset) {
		return fmt.Errorf("%w: %s", ErrAssetNotApproved, asset)
	}

	t := e.newTx()
	if err := e.stageBurn(ctx, t, user, burnAmount); err != nil {
		return err
	}
	if err := t.subCollateral(user, asset, collateralAmount); err != nil {
		return err
	}
	if err := e.assertHealthy(ctx, t, user); err != nil {
		return err
	}

	if err := e.pullAndBurn(ctx, user, burnAmount); err != nil {
		return err
	}
	if err := e.collateral[asset].Transfer(ctx, user, collateralAmount); err != nil {
		// The user's synthetic units are already destroyed; the engine
		// is the minter, so restore them.
		e.compensate("re-mint synthetic", func() error {
			return e.synth.Mint(ctx, user, burnAmount)
		})
		return fmt.Errorf("%w: push %s to %s: %v", ErrTransferFailed, asset, user, err)
	}

	e.commit(ctx, t,
		e.burnEntry(ctx, t, user, burnAmount),
		model.JournalEntry{
			Op:           "redeem",
			User:         user,
			Asset:        asset,
			Amount:       fixed.ToDecimal(collateralAmount),
			HealthFactor: e.healthFactorString(ctx, t, user),
		},
	)

	slog.Info("redeemed and burned",
		"user", user,
		"asset", asset,
		"collateral", fixed.ToDecimal(collateralAmount).String(),
		"burned", fixed.ToDecimal(burnAmount).String(),
	)
	return nil
}

// stageBurn validates the amount and stages the debt reduction. The
// health check here is purely defensive; burning only improves the
// ratio.
func (e *Engine) stageBurn(ctx context.Context, t *tx, user string, amount *uint256.Int) error {
	if err := guardAmount(amount); err != nil {
		return err
	}
	if err := t.subDebt(user, amount); err != nil {
		return err
	}
	return e.assertHealthy(ctx, t, user)
}

// pullAndBurn moves synthetic units from the user into custody and
// destroys them.
func (e *Engine) pullAndBurn(ctx context.Context, from string, amount *uint256.Int) error {
	if err := e.synth.TransferFrom(ctx, from, e.account, amount); err != nil {
		return fmt.Errorf("%w: pull synthetic from %s: %v", ErrTransferFailed, from, err)
	}
	if err := e.synth.Burn(ctx, e.account, amount); err != nil {
		// The units are still intact in custody; hand them back.
		e.compensate("return synthetic", func() error {
			return e.synth.TransferFrom(ctx, e.account, from, amount)
		})
		return fmt.Errorf("%w: burn synthetic: %v", ErrTransferFailed, err)
	}
	return nil
}

func (e *Engine) burnEntry(ctx context.Context, t *tx, user string, amount *uint256.Int) model.JournalEntry {
	return model.JournalEntry{
		Op:           "burn",
		User:         user,
		Amount:       fixed.ToDecimal(amount),
		HealthFactor: e.healthFactorString(ctx, t, user),
	}
}

// Liquidate lets a third party cover part of an insolvent victim's
// debt in exchange for the equivalent collateral plus a 10% bonus. The
// victim's health factor must strictly improve and the liquidator must
// end healthy.
func (e *Engine) Liquidate(ctx context.Context, liquidator, victim, asset string, debtToCover *uint256.Int) error {
	ctx, done, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := guardAmount(debtToCover); err != nil {
		return err
	}
	if !e.ledger.Approved(asset) {
		return fmt.Errorf("%w: %s", ErrAssetNotApproved, asset)
	}

	t := e.newTx()
	startHF, err := e.healthFactor(ctx, t, victim)
	if err != nil {
		return err
	}
	if !startHF.Lt(MinHealthFactor) {
		return fmt.Errorf("%w: %s", ErrHealthFactorOK, fixed.ToDecimal(startHF))
	}

	// Size the payout: collateral worth the covered debt plus bonus.
	base, err := e.oracle.AmountForUSDValue(ctx, asset, debtToCover)
	if err != nil {
		return err
	}
	bonus, err := fixed.MulDiv(base, liquidationBonus, liquidationPrecision)
	if err != nil {
		return err
	}
	seized, err := fixed.Add(base, bonus)
	if err != nil {
		return err
	}

	if err := t.subCollateral(victim, asset, seized); err != nil {
		return err
	}
	if err := t.subDebt(victim, debtToCover); err != nil {
		return err
	}

	endHF, err := e.healthFactor(ctx, t, victim)
	if err != nil {
		return err
	}
	if !endHF.Gt(startHF) {
		return fmt.Errorf("%w: %s", ErrHealthFactorNotImproved, fixed.ToDecimal(endHF))
	}
	if err := e.assertHealthy(ctx, t, liquidator); err != nil {
		return err
	}

	// The liquidator pays in synthetic units, which are destroyed, and
	// receives the seized collateral from custody.
	if err := e.pullAndBurn(ctx, liquidator, debtToCover); err != nil {
		return err
	}
	if err := e.collateral[asset].Transfer(ctx, liquidator, seized); err != nil {
		// The liquidator already paid in destroyed synthetic; restore it.
		e.compensate("re-mint synthetic", func() error {
			return e.synth.Mint(ctx, liquidator, debtToCover)
		})
		return fmt.Errorf("%w: push %s to %s: %v", ErrTransferFailed, asset, liquidator, err)
	}

	e.commit(ctx, t, model.JournalEntry{
		Op:           "liquidate",
		User:         victim,
		Counterparty: liquidator,
		Asset:        asset,
		Amount:       fixed.ToDecimal(debtToCover),
		HealthFactor: hfString(endHF),
	})
	metrics.LiquidationsTotal.Inc()

	slog.Info("position liquidated",
		"victim", victim,
		"liquidator", liquidator,
		"asset", asset,
		"debt_covered", fixed.ToDecimal(debtToCover).String(),
		"collateral_seized", fixed.ToDecimal(seized).String(),
		"health_factor", hfString(endHF),
	)
	return nil
}
