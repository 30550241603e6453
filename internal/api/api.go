// Package api provides the HTTP handlers for the engine's position
// operations and read-only account queries.
//
// Request and response amounts use shopspring/decimal; conversion to
// the engine's 18-decimal fixed-point representation happens here,
// truncating toward zero.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/atmx/synth-engine/internal/engine"
	"github.com/atmx/synth-engine/internal/fixed"
	"github.com/atmx/synth-engine/internal/journal"
	"github.com/atmx/synth-engine/internal/limits"
	"github.com/atmx/synth-engine/internal/metrics"
	"github.com/atmx/synth-engine/internal/model"
	"github.com/atmx/synth-engine/internal/oracle"
)

// Service handles HTTP requests against one engine instance.
type Service struct {
	engine  *engine.Engine
	journal journal.Store // optional, read side of the audit trail
}

// NewService creates the HTTP service. Pass nil for jrnl if the
// journal query endpoint is not needed.
func NewService(eng *engine.Engine, jrnl journal.Store) *Service {
	return &Service{engine: eng, journal: jrnl}
}

// Routes mounts all API routes on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Post("/positions/deposit", s.Deposit)
	r.Post("/positions/mint", s.Mint)
	r.Post("/positions/deposit-and-mint", s.DepositAndMint)
	r.Post("/positions/redeem", s.Redeem)
	r.Post("/positions/burn", s.Burn)
	r.Post("/positions/redeem-and-burn", s.RedeemAndBurn)
	r.Post("/positions/liquidate", s.Liquidate)

	r.Get("/accounts/{userID}", s.GetAccount)
	r.Get("/accounts/{userID}/health", s.GetHealthFactor)
	r.Get("/assets", s.ListAssets)
	r.Get("/journal/{userID}", s.GetJournal)
}

// --- Request/Response types ---

// PositionRequest is the JSON body shared by the position operations.
// Only the fields an operation uses are required.
type PositionRequest struct {
	User             string          `json:"user"`
	Liquidator       string          `json:"liquidator,omitempty"`
	Asset            string          `json:"asset,omitempty"`
	Amount           decimal.Decimal `json:"amount,omitempty"`
	CollateralAmount decimal.Decimal `json:"collateral_amount,omitempty"`
	MintAmount       decimal.Decimal `json:"mint_amount,omitempty"`
	BurnAmount       decimal.Decimal `json:"burn_amount,omitempty"`
	DebtToCover      decimal.Decimal `json:"debt_to_cover,omitempty"`
}

// AccountResponse is the account snapshot returned after operations
// and from GET /accounts/{userID}.
type AccountResponse struct {
	User            string                     `json:"user"`
	Collateral      map[string]decimal.Decimal `json:"collateral"`
	Debt            decimal.Decimal            `json:"debt"`
	CollateralValue decimal.Decimal            `json:"collateral_value"`
	HealthFactor    string                     `json:"health_factor"` // "max" when debt-free
}

// AssetInfo is one approved asset with its current validated quote.
type AssetInfo struct {
	Asset string       `json:"asset"`
	Quote oracle.Quote `json:"quote,omitempty"`
	Error string       `json:"error,omitempty"`
}

// --- Position operation handlers ---

// Deposit handles POST /api/v1/positions/deposit
func (s *Service) Deposit(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.execute(w, r, "deposit", req.User, func(ctx context.Context) error {
		return s.engine.DepositCollateral(ctx, req.User, req.Asset, amount)
	})
}

// Mint handles POST /api/v1/positions/mint
func (s *Service) Mint(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.execute(w, r, "mint", req.User, func(ctx context.Context) error {
		return s.engine.Mint(ctx, req.User, amount)
	})
}

// DepositAndMint handles POST /api/v1/positions/deposit-and-mint
func (s *Service) DepositAndMint(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	collateral, err := parseAmount(req.CollateralAmount)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	mint, err := parseAmount(req.MintAmount)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.execute(w, r, "deposit_and_mint", req.User, func(ctx context.Context) error {
		return s.engine.DepositAndMint(ctx, req.User, req.Asset, collateral, mint)
	})
}

// Redeem handles POST /api/v1/positions/redeem
func (s *Service) Redeem(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.execute(w, r, "redeem", req.User, func(ctx context.Context) error {
		return s.engine.RedeemCollateral(ctx, req.User, req.Asset, amount)
	})
}

// Burn handles POST /api/v1/positions/burn
func (s *Service) Burn(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.execute(w, r, "burn", req.User, func(ctx context.Context) error {
		return s.engine.Burn(ctx, req.User, amount)
	})
}

// RedeemAndBurn handles POST /api/v1/positions/redeem-and-burn
func (s *Service) RedeemAndBurn(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	collateral, err := parseAmount(req.CollateralAmount)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	burn, err := parseAmount(req.BurnAmount)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.execute(w, r, "redeem_and_burn", req.User, func(ctx context.Context) error {
		return s.engine.RedeemAndBurn(ctx, req.User, req.Asset, collateral, burn)
	})
}

// Liquidate handles POST /api/v1/positions/liquidate
func (s *Service) Liquidate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	if req.Liquidator == "" {
		writeError(w, "liquidator is required", http.StatusBadRequest)
		return
	}
	debtToCover, err := parseAmount(req.DebtToCover)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.execute(w, r, "liquidate", req.User, func(ctx context.Context) error {
		return s.engine.Liquidate(ctx, req.Liquidator, req.User, req.Asset, debtToCover)
	})
}

// --- Read-only handlers ---

// GetAccount handles GET /api/v1/accounts/{userID}
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	resp, err := s.account(r.Context(), userID)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetHealthFactor handles GET /api/v1/accounts/{userID}/health
func (s *Service) GetHealthFactor(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	hf, err := s.engine.HealthFactor(r.Context(), userID)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user":          userID,
		"health_factor": healthFactorString(hf),
	})
}

// ListAssets handles GET /api/v1/assets
func (s *Service) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets := s.engine.Assets()
	infos := make([]AssetInfo, 0, len(assets))
	for _, asset := range assets {
		info := AssetInfo{Asset: asset}
		if q, err := s.engine.Quote(r.Context(), asset); err != nil {
			info.Error = err.Error()
		} else {
			info.Quote = q
		}
		infos = append(infos, info)
	}
	writeJSON(w, http.StatusOK, infos)
}

// GetJournal handles GET /api/v1/journal/{userID}
func (s *Service) GetJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, "journal not configured", http.StatusNotFound)
		return
	}
	userID := chi.URLParam(r, "userID")
	entries, err := s.journal.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to read journal", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- helpers ---

func (s *Service) decode(w http.ResponseWriter, r *http.Request) (PositionRequest, bool) {
	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	if req.User == "" {
		writeError(w, "user is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// execute runs one engine operation, records metrics, and responds
// with the affected account's snapshot.
func (s *Service) execute(w http.ResponseWriter, r *http.Request, op, user string, fn func(context.Context) error) {
	start := time.Now()
	err := fn(r.Context())

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.OperationsTotal.WithLabelValues(op, status).Inc()
	metrics.OperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}

	resp, err := s.account(r.Context(), user)
	if err != nil {
		// The operation committed; degrade to a minimal acknowledgment
		// rather than reporting failure.
		writeJSON(w, http.StatusOK, map[string]string{"user": user, "status": "ok"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) account(ctx context.Context, user string) (*AccountResponse, error) {
	p := s.engine.Position(user)

	collateral := make(map[string]decimal.Decimal)
	for asset, amount := range p.Collateral {
		if !amount.IsZero() {
			collateral[asset] = fixed.ToDecimal(amount)
		}
	}

	value, err := s.engine.TotalCollateralValue(ctx, user)
	if err != nil {
		return nil, err
	}
	hf, err := s.engine.HealthFactor(ctx, user)
	if err != nil {
		return nil, err
	}

	return &AccountResponse{
		User:            user,
		Collateral:      collateral,
		Debt:            fixed.ToDecimal(p.Debt),
		CollateralValue: fixed.ToDecimal(value),
		HealthFactor:    healthFactorString(hf),
	}, nil
}

func parseAmount(d decimal.Decimal) (*uint256.Int, error) {
	if d.Sign() <= 0 {
		return nil, engine.ErrInvalidAmount
	}
	return fixed.FromDecimal(d)
}

func healthFactorString(hf *uint256.Int) string {
	if hf.Eq(engine.MaxHealthFactor) {
		return "max"
	}
	return fixed.ToDecimal(hf).String()
}

// statusForError maps engine failures onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrAssetNotApproved),
		errors.Is(err, oracle.ErrUnknownAsset),
		errors.Is(err, fixed.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrHealthFactorBroken),
		errors.Is(err, engine.ErrHealthFactorOK),
		errors.Is(err, engine.ErrHealthFactorNotImproved),
		errors.Is(err, engine.ErrInsufficientCollateral),
		errors.Is(err, engine.ErrInsufficientDebt),
		errors.Is(err, engine.ErrTransferFailed),
		errors.Is(err, engine.ErrMintFailed),
		errors.Is(err, limits.ErrDebtCeilingExceeded),
		errors.Is(err, limits.ErrCollateralCapExceeded),
		errors.Is(err, fixed.ErrOverflow),
		errors.Is(err, fixed.ErrUnderflow):
		return http.StatusConflict
	case errors.Is(err, engine.ErrReentrantCall),
		errors.Is(err, oracle.ErrInvalidQuote),
		errors.Is(err, oracle.ErrStaleQuote):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
