package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/atmx/synth-engine/internal/engine"
	"github.com/atmx/synth-engine/internal/fixed"
	"github.com/atmx/synth-engine/internal/limits"
	"github.com/atmx/synth-engine/internal/oracle"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{engine.ErrInvalidAmount, http.StatusBadRequest},
		{engine.ErrAssetNotApproved, http.StatusBadRequest},
		{oracle.ErrUnknownAsset, http.StatusBadRequest},
		{fixed.ErrOutOfRange, http.StatusBadRequest},
		{engine.ErrHealthFactorBroken, http.StatusConflict},
		{engine.ErrHealthFactorOK, http.StatusConflict},
		{engine.ErrHealthFactorNotImproved, http.StatusConflict},
		{engine.ErrInsufficientCollateral, http.StatusConflict},
		{engine.ErrInsufficientDebt, http.StatusConflict},
		{engine.ErrTransferFailed, http.StatusConflict},
		{engine.ErrMintFailed, http.StatusConflict},
		{limits.ErrDebtCeilingExceeded, http.StatusConflict},
		{limits.ErrCollateralCapExceeded, http.StatusConflict},
		{engine.ErrReentrantCall, http.StatusServiceUnavailable},
		{oracle.ErrInvalidQuote, http.StatusServiceUnavailable},
		{oracle.ErrStaleQuote, http.StatusServiceUnavailable},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Errorf("statusForError(%v): got %d, want %d", tc.err, got, tc.want)
		}
		// Wrapped errors must map the same way.
		if got := statusForError(fmt.Errorf("op: %w", tc.err)); got != tc.want {
			t.Errorf("statusForError(wrapped %v): got %d, want %d", tc.err, got, tc.want)
		}
	}
}
