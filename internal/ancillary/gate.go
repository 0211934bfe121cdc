package ancillary

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"go-payroll/internal/shared/apperror"
)

// ErrGateBlocked is returned when pending ancillary approvals block a new
// payroll run. Details carry the blocker list so callers can act on it.
var ErrGateBlocked = apperror.New(
	apperror.CodeGateBlocked,
	"pending ancillary approvals block payroll run initiation",
	http.StatusConflict,
)

type Blocker struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

const (
	BlockerSigningBonuses      = "signing_bonuses"
	BlockerTerminationBenefits = "termination_benefits"
)

//go:generate mockgen -source=gate.go -destination=mock/gate_mock.go -package=mock

// Gate is the pre-run approval check: a run may only be initiated while no
// signing bonus or termination/resignation benefit is PENDING system-wide.
type Gate interface {
	Check(ctx context.Context) error
}

type gate struct {
	repo   Repository
	logger *zap.Logger
}

func NewGate(repo Repository, logger ...*zap.Logger) Gate {
	l := zap.L().Named("ancillary.gate")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("ancillary.gate")
	}
	return &gate{repo: repo, logger: l}
}

func (g *gate) Check(ctx context.Context) error {
	pendingBonuses, err := g.repo.CountPendingSigningBonuses(ctx)
	if err != nil {
		g.logger.Error("count pending signing bonuses failed", zap.Error(err))
		return err
	}

	pendingBenefits, err := g.repo.CountPendingTerminationBenefits(ctx)
	if err != nil {
		g.logger.Error("count pending termination benefits failed", zap.Error(err))
		return err
	}

	var blockers []Blocker
	if pendingBonuses > 0 {
		blockers = append(blockers, Blocker{Type: BlockerSigningBonuses, Count: pendingBonuses})
	}
	if pendingBenefits > 0 {
		blockers = append(blockers, Blocker{Type: BlockerTerminationBenefits, Count: pendingBenefits})
	}

	if len(blockers) > 0 {
		g.logger.Warn("payroll run gate blocked",
			zap.Int64("pending_signing_bonuses", pendingBonuses),
			zap.Int64("pending_termination_benefits", pendingBenefits),
		)
		return ErrGateBlocked.WithDetails(blockers)
	}

	return nil
}
