package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/karimndoye/sunumarket-backend/pkg/db/models"
	"github.com/karimndoye/sunumarket-backend/pkg/enums"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
)

// Service credits vendors their share of paid orders and guards the
// conservation invariant on every write.
type Service struct {
	repo           *Repo
	logger         *logger.Logger
	commissionRate decimal.Decimal
}

type ServiceParams struct {
	Repo           *Repo
	Logger         *logger.Logger
	CommissionRate decimal.Decimal
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repo is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if params.CommissionRate.IsNegative() || params.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission rate %s out of range [0,1)", params.CommissionRate)
	}
	return &Service{
		repo:           params.Repo,
		logger:         params.Logger,
		commissionRate: params.CommissionRate,
	}, nil
}

// Split computes the marketplace commission and the vendor share for a gross
// amount. The commission is rounded half-up to whole cents and the shares
// always sum back to the gross.
func (s *Service) Split(grossCents int64) (commissionCents, vendorCents int64) {
	commission := decimal.NewFromInt(grossCents).
		Mul(s.commissionRate).
		Round(0)
	commissionCents = commission.IntPart()
	vendorCents = grossCents - commissionCents
	return commissionCents, vendorCents
}

// CreditForOrder credits the order's vendor their share of the gross inside
// the caller's transaction, appends the earning entry, and verifies the
// conservation invariant afterwards. A violated invariant returns a
// LEDGER_INCONSISTENCY error; the caller is expected to roll the transaction
// back and persist a hold via MarkHold.
func (s *Service) CreditForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.VendorID == nil {
		return errors.New(errors.CodeValidation, "order has no vendor to credit")
	}
	vendorID := *order.VendorID
	repo := s.repo.WithTx(tx)

	ctx = s.logger.WithVendorID(ctx, vendorID.String())

	existing, err := repo.Get(ctx, vendorID)
	if err != nil && !errors.HasCode(err, errors.CodeNotFound) {
		return err
	}
	if existing != nil && existing.ReconcileHold {
		return errors.New(errors.CodeLedgerInconsistency, "vendor ledger is on reconcile hold")
	}

	commissionCents, vendorCents := s.Split(order.TotalAmountCents)

	if err := repo.CreditUpsert(ctx, vendorID, vendorCents); err != nil {
		return err
	}

	entry := &models.VendorLedgerEntry{
		ID:          uuid.New(),
		VendorID:    vendorID,
		Type:        enums.LedgerEntryTypeEarning,
		AmountCents: vendorCents,
		Description: fmt.Sprintf("Earning for order %s (commission %d)", order.OrderNumber, commissionCents),
		OrderID:     &order.ID,
	}
	if err := repo.AppendEntry(ctx, entry); err != nil {
		return err
	}

	if err := s.checkConservation(ctx, repo, vendorID); err != nil {
		return err
	}

	s.logger.Info(s.logger.WithField(ctx, "amount_cents", vendorCents), "vendor credited")
	return nil
}

// MarkHold freezes a vendor's ledger. It runs on the base connection so the
// hold survives the rollback of the crediting transaction.
func (s *Service) MarkHold(ctx context.Context, vendorID uuid.UUID) error {
	ctx = s.logger.WithVendorID(ctx, vendorID.String())
	if err := s.repo.SetHold(ctx, vendorID, true); err != nil {
		return err
	}
	s.logger.Warn(ctx, "vendor ledger placed on reconcile hold")
	return nil
}

// ReleaseHold clears a hold after operator review.
func (s *Service) ReleaseHold(ctx context.Context, vendorID uuid.UUID) error {
	return s.repo.SetHold(ctx, vendorID, false)
}

func (s *Service) checkConservation(ctx context.Context, repo *Repo, vendorID uuid.UUID) error {
	ledger, err := repo.Get(ctx, vendorID)
	if err != nil {
		return err
	}
	earnedMinusWithdrawn := ledger.TotalEarnedCents - ledger.TotalWithdrawnCents
	held := ledger.AvailableBalanceCents + ledger.PendingBalanceCents
	if earnedMinusWithdrawn != held {
		return errors.New(errors.CodeLedgerInconsistency,
			fmt.Sprintf("conservation violated for vendor %s: earned-withdrawn=%d held=%d",
				vendorID, earnedMinusWithdrawn, held)).
			WithDetails(map[string]int64{
				"total_earned_cents":      ledger.TotalEarnedCents,
				"total_withdrawn_cents":   ledger.TotalWithdrawnCents,
				"available_balance_cents": ledger.AvailableBalanceCents,
				"pending_balance_cents":   ledger.PendingBalanceCents,
			})
	}
	return nil
}
