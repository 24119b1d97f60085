// Package purchase applies package purchases and payment-provider status
// callbacks to user quota state.
package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lpsaring/lpsaring/internal/application/binding"
	"github.com/lpsaring/lpsaring/internal/application/notification"
	"github.com/lpsaring/lpsaring/internal/domain/billing"
	"github.com/lpsaring/lpsaring/internal/domain/user"
	"github.com/lpsaring/lpsaring/internal/shared/biztime"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AccessSync pushes the user's post-purchase state to the router.
type AccessSync interface {
	ComputeTarget(u *user.User) binding.Target
	SetUserProfile(ctx context.Context, u *user.User, profile string) error
	SyncUserAddressList(ctx context.Context, u *user.User, ipHint string) error
}

// Service handles package purchases. A provider callback is idempotent: a
// repeated webhook carrying the same terminal status is a no-op.
type Service struct {
	users    user.Repository
	packages billing.PackageRepository
	txs      billing.TransactionRepository
	tx       TxRunner
	access   AccessSync
	notifier notification.Sender
	log      logger.Interface
	now      func() time.Time
}

func NewService(
	users user.Repository,
	packages billing.PackageRepository,
	txs billing.TransactionRepository,
	tx TxRunner,
	access AccessSync,
	notifier notification.Sender,
	log logger.Interface,
) *Service {
	return &Service{
		users:    users,
		packages: packages,
		txs:      txs,
		tx:       tx,
		access:   access,
		notifier: notifier,
		log:      log.Named("purchase"),
		now:      biztime.NowUTC,
	}
}

// Initiate creates a pending transaction for a user and package.
func (s *Service) Initiate(ctx context.Context, userID uuid.UUID, packageID uint, paymentMethod, providerRef string) (*billing.Transaction, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsApproved() || !u.IsActive() {
		return nil, errors.NewValidation("user cannot purchase packages")
	}

	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}

	t, err := billing.NewTransaction(u.ID(), pkg.ID(), pkg.PriceIDR(), paymentMethod, providerRef)
	if err != nil {
		return nil, err
	}
	if err := s.txs.Create(ctx, t); err != nil {
		return nil, err
	}

	s.log.Infow("purchase initiated",
		"user_id", u.ID(), "package", pkg.Name(), "provider_ref", providerRef)
	return t, nil
}

// ApplyProviderStatus processes a payment-provider callback. On SUCCESS the
// package quota and duration land on the user inside the same transaction
// as the status flip; the router update runs after commit.
func (s *Service) ApplyProviderStatus(ctx context.Context, providerRef string, target billing.TransactionStatus) error {
	var paidUser *user.User

	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.txs.GetByProviderRef(ctx, providerRef)
		if err != nil {
			return err
		}

		now := s.now()
		changed, err := t.ApplyStatus(target, now)
		if err != nil {
			return err
		}
		if !changed {
			s.log.Debugw("duplicate provider callback ignored",
				"provider_ref", providerRef, "status", target)
			return nil
		}
		if err := s.txs.Update(ctx, t); err != nil {
			return err
		}
		if target != billing.StatusSuccess {
			return nil
		}

		u, err := s.users.GetByID(ctx, t.UserID())
		if err != nil {
			return err
		}
		pkg, err := s.packages.GetByID(ctx, t.PackageID())
		if err != nil {
			return err
		}
		if err := u.ApplyPackage(pkg.DataQuotaMB(), pkg.DurationDays(), now); err != nil {
			return err
		}
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		paidUser = u
		return nil
	})
	if err != nil {
		return err
	}
	if paidUser == nil {
		return nil
	}

	s.pushAccessState(ctx, paidUser)
	s.notifier.Send(ctx, "whatsapp", string(paidUser.Phone()), notification.TemplatePurchaseSuccess, map[string]string{
		"phone":        string(paidUser.Phone()),
		"provider_ref": providerRef,
		"remaining_mb": fmt.Sprintf("%.2f", paidUser.RemainingMB()),
	})
	return nil
}

// pushAccessState is best-effort: the next quota tick reconciles anything
// the router rejects here.
func (s *Service) pushAccessState(ctx context.Context, u *user.User) {
	profile := s.access.ComputeTarget(u).Profile
	if err := s.access.SetUserProfile(ctx, u, profile); err != nil {
		s.log.Warnw("post-purchase profile update failed",
			"user_id", u.ID(), "profile", profile, "error", err)
		return
	}
	if err := s.access.SyncUserAddressList(ctx, u, ""); err != nil {
		s.log.Warnw("post-purchase address-list sync failed",
			"user_id", u.ID(), "error", err)
	}
}
