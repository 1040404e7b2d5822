package reviews

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmexchange-backend/pkg/db"
	"github.com/angelmondragon/farmexchange-backend/pkg/db/models"
	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmexchange-backend/pkg/errors"
	"github.com/angelmondragon/farmexchange-backend/pkg/outbox"
	"github.com/angelmondragon/farmexchange-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/farmexchange-backend/pkg/pagination"
	"github.com/angelmondragon/farmexchange-backend/pkg/types"
)

const (
	MinRating = 1
	MaxRating = 5

	maxCommentLength  = 1000
	uniqueReviewIndex = "ux_reviews_transaction"
)

// Service records buyer reviews of sellers.
type Service interface {
	LeaveReview(ctx context.Context, input LeaveReviewInput) (*models.Review, error)
	SellerReviews(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*SellerReviews, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// LeaveReviewInput is a buyer's rating of a completed transaction.
type LeaveReviewInput struct {
	Actor         types.Actor
	TransactionID uuid.UUID
	Rating        int
	Comment       string
}

// SellerReviews is a page of a seller's reviews plus the overall rating.
type SellerReviews struct {
	Page    pagination.Page[models.Review] `json:"page"`
	Summary Summary                        `json:"summary"`
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService wires the review service.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox}, nil
}

func (s *service) LeaveReview(ctx context.Context, input LeaveReviewInput) (*models.Review, error) {
	if input.Actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity is required")
	}
	if input.Rating < MinRating || input.Rating > MaxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5").
			WithDetails(map[string]any{"field": "rating"})
	}
	comment := strings.TrimSpace(input.Comment)
	if len([]rune(comment)) > maxCommentLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment must be at most 1000 characters").
			WithDetails(map[string]any{"field": "comment"})
	}

	var review *models.Review
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		txn, err := repo.FindTransaction(ctx, input.TransactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load transaction")
		}
		if txn.BuyerID != input.Actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can review this transaction")
		}
		if txn.Status != enums.TransactionStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only completed transactions can be reviewed").
				WithDetails(map[string]any{"current_status": txn.Status})
		}
		exists, err := repo.ExistsForTransaction(ctx, txn.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check existing review")
		}
		if exists {
			return alreadyReviewed()
		}

		review = &models.Review{
			BuyerID:       txn.BuyerID,
			SellerID:      txn.SellerID,
			TransactionID: &txn.ID,
			Rating:        input.Rating,
		}
		if comment != "" {
			review.Comment = &comment
		}
		if err := repo.Create(ctx, review); err != nil {
			if db.IsUniqueViolation(err, uniqueReviewIndex) {
				return alreadyReviewed()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to save review")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewCreated,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Actor:         outbox.ActorFrom(input.Actor),
			Data: payloads.ReviewEvent{
				ReviewID:      review.ID,
				TransactionID: txn.ID,
				SellerID:      txn.SellerID,
				BuyerID:       txn.BuyerID,
				Rating:        review.Rating,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.EnsureTyped(err, "review failed")
	}
	return review, nil
}

func alreadyReviewed() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "transaction already reviewed")
}

func (s *service) SellerReviews(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*SellerReviews, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListBySeller(ctx, sellerID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list reviews")
	}
	summary, err := s.repo.Summary(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to summarise reviews")
	}
	summary.Average = math.Round(summary.Average*100) / 100

	return &SellerReviews{
		Page: pagination.BuildPage(rows, params.Limit, func(r models.Review) pagination.Cursor {
			return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
		}),
		Summary: summary,
	}, nil
}
