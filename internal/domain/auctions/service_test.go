package auctions

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	pkgevents "github.com/easelbid/easelbid/pkg/events"
)

// MockAuctionRepository is a mock implementation of AuctionRepository
type MockAuctionRepository struct {
	mock.Mock
}

func (m *MockAuctionRepository) GetAuctionByID(ctx context.Context, auctionID uuid.UUID) (*Auction, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Auction), args.Error(1)
}

func (m *MockAuctionRepository) GetAuctionByIDTx(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*Auction, error) {
	args := m.Called(ctx, tx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Auction), args.Error(1)
}

func (m *MockAuctionRepository) CompareAndSwapStatus(ctx context.Context, auctionID uuid.UUID, expected, next AuctionStatus) (bool, error) {
	args := m.Called(ctx, auctionID, expected, next)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuctionRepository) CompareAndSwapStatusTx(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, expected, next AuctionStatus) (bool, error) {
	args := m.Called(ctx, tx, auctionID, expected, next)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuctionRepository) ExtendEndAt(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, by time.Duration) (time.Time, bool, error) {
	args := m.Called(ctx, tx, auctionID, by)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *MockAuctionRepository) ListExpiredLive(ctx context.Context, now time.Time, limit int) ([]*Auction, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Auction), args.Error(1)
}

func (m *MockAuctionRepository) ListClosingSoon(ctx context.Context, now time.Time, window time.Duration, limit int) ([]*Auction, error) {
	args := m.Called(ctx, now, window, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Auction), args.Error(1)
}

func newTestService(repo *MockAuctionRepository) *Service {
	return NewService(
		nil, // transitions outside End/Extend do not open transactions
		repo,
		nil,
		nil,
		nil,
		pkgevents.NoopNotifier{},
		slog.New(slog.DiscardHandler),
	)
}

func TestService_Transitions(t *testing.T) {
	auctionID := uuid.New()

	tests := []struct {
		name      string
		run       func(*Service) error
		setupMock func(*MockAuctionRepository)
		wantErr   error
	}{
		{
			name: "submit moves draft to pending approval",
			run: func(s *Service) error {
				return s.SubmitForApproval(context.Background(), auctionID)
			},
			setupMock: func(repo *MockAuctionRepository) {
				repo.On("CompareAndSwapStatus", mock.Anything, auctionID,
					AuctionStatusDraft, AuctionStatusPendingApproval).Return(true, nil)
			},
			wantErr: nil,
		},
		{
			name: "approve moves pending approval to approved",
			run: func(s *Service) error {
				return s.Approve(context.Background(), auctionID)
			},
			setupMock: func(repo *MockAuctionRepository) {
				repo.On("CompareAndSwapStatus", mock.Anything, auctionID,
					AuctionStatusPendingApproval, AuctionStatusApproved).Return(true, nil)
			},
			wantErr: nil,
		},
		{
			name: "go live moves approved to live",
			run: func(s *Service) error {
				return s.GoLive(context.Background(), auctionID)
			},
			setupMock: func(repo *MockAuctionRepository) {
				repo.On("CompareAndSwapStatus", mock.Anything, auctionID,
					AuctionStatusApproved, AuctionStatusLive).Return(true, nil)
			},
			wantErr: nil,
		},
		{
			name: "guard mismatch on an existing auction is an invalid transition",
			run: func(s *Service) error {
				return s.GoLive(context.Background(), auctionID)
			},
			setupMock: func(repo *MockAuctionRepository) {
				repo.On("CompareAndSwapStatus", mock.Anything, auctionID,
					AuctionStatusApproved, AuctionStatusLive).Return(false, nil)
				repo.On("GetAuctionByID", mock.Anything, auctionID).Return(&Auction{
					ID:     auctionID,
					Status: AuctionStatusDraft,
				}, nil)
			},
			wantErr: ErrInvalidStateTransition,
		},
		{
			name: "guard mismatch on a missing auction reports not found",
			run: func(s *Service) error {
				return s.Approve(context.Background(), auctionID)
			},
			setupMock: func(repo *MockAuctionRepository) {
				repo.On("CompareAndSwapStatus", mock.Anything, auctionID,
					AuctionStatusPendingApproval, AuctionStatusApproved).Return(false, nil)
				repo.On("GetAuctionByID", mock.Anything, auctionID).Return(nil, ErrAuctionNotFound)
			},
			wantErr: ErrAuctionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockAuctionRepository)
			tt.setupMock(repo)

			err := tt.run(newTestService(repo))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestService_Cancel(t *testing.T) {
	auctionID := uuid.New()

	tests := []struct {
		name      string
		setupMock func(*MockAuctionRepository)
		wantErr   error
	}{
		{
			name: "cancels a live auction",
			setupMock: func(repo *MockAuctionRepository) {
				repo.On("GetAuctionByID", mock.Anything, auctionID).Return(&Auction{
					ID:     auctionID,
					Status: AuctionStatusLive,
				}, nil)
				repo.On("CompareAndSwapStatus", mock.Anything, auctionID,
					AuctionStatusLive, AuctionStatusCancelled).Return(true, nil)
			},
			wantErr: nil,
		},
		{
			name: "cancels a draft auction",
			setupMock: func(repo *MockAuctionRepository) {
				repo.On("GetAuctionByID", mock.Anything, auctionID).Return(&Auction{
					ID:     auctionID,
					Status: AuctionStatusDraft,
				}, nil)
				repo.On("CompareAndSwapStatus", mock.Anything, auctionID,
					AuctionStatusDraft, AuctionStatusCancelled).Return(true, nil)
			},
			wantErr: nil,
		},
		{
			name: "refuses to cancel an ended auction",
			setupMock: func(repo *MockAuctionRepository) {
				repo.On("GetAuctionByID", mock.Anything, auctionID).Return(&Auction{
					ID:     auctionID,
					Status: AuctionStatusEnded,
				}, nil)
			},
			wantErr: ErrInvalidStateTransition,
		},
		{
			name: "refuses to cancel an already cancelled auction",
			setupMock: func(repo *MockAuctionRepository) {
				repo.On("GetAuctionByID", mock.Anything, auctionID).Return(&Auction{
					ID:     auctionID,
					Status: AuctionStatusCancelled,
				}, nil)
			},
			wantErr: ErrInvalidStateTransition,
		},
		{
			name: "propagates not found",
			setupMock: func(repo *MockAuctionRepository) {
				repo.On("GetAuctionByID", mock.Anything, auctionID).Return(nil, ErrAuctionNotFound)
			},
			wantErr: ErrAuctionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockAuctionRepository)
			tt.setupMock(repo)

			err := newTestService(repo).Cancel(context.Background(), auctionID)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestPlatformFee(t *testing.T) {
	tests := []struct {
		name       string
		feePercent int32
		feeMinimum int64
		amount     int64
		want       int64
	}{
		{name: "ten percent", feePercent: 1000, feeMinimum: 0, amount: 10000, want: 1000},
		{name: "rounds down", feePercent: 250, feeMinimum: 0, amount: 999, want: 24},
		{name: "minimum floor applies", feePercent: 100, feeMinimum: 500, amount: 10000, want: 500},
		{name: "zero schedule", feePercent: 0, feeMinimum: 0, amount: 10000, want: 0},
		{name: "minimum without percent", feePercent: 0, feeMinimum: 250, amount: 10000, want: 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Auction{FeePercent: tt.feePercent, FeeMinimum: tt.feeMinimum}
			assert.Equal(t, tt.want, platformFee(a, tt.amount))
		})
	}
}
