package stats_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/stats"
)

func TestService_Snapshot(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	admin := account.Actor{AccountID: uuid.New(), Role: account.RoleAdmin}

	type testCase struct {
		name      string
		actor     account.Actor
		setupMock func(m *stats.MockRepository)
		wantErr   error
		check     func(t *testing.T, s *stats.Snapshot)
	}

	tests := []testCase{
		{
			name:  "Success",
			actor: admin,
			setupMock: func(m *stats.MockRepository) {
				m.EXPECT().OutstandingBalances(gomock.Any(), now).Return(map[uuid.UUID]credit.Balance{
					uuid.New(): {Recording: 10, AI: 0},
					uuid.New(): {Recording: 0, AI: 4},
					uuid.New(): {Recording: -2, AI: 0},
					uuid.New(): {},
				}, nil)
				m.EXPECT().CountOrdersByStatus(gomock.Any()).Return(map[order.Status]int{
					order.StatusPending:   3,
					order.StatusCompleted: 5,
				}, nil)
				m.EXPECT().CountOpenRevisions(gomock.Any()).Return(2, nil)
			},
			check: func(t *testing.T, s *stats.Snapshot) {
				assert.Equal(t, 2, s.ActiveClients)
				assert.Equal(t, credit.Balance{Recording: 8, AI: 4}, s.Outstanding)
				assert.Equal(t, 3, s.PendingOrders)
				assert.Equal(t, 2, s.PendingRevisions)
				assert.Len(t, s.OrdersByStatus, len(order.Statuses))
				assert.Equal(t, 0, s.OrdersByStatus[order.StatusCanceled])
				assert.Equal(t, now, s.TakenAt)
			},
		},
		{
			name:    "ClientForbidden",
			actor:   account.Actor{AccountID: uuid.New(), Role: account.RoleClient},
			wantErr: apperr.ErrForbidden,
		},
		{
			name:  "RepoError",
			actor: admin,
			setupMock: func(m *stats.MockRepository) {
				m.EXPECT().OutstandingBalances(gomock.Any(), now).Return(nil, errors.New("db error"))
			},
			wantErr: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := stats.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := stats.NewService(repo, func() time.Time { return now })
			got, err := svc.Snapshot(context.Background(), tt.actor)

			if tt.wantErr != nil {
				require.Error(t, err)

				if apperr.IsDomain(tt.wantErr) {
					require.ErrorIs(t, err, tt.wantErr)
				}

				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}
