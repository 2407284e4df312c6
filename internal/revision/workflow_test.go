package revision_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/revision"
)

var now = time.Date(2024, 4, 2, 15, 0, 0, 0, time.UTC)

func TestApply_Closure(t *testing.T) {
	owner := uuid.New()
	in := revision.Input{
		AdminFeedback: "feedback",
		AudioURL:      "https://cdn/take.mp3",
		ResponseText:  "answer",
	}

	actors := map[account.Role]account.Actor{
		account.RoleClient: {AccountID: owner, Role: account.RoleClient},
		account.RoleAdmin:  {AccountID: uuid.New(), Role: account.RoleAdmin},
	}

	for _, from := range revision.Statuses {
		for _, to := range revision.Statuses {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				role, ok := revision.Trigger(from, to)

				if ok {
					r := &revision.Request{AccountID: owner, Status: from}
					require.NoError(t, revision.Apply(r, to, actors[role], in, now))
					assert.Equal(t, to, r.Status)
					assert.Equal(t, to.Terminal(), r.CompletedAt != nil)

					return
				}

				for _, actor := range actors {
					r := &revision.Request{AccountID: owner, Status: from}
					require.ErrorIs(t, revision.Apply(r, to, actor, in, now), apperr.ErrInvalidTransition)
				}
			})
		}
	}
}

func TestApply_TerminalStatesHaveNoExits(t *testing.T) {
	for _, from := range []revision.Status{revision.StatusDenied, revision.StatusFinalized} {
		for _, to := range revision.Statuses {
			_, ok := revision.Trigger(from, to)
			assert.False(t, ok, "%s -> %s", from, to)
		}
	}
}

func TestApply(t *testing.T) {
	owner := uuid.New()
	admin := account.Actor{AccountID: uuid.New(), Role: account.RoleAdmin}
	client := account.Actor{AccountID: owner, Role: account.RoleClient}

	type testCase struct {
		name    string
		from    revision.Status
		to      revision.Status
		actor   account.Actor
		in      revision.Input
		wantErr error
		check   func(t *testing.T, r *revision.Request)
	}

	tests := []testCase{
		{
			name:    "InfoRequestNeedsFeedback",
			from:    revision.StatusRequested,
			to:      revision.StatusInfoRequested,
			actor:   admin,
			wantErr: apperr.ErrMissingRequiredField,
		},
		{
			name:    "FinalizeNeedsAudio",
			from:    revision.StatusInProgress,
			to:      revision.StatusFinalized,
			actor:   admin,
			wantErr: apperr.ErrMissingRequiredField,
		},
		{
			name:    "ResponseNeedsContent",
			from:    revision.StatusInfoRequested,
			to:      revision.StatusClientResponded,
			actor:   client,
			in:      revision.Input{ResponseText: "  "},
			wantErr: apperr.ErrMissingRequiredField,
		},
		{
			name:    "AdminCannotRespond",
			from:    revision.StatusInfoRequested,
			to:      revision.StatusClientResponded,
			actor:   admin,
			in:      revision.Input{ResponseText: "x"},
			wantErr: apperr.ErrForbidden,
		},
		{
			name:    "OtherClientCannotRespond",
			from:    revision.StatusInfoRequested,
			to:      revision.StatusClientResponded,
			actor:   account.Actor{AccountID: uuid.New(), Role: account.RoleClient},
			in:      revision.Input{ResponseText: "x"},
			wantErr: apperr.ErrForbidden,
		},
		{
			name:  "AudioOnlyResponse",
			from:  revision.StatusInfoRequested,
			to:    revision.StatusClientResponded,
			actor: client,
			in:    revision.Input{ResponseAudioURL: "https://cdn/guide.mp3"},
			check: func(t *testing.T, r *revision.Request) {
				assert.Nil(t, r.ClientResponseText)
				assert.Equal(t, "https://cdn/guide.mp3", *r.ClientResponseAudioURL)
				assert.Equal(t, now, *r.ClientRespondedAt)
			},
		},
		{
			name:  "DenialKeepsFeedback",
			from:  revision.StatusClientResponded,
			to:    revision.StatusDenied,
			actor: admin,
			in:    revision.Input{AdminFeedback: "out of scope"},
			check: func(t *testing.T, r *revision.Request) {
				assert.Equal(t, "out of scope", *r.AdminFeedback)
				assert.Equal(t, now, *r.CompletedAt)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &revision.Request{AccountID: owner, Status: tt.from}
			err := revision.Apply(r, tt.to, tt.actor, tt.in, now)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, r.Status)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, r.Status)

			if tt.check != nil {
				tt.check(t, r)
			}
		})
	}
}
