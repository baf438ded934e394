package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilipi-dev/pilipi/internal/models"
)

func TestSnapshot_IsAuthenticatedRequiresTokenAndUser(t *testing.T) {
	user := &models.User{ID: 1, UserType: models.UserTypeClient}

	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{"empty", Snapshot{}, false},
		{"token only", Snapshot{Token: "t"}, false},
		{"user only", Snapshot{User: user}, false},
		{"both", Snapshot{Token: "t", User: user}, true},
		{"loading with both", Snapshot{Token: "t", User: user, Loading: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snap.IsAuthenticated())
		})
	}
}

func TestSnapshot_RolesAreMutuallyExclusive(t *testing.T) {
	roles := []models.UserType{"", models.UserTypeClient, models.UserTypeProvider, models.UserTypeMaster, "unknown"}

	for _, role := range roles {
		for _, token := range []string{"", "tok"} {
			snap := Snapshot{Token: token, User: &models.User{UserType: role}}

			count := 0
			for _, flag := range []bool{snap.IsClient(), snap.IsProvider(), snap.IsMaster()} {
				if flag {
					count++
				}
			}
			assert.LessOrEqual(t, count, 1, "role %q token %q", role, token)

			if token == "" {
				assert.Equal(t, 0, count, "unauthenticated sessions have no role")
				assert.Empty(t, snap.Role())
			}
		}
	}
}

func TestStore_StartsLoading(t *testing.T) {
	s := NewStore()

	snap := s.Snapshot()
	assert.True(t, snap.Loading)
	assert.False(t, snap.IsAuthenticated())
	assert.Empty(t, s.Credential())
}

func TestStore_SubscribeDeliversCurrentThenLatest(t *testing.T) {
	s := NewStore()

	ch, cancel := s.Subscribe()
	defer cancel()

	first := <-ch
	assert.True(t, first.Loading)

	for i := 0; i < 3; i++ {
		token := string(rune('a' + i))
		_, err := s.commit(anyGeneration, func(next *state) error {
			next.credential = token
			next.snap = Snapshot{Token: token, User: &models.User{ID: int64(i)}}
			return nil
		})
		require.NoError(t, err)
	}

	latest := <-ch
	assert.Equal(t, "c", latest.Token)
	assert.Equal(t, int64(2), latest.User.ID)
	assert.Equal(t, s.Snapshot().Generation, latest.Generation)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra snapshot: %+v", extra)
	default:
	}
}

func TestStore_CancelClosesChannel(t *testing.T) {
	s := NewStore()

	ch, cancel := s.Subscribe()
	<-ch
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after cancel must not panic
	_, err := s.commit(anyGeneration, func(next *state) error {
		next.snap.Loading = false
		return nil
	})
	assert.NoError(t, err)
}

func TestStore_CommitDiscardsStaleGeneration(t *testing.T) {
	s := NewStore()

	gen, ok := s.seed(s.generation(), "stale-token")
	require.True(t, ok)

	_, err := s.commit(anyGeneration, func(next *state) error {
		clearState(next)
		return nil
	})
	require.NoError(t, err)

	applied, err := s.commit(gen, func(next *state) error {
		next.snap = Snapshot{Token: "stale-token", User: &models.User{ID: 1}}
		return nil
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.False(t, s.Snapshot().IsAuthenticated())
	assert.Empty(t, s.Credential())
}

func TestStore_SeedRefusedAfterCommit(t *testing.T) {
	s := NewStore()
	before := s.generation()

	_, err := s.commit(anyGeneration, func(next *state) error {
		clearState(next)
		return nil
	})
	require.NoError(t, err)

	_, ok := s.seed(before, "late-token")

	assert.False(t, ok)
	assert.Empty(t, s.Credential())
}

func TestStore_CommitErrorLeavesStateUntouched(t *testing.T) {
	s := NewStore()
	before := s.Snapshot()

	applied, err := s.commit(anyGeneration, func(next *state) error {
		next.credential = "half-written"
		return errors.New("disk full")
	})
	assert.Error(t, err)
	assert.False(t, applied)
	assert.Equal(t, before, s.Snapshot())
	assert.Empty(t, s.Credential())
}

func TestStore_UnchangedDoesNotPublish(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	defer cancel()
	<-ch

	gen := s.generation()
	applied, err := s.commit(anyGeneration, func(next *state) error {
		return errUnchanged
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, gen, s.generation())

	select {
	case snap := <-ch:
		t.Fatalf("unexpected publish: %+v", snap)
	default:
	}
}

func TestStore_SnapshotUserIsACopy(t *testing.T) {
	s := NewStore()
	user := &models.User{ID: 7, Username: "ana"}

	_, err := s.commit(anyGeneration, func(next *state) error {
		next.snap = Snapshot{Token: "t", User: user}
		return nil
	})
	require.NoError(t, err)

	user.Username = "changed"
	assert.Equal(t, "ana", s.Snapshot().User.Username)
}
