package coachgate_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	coachgate "github.com/vireohealth/coachgate"
)

func TestSynchronizer_Refresh(t *testing.T) {
	spec := coachgate.DefaultCookieSpec()
	cookies := coachgate.SessionCookies{
		AccessToken:  "access",
		RefreshToken: "refresh",
	}

	t.Run("returns session and mutations on success", func(t *testing.T) {
		gateway := &MockGateway{}
		want := &coachgate.SessionObject{UserID: "user-123", Email: "jo@example.com"}
		mutations := spec.SetPair(nil, "new-access", "new-refresh")

		gateway.On("RefreshSession", mock.Anything, cookies).Return(want, mutations, nil)

		sync := coachgate.NewSynchronizer(gateway, coachgate.SynchronizerWithLogger(silentLogger{}))
		session, got := sync.Refresh(context.Background(), cookies)

		assert.Equal(t, want, session)
		assert.Equal(t, mutations, got)
		gateway.AssertExpectations(t)
	})

	t.Run("invalid session is the logged-out path, mutations preserved", func(t *testing.T) {
		gateway := &MockGateway{}
		clearing := spec.ClearPair(nil)

		gateway.On("RefreshSession", mock.Anything, cookies).
			Return(nil, clearing, fmt.Errorf("expired: %w", coachgate.ErrSessionInvalid))

		sync := coachgate.NewSynchronizer(gateway, coachgate.SynchronizerWithLogger(silentLogger{}))
		session, got := sync.Refresh(context.Background(), cookies)

		assert.Nil(t, session)
		assert.Equal(t, clearing, got)
		gateway.AssertExpectations(t)
	})

	t.Run("provider outage degrades to unauthenticated with no mutations", func(t *testing.T) {
		gateway := &MockGateway{}

		gateway.On("RefreshSession", mock.Anything, cookies).
			Return(nil, nil, errors.New("connection refused"))

		sync := coachgate.NewSynchronizer(gateway, coachgate.SynchronizerWithLogger(silentLogger{}))
		session, got := sync.Refresh(context.Background(), cookies)

		assert.Nil(t, session)
		assert.Empty(t, got, "a provider blip must not wipe the caller's cookies")
		gateway.AssertExpectations(t)
	})

	t.Run("outage discards mutations even when the gateway produced some", func(t *testing.T) {
		gateway := &MockGateway{}

		gateway.On("RefreshSession", mock.Anything, cookies).
			Return(nil, spec.ClearPair(nil), errors.New("i/o timeout"))

		sync := coachgate.NewSynchronizer(gateway, coachgate.SynchronizerWithLogger(silentLogger{}))
		session, got := sync.Refresh(context.Background(), cookies)

		assert.Nil(t, session)
		assert.Empty(t, got)
	})
}
