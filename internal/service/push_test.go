package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusnotify/internal/model"
)

func registerTokens(t *testing.T, repo *memTokens, userID int64, tokens ...string) {
	t.Helper()
	for _, tok := range tokens {
		_, err := repo.Upsert(context.Background(), userID, &model.RegisterTokenRequest{Token: tok, Platform: model.PlatformAndroid})
		require.NoError(t, err)
	}
}

func TestSend_ChunksByProviderBatchSize(t *testing.T) {
	repo := newMemTokens()
	provider := &mockProvider{name: "fake", maxBatch: 2}
	d := NewPushDispatcher(repo, 2, quietLogger(), provider)

	tokens := []string{"a", "b", "c", "d", "e"}
	report, err := d.Send(context.Background(), tokens, model.PushMessage{Title: "t"}, nil)

	require.NoError(t, err)
	assert.Equal(t, 5, report.SuccessCount)
	assert.Equal(t, 0, report.FailureCount)
	assert.Len(t, provider.batches, 3)
	assert.ElementsMatch(t, tokens, provider.sentTokens())
}

func TestSend_RoutesTokensToProviders(t *testing.T) {
	repo := newMemTokens()
	expo := &mockProvider{name: "expo", maxBatch: 100, accepts: model.IsExpoToken}
	fcm := &mockProvider{name: "fcm", maxBatch: 500, accepts: func(tok string) bool { return !model.IsExpoToken(tok) }}
	d := NewPushDispatcher(repo, 4, quietLogger(), expo, fcm)

	report, err := d.Send(context.Background(), []string{"ExponentPushToken[x]", "fcm-1"}, model.PushMessage{}, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, []string{"ExponentPushToken[x]"}, expo.sentTokens())
	assert.Equal(t, []string{"fcm-1"}, fcm.sentTokens())
}

func TestSend_PermanentFailureDeactivatesOnlyThatToken(t *testing.T) {
	repo := newMemTokens()
	registerTokens(t, repo, 1, "good", "dead", "flaky")
	provider := &mockProvider{
		name:      "fake",
		maxBatch:  10,
		permanent: map[string]bool{"dead": true},
		transient: map[string]bool{"flaky": true},
	}
	d := NewPushDispatcher(repo, 1, quietLogger(), provider)

	report, err := d.SendToUsers(context.Background(), []int64{1}, model.PushMessage{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 2, report.FailureCount)
	assert.Equal(t, []string{"dead"}, report.Deactivated)
	assert.False(t, repo.active("dead"))
	assert.True(t, repo.active("flaky"))
	assert.True(t, repo.active("good"))

	provider.batches = nil
	_, err = d.SendToUsers(context.Background(), []int64{1}, model.PushMessage{}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"good", "flaky"}, provider.sentTokens())
}

func TestSend_BatchErrorCountsAllTokensTransient(t *testing.T) {
	repo := newMemTokens()
	registerTokens(t, repo, 1, "a", "b")
	provider := &mockProvider{name: "fake", maxBatch: 10, batchErr: fmt.Errorf("boom")}
	d := NewPushDispatcher(repo, 1, quietLogger(), provider)

	report, err := d.SendToUsers(context.Background(), []int64{1}, model.PushMessage{}, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, report.SuccessCount)
	assert.Equal(t, 2, report.FailureCount)
	assert.True(t, repo.active("a"))
	assert.True(t, repo.active("b"))
}

func TestSendToUsers_NoActiveTokens(t *testing.T) {
	repo := newMemTokens()
	registerTokens(t, repo, 1, "old")
	require.NoError(t, repo.Deactivate(context.Background(), 1, "old"))
	provider := &mockProvider{name: "fake", maxBatch: 10}
	d := NewPushDispatcher(repo, 1, quietLogger(), provider)

	report, err := d.SendToUsers(context.Background(), []int64{1, 2}, model.PushMessage{}, nil)

	require.NoError(t, err)
	assert.True(t, report.NoActiveTokens)
	assert.Empty(t, provider.batches)
}

func TestSend_UnroutableTokensCountAsFailures(t *testing.T) {
	provider := &mockProvider{name: "expo", maxBatch: 10, accepts: model.IsExpoToken}
	d := NewPushDispatcher(newMemTokens(), 1, quietLogger(), provider)

	report, err := d.Send(context.Background(), []string{"plain"}, model.PushMessage{}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, report.FailureCount)
	assert.Empty(t, provider.batches)
}

func TestDeviceService_RegisterTwiceKeepsOneRow(t *testing.T) {
	repo := newMemTokens()
	svc := NewDeviceService(repo, quietLogger())
	ctx := context.Background()

	first, err := svc.Register(ctx, 1, &model.RegisterTokenRequest{Token: "ExponentPushToken[abc]"})
	require.NoError(t, err)
	assert.Equal(t, model.PlatformExpo, first.Platform)

	version := "2.0.1"
	second, err := svc.Register(ctx, 2, &model.RegisterTokenRequest{Token: "ExponentPushToken[abc]", AppVersion: &version})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(2), second.UserID)

	mine, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, mine)

	theirs, err := svc.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "2.0.1", *theirs[0].AppVersion)
}

func TestDeviceService_UnregisterOthersToken(t *testing.T) {
	repo := newMemTokens()
	registerTokens(t, repo, 1, "tok")
	svc := NewDeviceService(repo, quietLogger())

	err := svc.Unregister(context.Background(), 2, "tok")

	assert.ErrorIs(t, err, model.ErrTokenNotFound)
	assert.True(t, repo.active("tok"))
}
