package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemorySeoulChatRepository(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) SeoulChatRepository {
		return NewMemorySeoulChatRepository()
	})
}

func TestMemorySeoulChatRepository_AccessLogs(t *testing.T) {
	repo := NewMemorySeoulChatRepository()
	assert.NoError(t, repo.CreateAccessLog(context.Background(), AccessLog{Method: "POST", Url: "/auth/login", Status: 401}))

	logs := repo.AccessLogs()
	if assert.Len(t, logs, 1) {
		assert.Equal(t, 401, logs[0].Status)
	}
}

func TestMemorySeoulChatRepository_PingCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, NewMemorySeoulChatRepository().Ping(ctx), context.Canceled)
}
