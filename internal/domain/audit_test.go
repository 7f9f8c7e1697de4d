package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuditRecord(t *testing.T) {
	t.Run("valid record", func(t *testing.T) {
		record, err := NewAuditRecord(7, "Write report", AuditActionUpdated, `{"old":1}`, `{"new":2}`, "alice")
		require.NoError(t, err)

		assert.Equal(t, int64(7), record.TaskID)
		assert.Equal(t, "Write report", record.TaskTitle)
		assert.Equal(t, AuditActionUpdated, record.Action)
		assert.Equal(t, "alice", record.ChangedBy)
		assert.WithinDuration(t, time.Now(), record.CreatedAt, 2*time.Second)
	})

	t.Run("blank actor defaults to system", func(t *testing.T) {
		record, err := NewAuditRecord(7, "Write report", AuditActionCreated, "", `{"id":7}`, "")
		require.NoError(t, err)
		assert.Equal(t, SystemActor, record.ChangedBy)
	})

	t.Run("rejects non-positive task id", func(t *testing.T) {
		_, err := NewAuditRecord(0, "Task", AuditActionDeleted, "", "", "")
		assert.ErrorIs(t, err, ErrAuditTaskIDInvalid)
	})

	t.Run("rejects unknown action", func(t *testing.T) {
		_, err := NewAuditRecord(1, "Task", AuditAction("RENAMED"), "", "", "")
		assert.ErrorIs(t, err, ErrInvalidAuditAction)
	})
}

func TestAuditAction(t *testing.T) {
	for _, action := range AllAuditActions() {
		assert.True(t, action.IsValid(), string(action))
	}
	assert.False(t, AuditAction("RENAMED").IsValid())
	assert.Len(t, AllAuditActions(), 4)
}
