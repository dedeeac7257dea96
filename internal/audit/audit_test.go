package audit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecorder(t *testing.T) {
	var m Memory
	require.NoError(t, m.Record(context.Background(), Event{Action: ActionCloseSession, Target: "7"}))
	require.NoError(t, m.Record(context.Background(), Event{Action: ActionCancelThread, Target: "9"}))

	events := m.Events()
	require.Len(t, events, 2)
	assert.Equal(t, ActionCloseSession, events[0].Action)
	assert.Equal(t, "9", events[1].Target)
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	assert.NoError(t, r.Record(context.Background(), Event{}))
}

// 需要PostgreSQL，设置TM1MON_AUDIT_DSN后运行
func TestPgStore(t *testing.T) {
	dsn := os.Getenv("TM1MON_AUDIT_DSN")
	if dsn == "" {
		t.Skip("TM1MON_AUDIT_DSN not set")
	}

	ctx := context.Background()
	store, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	instance := "test-" + uuid.NewString()
	at := time.Now().Add(-time.Minute).Truncate(time.Microsecond)
	require.NoError(t, store.Record(ctx, Event{Action: ActionCloseSession, Target: "1", Actor: "Admin", Instance: instance, At: at}))
	require.NoError(t, store.Record(ctx, Event{Action: ActionDisconnectUser, Target: "Bob", Actor: "Admin", Instance: instance}))

	events, err := store.Recent(ctx, instance, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionDisconnectUser, events[0].Action)
	assert.Equal(t, "Bob", events[0].Target)
	assert.Equal(t, ActionCloseSession, events[1].Action)
	assert.True(t, at.Equal(events[1].At))

	events, err = store.Recent(ctx, instance, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestConnectInvalidDSN(t *testing.T) {
	_, err := Connect(context.Background(), "::not a dsn::")
	assert.Error(t, err)
}
