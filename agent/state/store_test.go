package state

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
)

type closableStore interface {
	Store
	Close() error
}

func storeFactories(t *testing.T) map[string]func(t *testing.T) closableStore {
	t.Helper()

	factories := map[string]func(t *testing.T) closableStore{
		"memory": func(t *testing.T) closableStore {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) closableStore {
			store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoints.db"))
			require.NoError(t, err)
			return store
		},
	}
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		factories["postgres"] = func(t *testing.T) closableStore {
			store, err := NewPostgresStore(context.Background(), PostgresConfig{DSN: dsn})
			require.NoError(t, err)
			return store
		}
	}
	return factories
}

func sampleState(sessionID string) *TurnState {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	st := NewTurnState(sessionID, "user-1", now)
	st.BeginTurn("What is the total of INV-001?", now)
	st.Fold(Delta{
		Intent: &contractx.Intent{Type: contractx.IntentQA, Confidence: 0.9, Reasoning: "asks a question"},
		CurrentResponse: &contractx.Response{
			Kind: contractx.ResponseAnswer,
			Answer: &contractx.AnswerResponse{
				Question:   "What is the total of INV-001?",
				Answer:     "$22,000",
				Sources:    []string{"INV-001"},
				Confidence: 0.8,
				Timestamp:  now,
			},
		},
		Messages: []contractx.Message{
			{Role: contractx.RoleUser, Content: "What is the total of INV-001?", At: now},
			{Role: contractx.RoleAssistant, Content: "$22,000", Intent: contractx.IntentQA, At: now},
		},
		ActionsTaken:    []string{"classify_intent", "qa_agent", "update_memory"},
		ActiveDocuments: []string{"INV-001"},
	})
	st.ConversationSummary = "User asked about INV-001."
	st.Turn = 1
	return st
}

func TestStores_RoundTrip(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			want := sampleState("session-rt")
			require.NoError(t, store.Save(ctx, want))

			got, err := store.Load(ctx, "session-rt")
			require.NoError(t, err)
			assert.Equal(t, want.SessionID, got.SessionID)
			assert.Equal(t, want.UserID, got.UserID)
			assert.Equal(t, want.ConversationSummary, got.ConversationSummary)
			assert.Equal(t, want.ActiveDocuments, got.ActiveDocuments)
			assert.Equal(t, want.ActionsTaken, got.ActionsTaken)
			assert.Len(t, got.Messages, 2)
			require.NotNil(t, got.CurrentResponse)
			assert.Equal(t, "$22,000", got.CurrentResponse.Text())
			assert.Equal(t, 1, got.Turn)
		})
	}
}

func TestStores_LastWriterWins(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			first := sampleState("session-lww")
			require.NoError(t, store.Save(ctx, first))

			second := first.Clone()
			second.ConversationSummary = "second"
			second.Turn = 2
			require.NoError(t, store.Save(ctx, second))

			got, err := store.Load(ctx, "session-lww")
			require.NoError(t, err)
			assert.Equal(t, "second", got.ConversationSummary)
			assert.Equal(t, 2, got.Turn)
		})
	}
}

func TestStores_NotFoundAndDelete(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			_, err := store.Load(ctx, "missing")
			assert.ErrorIs(t, err, ErrCheckpointNotFound)

			require.NoError(t, store.Save(ctx, sampleState("session-del")))
			require.NoError(t, store.Delete(ctx, "session-del"))

			_, err = store.Load(ctx, "session-del")
			assert.ErrorIs(t, err, ErrCheckpointNotFound)

			// deleting an absent session is not an error
			assert.NoError(t, store.Delete(ctx, "session-del"))
		})
	}
}

func TestStores_RejectInvalid(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			assert.ErrorIs(t, store.Save(ctx, nil), ErrNilTurnState)
			assert.ErrorIs(t, store.Save(ctx, &TurnState{}), ErrInvalidSession)

			_, err := store.Load(ctx, " ")
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestStores_Closed(t *testing.T) {
	for _, name := range []string{"memory", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			store := storeFactories(t)[name](t)
			require.NoError(t, store.Close())
			require.NoError(t, store.Close())

			_, err := store.Load(context.Background(), "s")
			assert.ErrorIs(t, err, ErrStoreClosed)
			assert.ErrorIs(t, store.Save(context.Background(), sampleState("s")), ErrStoreClosed)
		})
	}
}

func TestSQLiteStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")

	store1, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Save(context.Background(), sampleState("durable")))
	require.NoError(t, store1.Close())

	store2, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	got, err := store2.Load(context.Background(), "durable")
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-001"}, got.ActiveDocuments)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := NewSQLiteStore("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}

func TestSQLiteStore_Concurrent(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer wg.Done()
			sessionID := "s-" + string(rune('a'+id%5))
			for j := 0; j < 10; j++ {
				if j%2 == 0 {
					_ = store.Save(context.Background(), sampleState(sessionID))
				} else {
					_, _ = store.Load(context.Background(), sessionID)
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		_, err := store.Load(context.Background(), "s-"+string(rune('a'+i)))
		assert.NoError(t, err)
	}
}
