package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factura-labs/invoice-pipeline/constants"
	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/state"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "jobs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	st := state.New(uuid.New(), "/tmp/f.pdf", "factura.pdf", 2048)
	st.AddMessage("submitted")
	require.NoError(t, s.Put(ctx, st))

	got, err := s.Get(ctx, st.JobID)
	require.NoError(t, err)
	assert.Equal(t, st.JobID, got.JobID)
	assert.Equal(t, "factura.pdf", got.DocumentInfo.Filename)
	assert.Equal(t, constants.StatusPending, got.Control.Status)
	assert.Len(t, got.Log.Messages, 1)
}

func TestSQLiteStoreUpsertReplacesCheckpoint(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	st := state.New(uuid.New(), "/tmp/f.pdf", "f.pdf", 0)
	require.NoError(t, s.Put(ctx, st))

	st.MarkProcessing()
	st.MarkFailed("INGESTION: corrupt PDF")
	require.NoError(t, s.Put(ctx, st))

	got, err := s.Get(ctx, st.JobID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusFailed, got.Control.Status)
	assert.Contains(t, got.ErrorReason(), "corrupt PDF")

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLiteStoreGetUnknown(t *testing.T) {
	s := newSQLiteStore(t)
	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrJobNotFound)
}

func TestSQLiteStoreDelete(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	st := state.New(uuid.New(), "/tmp/f.pdf", "f.pdf", 0)
	require.NoError(t, s.Put(ctx, st))
	require.NoError(t, s.Delete(ctx, st.JobID))
	assert.ErrorIs(t, s.Delete(ctx, st.JobID), common.ErrJobNotFound)
}

func TestSQLiteStoreListOrderAndLimit(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	var ids []uuid.UUID
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		st := state.New(uuid.New(), "/tmp/f.pdf", "f.pdf", 0)
		st.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Put(ctx, st))
		ids = append(ids, st.JobID)
	}

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].JobID)

	limited, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, ids[2], limited[0].JobID)
}
