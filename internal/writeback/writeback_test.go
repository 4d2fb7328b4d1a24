package writeback

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/ankitab/internal/domain"
	"github.com/conorfennell/ankitab/internal/frame"
)

type write struct {
	table domain.Table
	rows  []domain.Row
	mode  domain.WriteMode
}

type fakeStore struct {
	writes  []write
	indices []domain.Table
	fail    error
}

func (s *fakeStore) WriteTable(t domain.Table, rows []domain.Row, mode domain.WriteMode) error {
	if s.fail != nil {
		return s.fail
	}
	s.writes = append(s.writes, write{t, rows, mode})
	return nil
}

func (s *fakeStore) UpdateIndices(t domain.Table) error {
	s.indices = append(s.indices, t)
	return nil
}

type fakeBackup struct {
	calls []time.Time
}

func (b *fakeBackup) Backup(now time.Time) (string, error) {
	b.calls = append(b.calls, now)
	return "/backups/copy.anki2", nil
}

var stamp = time.Unix(2000, 0)

func clock() time.Time { return stamp }

func notesFrame(t *testing.T) *frame.Frame {
	t.Helper()
	lookups := &domain.Lookups{
		ModelNames:  map[int64]string{10: "Basic"},
		ModelFields: map[int64][]string{10: {"Front", "Back"}},
		SortFields:  map[int64]int{10: 0},
		NoteModels:  map[int64]int64{1: 10, 2: 10},
	}
	rows := []domain.Row{
		{"id": int64(1), "guid": "abc", "mid": int64(10), "mod": int64(1000), "usn": int64(5), "tags": "verb",
			"flds": "hola\x1fhello", "sfld": "hola", "csum": int64(0), "flags": int64(0), "data": ""},
		{"id": int64(2), "guid": "def", "mid": int64(10), "mod": int64(1000), "usn": int64(5), "tags": "",
			"flds": "uno\x1fone", "sfld": "uno", "csum": int64(0), "flags": int64(0), "data": ""},
	}
	f, err := frame.FromRows(domain.Notes, nil, rows, frame.WithLookups(lookups), frame.WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, f.Normalize())
	f.SetBaseline(f.Clone())
	return f
}

func TestPermissionsMode(t *testing.T) {
	testCases := []struct {
		name     string
		perm     Permissions
		expected domain.WriteMode
	}{
		{"Modify only", Permissions{Modify: true}, domain.Update},
		{"Add only", Permissions{Add: true}, domain.Append},
		{"Delete only", Permissions{Delete: true}, domain.Replace},
		{"Modify and add", Permissions{Modify: true, Add: true}, domain.Replace},
		{"Everything", Permissions{Modify: true, Add: true, Delete: true}, domain.Replace},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.perm.Mode())
		})
	}
}

func TestPlanRefusesLossyWrites(t *testing.T) {
	f := notesFrame(t)
	require.NoError(t, f.Set(1, "ntags", []string{"changed"}))
	require.True(t, f.Delete(2))

	_, err := Plan(Permissions{Modify: true}, f)
	assert.ErrorIs(t, err, domain.ErrLossyWrite)

	_, err = Plan(Permissions{Delete: true}, f)
	assert.ErrorIs(t, err, domain.ErrLossyWrite)

	items, err := Plan(Permissions{Modify: true, Delete: true}, f)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.Replace, items[0].Mode)
}

func TestPlanSkipsUnchanged(t *testing.T) {
	items, err := Plan(Permissions{Modify: true}, notesFrame(t), nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPlanNeedsPermission(t *testing.T) {
	_, err := Plan(Permissions{}, notesFrame(t))
	assert.ErrorIs(t, err, ErrNoPermission)
}

func TestWrite(t *testing.T) {
	f := notesFrame(t)
	require.NoError(t, f.Set(1, "ntags", []string{"changed", "verb"}))
	items, err := Plan(Permissions{Modify: true}, f)
	require.NoError(t, err)

	store := &fakeStore{}
	backup := &fakeBackup{}
	path, err := New(store, backup, WithClock(clock)).Write(items...)
	require.NoError(t, err)

	assert.Equal(t, "/backups/copy.anki2", path)
	assert.Equal(t, []time.Time{stamp}, backup.calls)
	assert.Equal(t, []domain.Table{domain.Notes}, store.indices)
	require.Len(t, store.writes, 1)

	w := store.writes[0]
	assert.Equal(t, domain.Notes, w.table)
	assert.Equal(t, domain.Update, w.mode)
	require.Len(t, w.rows, 2)
	assert.Equal(t, "changed verb", w.rows[0]["tags"])
	assert.Equal(t, int64(frame.PendingUSN), w.rows[0]["usn"])
	assert.Equal(t, stamp.Unix(), w.rows[0]["mod"])
	assert.Equal(t, int64(5), w.rows[1]["usn"])
	assert.Equal(t, int64(1000), w.rows[1]["mod"])

	assert.Equal(t, frame.FormatConvenient, f.Format())
}

func TestWriteConversionFailureWritesNothing(t *testing.T) {
	f := notesFrame(t)
	require.NoError(t, f.Set(1, "nmodel", "Unknown"))

	store := &fakeStore{}
	backup := &fakeBackup{}
	_, err := New(store, backup).Write(Item{Frame: f, Mode: domain.Update})
	assert.ErrorIs(t, err, domain.ErrLookupNotFound)
	assert.Empty(t, backup.calls)
	assert.Empty(t, store.writes)
}

func TestWriteReportsBackupOnFailure(t *testing.T) {
	f := notesFrame(t)
	require.NoError(t, f.Set(1, "ntags", []string{"changed"}))

	store := &fakeStore{fail: errors.New("disk full")}
	path, err := New(store, &fakeBackup{}).Write(Item{Frame: f, Mode: domain.Update})
	require.Error(t, err)
	assert.Equal(t, "/backups/copy.anki2", path)
}

func TestWriteNothing(t *testing.T) {
	backup := &fakeBackup{}
	path, err := New(&fakeStore{}, backup).Write()
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Empty(t, backup.calls)
}
