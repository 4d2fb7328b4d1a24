package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/ankitab/internal/domain"
)

func TestUnmodifiedReload(t *testing.T) {
	for _, table := range domain.Tables() {
		t.Run(table.String(), func(t *testing.T) {
			f, err := Load(table, testSource())
			require.NoError(t, err)

			mod, err := f.WasModified()
			require.NoError(t, err)
			for id, changed := range mod {
				assert.False(t, changed, "row %d", id)
			}
			added, err := f.WasAdded()
			require.NoError(t, err)
			for id, isNew := range added {
				assert.False(t, isNew, "row %d", id)
			}
			deleted, err := f.WasDeleted()
			require.NoError(t, err)
			assert.Empty(t, deleted)

			diff, err := f.ModifiedColumns()
			require.NoError(t, err)
			assert.Empty(t, diff.IDs)
		})
	}
}

func TestSingleCellChange(t *testing.T) {
	f, err := Load(domain.Cards, testSource())
	require.NoError(t, err)
	require.NoError(t, f.Set(101, "civl", 20))

	mod, err := f.WasModified()
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{100: false, 101: true}, mod)

	diff, err := f.ModifiedColumns()
	require.NoError(t, err)
	assert.Equal(t, []int64{101}, diff.IDs)
	assert.Equal(t, []string{"civl"}, diff.ChangedColumns(101))
	assert.True(t, diff.Cell(101, "civl"))
	assert.False(t, diff.Cell(101, "cdue"))

	all, err := f.ModifiedColumns(OnlyChanged(false))
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 101}, all.IDs)
	assert.Empty(t, all.ChangedColumns(100))
}

func TestAddedAndDeleted(t *testing.T) {
	f, err := Load(domain.Cards, testSource())
	require.NoError(t, err)

	assert.True(t, f.Delete(100))
	assert.False(t, f.Delete(100))
	require.NoError(t, f.Insert(300, domain.Row{"nid": 1, "cdeck": "Default"}))

	deleted, err := f.WasDeleted()
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, deleted)

	added, err := f.WasAdded()
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{101: false, 300: true}, added)

	mod, err := f.WasModified()
	require.NoError(t, err)
	assert.True(t, mod[300])
	mod, err = f.WasModified(UnknownAs(false))
	require.NoError(t, err)
	assert.False(t, mod[300])

	s, err := f.Summarize()
	require.NoError(t, err)
	assert.Equal(t, Summary{N: 2, Modified: 0, Added: 1, Deleted: 1, HasChanged: true}, s)
}

func TestDeletedIsSorted(t *testing.T) {
	base, err := FromRows(domain.Revs, nil, []domain.Row{{"id": 9}, {"id": 3}, {"id": 7}, {"id": 1}})
	require.NoError(t, err)
	cur, err := FromRows(domain.Revs, nil, []domain.Row{{"id": 7}})
	require.NoError(t, err)

	deleted, err := cur.WasDeleted(Against(base))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 9}, deleted)
}

func TestAgainstIsKeyedByID(t *testing.T) {
	a, err := FromRows(domain.Revs, nil, []domain.Row{{"id": 1, "ease": 1}, {"id": 2, "ease": 2}})
	require.NoError(t, err)
	b, err := FromRows(domain.Revs, nil, []domain.Row{{"id": 2, "ease": 2}, {"id": 1, "ease": 1}})
	require.NoError(t, err)

	mod, err := a.WasModified(Against(b))
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: false, 2: false}, mod)
}

func TestBaselineRequired(t *testing.T) {
	f, err := Empty(domain.Revs, nil)
	require.NoError(t, err)
	_, err = f.WasModified()
	assert.ErrorIs(t, err, errNoBaseline)

	f.SetBaseline(f.Clone())
	s, err := f.Summarize()
	require.NoError(t, err)
	assert.False(t, s.HasChanged)
}
