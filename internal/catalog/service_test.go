package catalog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	medicines map[int64]Medicine
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{medicines: map[int64]Medicine{}, nextID: 1}
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Medicine, error) {
	m, ok := r.medicines[id]
	if !ok {
		return Medicine{}, ErrNotFound
	}
	return m, nil
}

func (r *memoryRepo) List(_ context.Context, state Lifecycle, search string, _, _ int) ([]Medicine, error) {
	var out []Medicine
	for _, m := range r.medicines {
		if m.State != state {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(m.Name), strings.ToLower(search)) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *memoryRepo) Create(_ context.Context, m Medicine) (Medicine, error) {
	m.ID = r.nextID
	r.nextID++
	r.medicines[m.ID] = m
	return m, nil
}

func (r *memoryRepo) Update(_ context.Context, id int64, m Medicine) error {
	current, ok := r.medicines[id]
	if !ok {
		return ErrNotFound
	}
	m.ID = id
	m.State = current.State
	r.medicines[id] = m
	return nil
}

func (r *memoryRepo) Archive(_ context.Context, id int64) error {
	m, ok := r.medicines[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	m.State = LifecycleArchived
	m.ArchivedAt = &now
	r.medicines[id] = m
	return nil
}

func (r *memoryRepo) Restore(_ context.Context, id int64) error {
	m, ok := r.medicines[id]
	if !ok {
		return ErrNotFound
	}
	m.State = LifecycleActive
	m.ArchivedAt = nil
	r.medicines[id] = m
	return nil
}

func TestCreateActivatesMedicine(t *testing.T) {
	svc := NewService(newMemoryRepo())

	m, err := svc.Create(context.Background(), Medicine{Name: "Paracetamol 500", Salt: "Paracetamol"})
	require.NoError(t, err)
	require.Equal(t, LifecycleActive, m.State)
	require.NotZero(t, m.ID)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Medicine{Name: "   "})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, Medicine{Name: "Ibuprofen", MinStock: 50, MaxStock: 10})
	require.ErrorIs(t, err, ErrValidation)

	margin := -5.0
	_, err = svc.Create(ctx, Medicine{Name: "Ibuprofen", DefaultMargin: &margin})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateRejectsArchived(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	m, err := svc.Create(ctx, Medicine{Name: "Cetirizine 10"})
	require.NoError(t, err)
	require.NoError(t, svc.Archive(ctx, m.ID))

	err = svc.Update(ctx, m.ID, Medicine{Name: "Cetirizine 10mg"})
	require.ErrorIs(t, err, ErrArchived)
}

func TestArchiveRestoreRoundTrip(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	m, err := svc.Create(ctx, Medicine{Name: "Amoxicillin 250"})
	require.NoError(t, err)

	require.NoError(t, svc.Archive(ctx, m.ID))
	got, err := svc.Get(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, LifecycleArchived, got.State)
	require.NotNil(t, got.ArchivedAt)

	require.NoError(t, svc.Restore(ctx, m.ID))
	got, err = svc.Get(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, LifecycleActive, got.State)
	require.Nil(t, got.ArchivedAt)

	err = svc.Update(ctx, m.ID, Medicine{Name: "Amoxicillin 250mg"})
	require.NoError(t, err)
}

func TestListDefaultsToActive(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	active, err := svc.Create(ctx, Medicine{Name: "Azithromycin 500"})
	require.NoError(t, err)
	archived, err := svc.Create(ctx, Medicine{Name: "Old Stock Syrup"})
	require.NoError(t, err)
	require.NoError(t, svc.Archive(ctx, archived.ID))

	out, err := svc.List(ctx, "", "", 50, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, active.ID, out[0].ID)
}
