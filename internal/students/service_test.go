package students

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-edu/meridian-backoffice/internal/audit"
	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
)

type memRepo struct {
	students map[int64]Student
	nextID   int64
}

func newMemRepo() *memRepo {
	return &memRepo{students: map[int64]Student{}, nextID: 1}
}

func (m *memRepo) Create(_ context.Context, s Student) (Student, error) {
	s.ID = m.nextID
	m.nextID++
	m.students[s.ID] = s
	return s, nil
}

func (m *memRepo) Update(_ context.Context, s Student) (Student, error) {
	if _, ok := m.students[s.ID]; !ok {
		return Student{}, httpx.ErrNotFound
	}
	m.students[s.ID] = s
	return s, nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.students[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.students, id)
	return nil
}

func (m *memRepo) Get(_ context.Context, id int64) (Student, error) {
	s, ok := m.students[id]
	if !ok {
		return Student{}, httpx.ErrNotFound
	}
	return s, nil
}

func (m *memRepo) List(_ context.Context, _ ListFilters) ([]Student, int, error) {
	var list []Student
	for _, s := range m.students {
		list = append(list, s)
	}
	return list, len(list), nil
}

type failingAudit struct {
	entries []audit.Entry
	failErr error
}

func (f *failingAudit) Record(_ context.Context, entry audit.Entry) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func TestCreateSurvivesAuditFailure(t *testing.T) {
	repo := newMemRepo()
	auditor := &failingAudit{failErr: errors.New("audit store down")}
	svc := NewService(repo, auditor, slog.New(slog.DiscardHandler))

	created, err := svc.Create(context.Background(), 1, Student{FullName: "Asha Verma"})
	require.NoError(t, err, "secondary entity mutations are not compensated")
	assert.Contains(t, repo.students, created.ID)
}

func TestCreateAuditsWhenHealthy(t *testing.T) {
	repo := newMemRepo()
	auditor := &failingAudit{}
	svc := NewService(repo, auditor, slog.New(slog.DiscardHandler))

	created, err := svc.Create(context.Background(), 7, Student{FullName: "Asha Verma"})
	require.NoError(t, err)

	require.Len(t, auditor.entries, 1)
	entry := auditor.entries[0]
	assert.Equal(t, audit.ActionCreate, entry.Action)
	assert.Equal(t, "students", entry.Entity)
	assert.Equal(t, created.ID, entry.EntityID)
	assert.Equal(t, "Asha Verma", entry.Label)
	assert.Equal(t, int64(7), entry.ActorID)
}

func TestDeleteAuditsSnapshotName(t *testing.T) {
	repo := newMemRepo()
	auditor := &failingAudit{}
	svc := NewService(repo, auditor, slog.New(slog.DiscardHandler))

	created, err := svc.Create(context.Background(), 1, Student{FullName: "Ravi Nair"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), 1, created.ID))
	require.Len(t, auditor.entries, 2)
	assert.Equal(t, "Ravi Nair", auditor.entries[1].Meta["deleted_name"])
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemRepo(), &failingAudit{}, slog.New(slog.DiscardHandler))
	_, err := svc.Create(context.Background(), 1, Student{})
	require.ErrorIs(t, err, httpx.ErrValidation)
}
