// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coursesmith.db")
	s, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedTenant(t *testing.T, s *Store, name string) *model.Tenant {
	t.Helper()
	tn := &model.Tenant{Name: name, IsActive: true}
	require.NoError(t, s.Tenants.Create(context.Background(), tn))
	return tn
}

func seedCourse(t *testing.T, s *Store, tenantID, title string) *model.Course {
	t.Helper()
	c := &model.Course{TenantID: tenantID, Title: title}
	require.NoError(t, s.Courses.Create(context.Background(), c))
	return c
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coursesmith.db")

	s1, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	seedTenant(t, s1, "acme")
	require.NoError(t, s1.Close())

	// reopening must not re-run migrations or lose data
	s2, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	var n int
	require.NoError(t, s2.DB().QueryRow("SELECT COUNT(*) FROM tenants").Scan(&n))
	require.Equal(t, 1, n)
}

func TestTenantIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acme := seedTenant(t, s, "acme")
	rival := seedTenant(t, s, "rival")
	course := seedCourse(t, s, acme.ID, "Intro to Widgets")

	// owner sees it
	got, err := s.Courses.ByID(ctx, acme.ID, course.ID)
	require.NoError(t, err)
	require.Equal(t, "Intro to Widgets", got.Title)

	// the other tenant gets the same answer as for a nonexistent row
	_, err = s.Courses.ByID(ctx, rival.ID, course.ID)
	require.ErrorIs(t, err, fault.ErrNotFound)

	_, err = s.Courses.ByID(ctx, acme.ID, "no-such-course")
	require.ErrorIs(t, err, fault.ErrNotFound)

	// list is scoped too
	mine, err := s.Courses.List(ctx, acme.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	theirs, err := s.Courses.List(ctx, rival.ID)
	require.NoError(t, err)
	require.Empty(t, theirs)
}

func TestTenantRowsCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acme := seedTenant(t, s, "acme")
	rival := seedTenant(t, s, "rival")
	course := seedCourse(t, s, acme.ID, "Intro to Widgets")
	seedTree(t, s, acme.ID, course.ID)
	seedJob(t, s, acme.ID, course.ID, model.JobIngest)
	keep := seedCourse(t, s, rival.ID, "Rival Course")

	_, err := s.DB().ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, acme.ID)
	require.NoError(t, err)

	for _, table := range []string{"courses", "material_nodes", "material_entries", "jobs"} {
		var n int
		require.NoError(t, s.DB().QueryRow(
			`SELECT COUNT(*) FROM `+table+` WHERE tenant_id = ?`, acme.ID).Scan(&n))
		require.Zero(t, n, table)
	}

	// the other tenant is untouched
	got, err := s.Courses.ByID(ctx, rival.ID, keep.ID)
	require.NoError(t, err)
	require.Equal(t, "Rival Course", got.Title)
}
