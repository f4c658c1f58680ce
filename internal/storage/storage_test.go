package storage

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/pylift/internal/ir"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "pylift.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.CreateSchema())
	return db
}

func sampleRun(id string, at time.Time) *ir.Run {
	return &ir.Run{
		ID:        id,
		StartedAt: at,
		Source:    "src",
		IRVersion: ir.Version,
		Files:     []string{"a.py", "b.py"},
		Diagnostics: []ir.Diagnostic{
			{Path: "a.py", PatternID: "off_by_one_loop", Severity: ir.SevError,
				Span: ir.Span{StartPos: ir.Position{Line: 6, Column: 14}, EndPos: ir.Position{Line: 6, Column: 35}}, Message: "m1", SuggestedFix: "range(len(items))"},
			{Path: "a.py", PatternID: "empty_catch", Severity: ir.SevWarning,
				Span: ir.Span{StartPos: ir.Position{Line: 47, Column: 9}, EndPos: ir.Position{Line: 47, Column: 13}}, Message: "m2"},
			{Path: "b.py", PatternID: "empty_catch", Severity: ir.SevWarning,
				Span: ir.Span{StartPos: ir.Position{Line: 3, Column: 5}, EndPos: ir.Position{Line: 3, Column: 9}}, Message: "m3"},
		},
		Failures: []ir.Failure{{Path: "c.py", Kind: "parse", Message: "bad"}},
	}
}

func TestSaveLoadRun(t *testing.T) {
	db := openTest(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := sampleRun("r1", now)
	require.NoError(t, db.SaveRun(run))
	// upsert is idempotent
	require.NoError(t, db.SaveRun(run))

	got, err := db.LoadRun("r1")
	require.NoError(t, err)
	assert.Equal(t, run.Diagnostics, got.Diagnostics)
	assert.Equal(t, run.Failures, got.Failures)

	_, err = db.LoadRun("missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	ok, err := db.HasRun("r1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.HasRun("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListRunsAndDiagnostics(t *testing.T) {
	db := openTest(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, db.SaveRun(sampleRun("old", base)))
	require.NoError(t, db.SaveRun(sampleRun("new", base.Add(time.Hour))))

	rows, err := db.ListRuns(10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "new", rows[0].ID)
	assert.Equal(t, 3, rows[0].Diagnostics)
	assert.Equal(t, 1, rows[0].Failures)

	latest, err := db.LatestRunID()
	require.NoError(t, err)
	assert.Equal(t, "new", latest)

	all, err := db.ListDiagnostics("new", "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 14, all[0].Span.StartPos.Column)
	assert.Equal(t, "range(len(items))", all[0].SuggestedFix)

	errs, err := db.ListDiagnostics("new", "error", "")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, ir.SevError, errs[0].Severity)

	ec, err := db.ListDiagnostics("new", "info", "empty_catch")
	require.NoError(t, err)
	assert.Len(t, ec, 2)

	counts, err := db.CountByPattern("new")
	require.NoError(t, err)
	assert.Equal(t, []PatternCount{{PatternID: "empty_catch", Count: 2}, {PatternID: "off_by_one_loop", Count: 1}}, counts)
}

func TestWaivers(t *testing.T) {
	db := openTest(t)
	id, err := db.CreateWaiver("empty_catch", "tests/*.py", "", "legacy", "alice", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = db.CreateWaiver("nullable_access", "", "", "expired", "alice", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	active, err := db.ListWaivers(true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "tests/*.py", active[0].PathGlob)

	require.NoError(t, db.RevokeWaiver(id))
	assert.ErrorIs(t, db.RevokeWaiver(id), ErrNoRowsAffected)

	active, err = db.ListWaivers(true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := db.ListWaivers(false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotNil(t, all[1].RevokedAt)
}

func TestUsersAndSessions(t *testing.T) {
	db := openTest(t)
	uid, err := db.CreateUser("alice", "hash", "admin")
	require.NoError(t, err)

	u, ph, err := db.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, "hash", ph)
	assert.Equal(t, RoleAdmin, u.Role)
	assert.True(t, u.IsAdmin())

	require.NoError(t, db.CreateSession(uid, "tok", time.Now().Add(time.Hour)))
	su, err := db.GetSession("tok")
	require.NoError(t, err)
	assert.Equal(t, "alice", su.Username)

	require.NoError(t, db.DeleteSession("tok"))
	_, err = db.GetSession("tok")
	assert.Error(t, err)
	require.NoError(t, db.LogAudit("alice", "login", "session", map[string]any{"ok": true}))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("root")
	assert.True(t, errors.Is(err, ErrUnknownRole))
}

func TestCreateUserRejects(t *testing.T) {
	db := openTest(t)
	_, err := db.CreateUser("bob", "h", RoleViewer)
	require.NoError(t, err)

	_, err = db.CreateUser("bob", "h2", RoleAdmin)
	assert.True(t, errors.Is(err, ErrUserExists), "got %v", err)

	_, err = db.CreateUser("carol", "h", Role("owner"))
	assert.True(t, errors.Is(err, ErrUnknownRole), "got %v", err)

	_, err = db.CreateUser("  ", "h", RoleViewer)
	assert.Error(t, err)
}

func TestPurgeSessions(t *testing.T) {
	db := openTest(t)
	uid, err := db.CreateUser("alice", "hash", RoleViewer)
	require.NoError(t, err)
	require.NoError(t, db.CreateSession(uid, "old", time.Now().Add(-time.Minute)))
	require.NoError(t, db.CreateSession(uid, "live", time.Now().Add(time.Hour)))

	n, err := db.PurgeSessions(time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.GetSession("live")
	require.NoError(t, err)
	assert.True(t, errors.Is(db.DeleteSession("old"), ErrNoRowsAffected))
}

func TestListAudit(t *testing.T) {
	db := openTest(t)
	require.NoError(t, db.LogAudit("root", "waiver:create", "waiver:1", map[string]any{"pattern": "empty_catch"}))
	require.NoError(t, db.LogAudit("bob", "runs:list", "", nil))
	require.NoError(t, db.LogAudit("root", "waiver:revoke", "waiver:1", nil))
	require.NoError(t, db.LogAudit("root", "waiver_x", "", nil))

	got, err := db.ListAudit(0, "waiver:")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "waiver:revoke", got[0].Action)
	assert.Equal(t, "waiver:create", got[1].Action)
	assert.Equal(t, "empty_catch", got[1].Meta["pattern"])
	assert.False(t, got[1].At.IsZero())

	all, err := db.ListAudit(2, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "waiver_x", all[0].Action)

	// "_" is literal, not a LIKE wildcard.
	under, err := db.ListAudit(10, "waiver_")
	require.NoError(t, err)
	require.Len(t, under, 1)
	assert.Equal(t, "waiver_x", under[0].Action)
}
