// SPDX-License-Identifier: MIT

package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/coursesmith/coursesmith/internal/blob"
	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/estimate"
	"github.com/coursesmith/coursesmith/internal/generate"
	"github.com/coursesmith/coursesmith/internal/ingest"
	"github.com/coursesmith/coursesmith/internal/jobs"
	"github.com/coursesmith/coursesmith/internal/provider"
	"github.com/coursesmith/coursesmith/internal/queue"
	"github.com/coursesmith/coursesmith/internal/registry"
	"github.com/coursesmith/coursesmith/internal/router"
	"github.com/coursesmith/coursesmith/internal/store"
	"github.com/coursesmith/coursesmith/internal/workwindow"
)

const registryYAML = `
models:
  x-model:
    provider: alpha
    capabilities: [completion, structured_output]
    max_context: 128000
    cost_per_1k: {input: 0.01, output: 0.03}
actions:
  course_structuring:
    description: build a course structure
    requires: [structured_output]
routing:
  course_structuring:
    default: [x-model]
`

const structureJSON = `{"title":"T","sections":[{"title":"S","lessons":[{"title":"L"}]}]}`

type stubProvider struct{}

func (stubProvider) Name() string   { return "alpha" }
func (stubProvider) Enabled() bool  { return true }
func (stubProvider) Disable(string) {}
func (stubProvider) Enable()        {}

func (stubProvider) Complete(_ context.Context, req provider.Request) (*provider.Response, error) {
	return &provider.Response{Content: structureJSON, Provider: "alpha", Model: req.Model,
		TokensIn: 100, TokensOut: 50, Action: req.Action, Strategy: req.Strategy}, nil
}

func (p stubProvider) CompleteStructured(ctx context.Context, req provider.Request, _ provider.Schema) (json.RawMessage, *provider.Response, error) {
	res, err := p.Complete(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return json.RawMessage(res.Content), res, nil
}

type handlerFixture struct {
	handlers *Handlers
	svc      *jobs.Service
	store    *store.Store
	blob     *blob.Store
	tenant   *model.Tenant
	course   *model.Course
	node     *model.MaterialNode
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	b, err := blob.Open(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg, err := registry.Parse([]byte(registryYAML))
	require.NoError(t, err)
	providers := provider.NewRegistry()
	providers.Register(stubProvider{})
	rt := router.New(reg, providers, s.LLMCalls.RecordAttempt)

	ingReg := ingest.NewRegistry()
	ingReg.Register(ingest.NewTextProcessor())
	orch := &ingest.Orchestrator{Materials: s.Materials, Blob: b, Registry: ingReg, Mappings: s.Mappings}

	tenant := &model.Tenant{Name: "acme", IsActive: true}
	require.NoError(t, s.Tenants.Create(ctx, tenant))
	course := &model.Course{TenantID: tenant.ID, Title: "Widgets 101"}
	require.NoError(t, s.Courses.Create(ctx, course))
	node := &model.MaterialNode{CourseID: course.ID, TenantID: tenant.ID, Title: "Week 1"}
	require.NoError(t, s.Materials.CreateNode(ctx, node))

	h := &Handlers{
		Jobs:     s.Jobs,
		Ingest:   orch,
		Generate: generate.New(s, rt),
		Window:   workwindow.Window{Enabled: false},
	}
	svc := &jobs.Service{
		Jobs:      s.Jobs,
		Materials: s.Materials,
		Queue:     queue.New(rdb),
		Estimator: &estimate.Estimator{Window: workwindow.Window{Enabled: false}},
	}
	return &handlerFixture{handlers: h, svc: svc, store: s, blob: b, tenant: tenant, course: course, node: node}
}

func (f *handlerFixture) seedTextEntry(t *testing.T, content string) *model.MaterialEntry {
	t.Helper()
	ctx := context.Background()
	res, err := f.blob.Put(ctx, f.course.ID, "notes.txt", bytes.NewReader([]byte(content)), int64(len(content)))
	require.NoError(t, err)
	e := &model.MaterialEntry{
		NodeID: f.node.ID, CourseID: f.course.ID, TenantID: f.tenant.ID,
		Filename: "notes.txt", SourceType: model.SourceText, StorageKey: res.Key,
	}
	require.NoError(t, f.store.Materials.CreateEntry(ctx, e))
	return e
}

func taskArgs(t *testing.T, j *model.Job) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(jobs.TaskArgs{JobID: j.ID, TenantID: j.TenantID})
	require.NoError(t, err)
	return raw
}

func TestHandleIngest_CompletesJob(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	entry := f.seedTextEntry(t, "lecture notes")

	j, err := f.svc.RequestIngest(ctx, jobs.IngestRequest{
		TenantID: f.tenant.ID, CourseID: f.course.ID, EntryID: entry.ID,
	})
	require.NoError(t, err)

	require.NoError(t, f.handlers.HandleIngest(ctx, taskArgs(t, j)))

	got, err := f.store.Jobs.ByID(ctx, f.tenant.ID, j.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobComplete, got.Status)
	require.Equal(t, entry.ID, got.ResultMaterialID)
	require.Empty(t, got.ResultSnapshotID)

	e, err := f.store.Materials.EntryByID(ctx, f.tenant.ID, entry.ID)
	require.NoError(t, err)
	require.Equal(t, model.EntryReady, e.State)
}

func TestHandleIngest_FailureFailsJob(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	res, err := f.blob.Put(ctx, f.course.ID, "junk.txt", bytes.NewReader([]byte{0xff, 0xfe}), 2)
	require.NoError(t, err)
	entry := &model.MaterialEntry{
		NodeID: f.node.ID, CourseID: f.course.ID, TenantID: f.tenant.ID,
		Filename: "junk.txt", SourceType: model.SourceText, StorageKey: res.Key,
	}
	require.NoError(t, f.store.Materials.CreateEntry(ctx, entry))

	j, err := f.svc.RequestIngest(ctx, jobs.IngestRequest{
		TenantID: f.tenant.ID, CourseID: f.course.ID, EntryID: entry.ID,
	})
	require.NoError(t, err)

	require.NoError(t, f.handlers.HandleIngest(ctx, taskArgs(t, j)))

	got, err := f.store.Jobs.ByID(ctx, f.tenant.ID, j.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobFailed, got.Status)
	require.Contains(t, got.ErrorMessage, "not valid UTF-8")
}

func TestHandleGenerate_CompletesWithSnapshot(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	entry := f.seedTextEntry(t, "lecture notes")
	j, err := f.svc.RequestIngest(ctx, jobs.IngestRequest{
		TenantID: f.tenant.ID, CourseID: f.course.ID, EntryID: entry.ID,
	})
	require.NoError(t, err)
	require.NoError(t, f.handlers.HandleIngest(ctx, taskArgs(t, j)))

	gj, _, err := f.svc.RequestGeneration(ctx, jobs.GenerationRequest{
		TenantID: f.tenant.ID, CourseID: f.course.ID, Mode: model.ModeFree,
	})
	require.NoError(t, err)

	require.NoError(t, f.handlers.HandleGenerate(ctx, taskArgs(t, gj)))

	got, err := f.store.Jobs.ByID(ctx, f.tenant.ID, gj.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobComplete, got.Status)
	require.NotEmpty(t, got.ResultSnapshotID)
	require.Empty(t, got.ResultMaterialID)

	snap, err := f.store.Snapshots.ByID(ctx, f.tenant.ID, got.ResultSnapshotID)
	require.NoError(t, err)
	require.JSONEq(t, structureJSON, string(snap.Structure))
}

func TestHandle_TerminalJobIsSkipped(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	j, err := f.svc.RequestIngest(ctx, jobs.IngestRequest{
		TenantID: f.tenant.ID, CourseID: f.course.ID, EntryID: "whatever",
	})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, f.tenant.ID, j.ID)
	require.NoError(t, err)

	require.NoError(t, f.handlers.HandleIngest(ctx, taskArgs(t, j)))

	got, err := f.store.Jobs.ByID(ctx, f.tenant.ID, j.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobCancelled, got.Status)
}

func TestHandle_WindowDefersNormalPriority(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	// a one-hour window starting two hours from now, so it is closed
	h := time.Now().UTC().Hour()
	f.handlers.Window = workwindow.Window{
		Start:   workwindow.ClockTime{Hour: (h + 2) % 24},
		End:     workwindow.ClockTime{Hour: (h + 3) % 24},
		Enabled: true,
	}

	entry := f.seedTextEntry(t, "deferred")
	j, err := f.svc.RequestIngest(ctx, jobs.IngestRequest{
		TenantID: f.tenant.ID, CourseID: f.course.ID, EntryID: entry.ID,
	})
	require.NoError(t, err)

	err = f.handlers.HandleIngest(ctx, taskArgs(t, j))
	d, ok := fault.AsDefer(err)
	require.True(t, ok, "expected a defer, got %v", err)
	require.GreaterOrEqual(t, d.Seconds, 1)

	got, err := f.store.Jobs.ByID(ctx, f.tenant.ID, j.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobQueued, got.Status, "defer must leave the row untouched")
}

func TestHandle_DependencyGate(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	entry := f.seedTextEntry(t, "dependent")
	dep, err := f.svc.RequestIngest(ctx, jobs.IngestRequest{
		TenantID: f.tenant.ID, CourseID: f.course.ID, EntryID: entry.ID,
	})
	require.NoError(t, err)

	j, err := f.svc.RequestIngest(ctx, jobs.IngestRequest{
		TenantID: f.tenant.ID, CourseID: f.course.ID, EntryID: entry.ID,
		DependsOn: []string{dep.ID},
	})
	require.NoError(t, err)

	// dependency still queued: defer without failing
	err = f.handlers.HandleIngest(ctx, taskArgs(t, j))
	_, ok := fault.AsDefer(err)
	require.True(t, ok, "expected a defer, got %v", err)

	// dependency cancelled: the dependent fails before dispatch
	_, err = f.svc.Cancel(ctx, f.tenant.ID, dep.ID)
	require.NoError(t, err)
	require.NoError(t, f.handlers.HandleIngest(ctx, taskArgs(t, j)))

	got, err := f.store.Jobs.ByID(ctx, f.tenant.ID, j.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobFailed, got.Status)
	require.Contains(t, got.ErrorMessage, dep.ID)
}
