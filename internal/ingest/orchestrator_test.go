// SPDX-License-Identifier: MIT

package ingest

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coursesmith/coursesmith/internal/blob"
	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/store"
)

type orchFixture struct {
	orch   *Orchestrator
	store  *store.Store
	blob   *blob.Store
	tenant *model.Tenant
	course *model.Course
	node   *model.MaterialNode
}

func newOrchFixture(t *testing.T) *orchFixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	b, err := blob.Open(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	tenant := &model.Tenant{Name: "acme", IsActive: true}
	require.NoError(t, s.Tenants.Create(ctx, tenant))
	course := &model.Course{TenantID: tenant.ID, Title: "Widgets 101"}
	require.NoError(t, s.Courses.Create(ctx, course))
	node := &model.MaterialNode{CourseID: course.ID, TenantID: tenant.ID, Title: "Week 1"}
	require.NoError(t, s.Materials.CreateNode(ctx, node))

	reg := NewRegistry()
	reg.Register(NewTextProcessor())
	reg.Register(NewWebProcessor())

	orch := &Orchestrator{
		Materials: s.Materials,
		Blob:      b,
		Registry:  reg,
		Mappings:  s.Mappings,
	}
	return &orchFixture{orch: orch, store: s, blob: b, tenant: tenant, course: course, node: node}
}

func (f *orchFixture) upload(t *testing.T, filename string, data []byte) string {
	t.Helper()
	res, err := f.blob.Put(context.Background(), f.course.ID, filename, bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return res.Key
}

func (f *orchFixture) seedEntry(t *testing.T, sourceType model.SourceType, filename string, data []byte) *model.MaterialEntry {
	t.Helper()
	entry := &model.MaterialEntry{
		NodeID:     f.node.ID,
		CourseID:   f.course.ID,
		TenantID:   f.tenant.ID,
		Filename:   filename,
		SourceType: sourceType,
		StorageKey: f.upload(t, filename, data),
	}
	require.NoError(t, f.store.Materials.CreateEntry(context.Background(), entry))
	return entry
}

func TestProcessEntry_TextToReady(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()
	entry := f.seedEntry(t, model.SourceText, "notes.txt", []byte("lecture notes\n"))

	require.NoError(t, f.orch.ProcessEntry(ctx, f.tenant.ID, entry.ID))

	got, err := f.store.Materials.EntryByID(ctx, f.tenant.ID, entry.ID)
	require.NoError(t, err)
	require.Equal(t, model.EntryReady, got.State)
	require.Equal(t, "lecture notes", got.ProcessedContent)
	require.NotNil(t, got.ProcessedAt)
}

func TestProcessEntry_FailureLandsInError(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()
	entry := f.seedEntry(t, model.SourceText, "junk.txt", []byte{0xff, 0xfe})

	require.Error(t, f.orch.ProcessEntry(ctx, f.tenant.ID, entry.ID))

	got, err := f.store.Materials.EntryByID(ctx, f.tenant.ID, entry.ID)
	require.NoError(t, err)
	require.Equal(t, model.EntryError, got.State)
	require.Contains(t, got.ErrorMessage, "not valid UTF-8")
}

func TestProcessEntry_ResumesFromPending(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()
	entry := f.seedEntry(t, model.SourceText, "notes.txt", []byte("resumed"))

	// simulate an interrupted run that got as far as PENDING
	_, err := f.store.Materials.TransitionEntry(ctx, f.tenant.ID, entry.ID, model.EntryPending, "")
	require.NoError(t, err)

	require.NoError(t, f.orch.ProcessEntry(ctx, f.tenant.ID, entry.ID))

	got, err := f.store.Materials.EntryByID(ctx, f.tenant.ID, entry.ID)
	require.NoError(t, err)
	require.Equal(t, model.EntryReady, got.State)
}

func TestProcessEntry_ReadyEntryIsRefused(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()
	entry := f.seedEntry(t, model.SourceText, "notes.txt", []byte("done"))

	require.NoError(t, f.orch.ProcessEntry(ctx, f.tenant.ID, entry.ID))
	err := f.orch.ProcessEntry(ctx, f.tenant.ID, entry.ID)
	require.ErrorContains(t, err, "nothing to process")
}

func TestProcessEntry_PresentationAlignsWithVideo(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()

	deck := &SlideDeck{Slides: []Slide{
		{Number: 1, Title: "Intro", Text: "welcome"},
		{Number: 2, Title: "Body", Text: "details"},
	}}
	tr := &Transcript{Segments: []Segment{{Start: 0, End: 120, Text: "talk"}}}
	f.orch.Extractor = &fakeExtractor{deck: deck}
	f.orch.Transcriber = &fakeTranscriber{transcript: tr}
	f.orch.Registry.Register(NewPresentationProcessor(f.orch.Extractor))
	f.orch.Registry.Register(NewVideoProcessor(f.orch.Transcriber))

	video := f.seedEntry(t, model.SourceVideo, "lecture.mp4", []byte("mp4"))
	require.NoError(t, f.orch.ProcessEntry(ctx, f.tenant.ID, video.ID))

	pres := f.seedEntry(t, model.SourcePresentation, "deck.pptx", []byte("pptx"))
	require.NoError(t, f.orch.ProcessEntry(ctx, f.tenant.ID, pres.ID))

	mappings, err := f.store.Mappings.ByPresentation(ctx, f.tenant.ID, pres.ID)
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	require.Equal(t, model.MappingValidated, mappings[0].ValidationState)
	require.Equal(t, 0.0, mappings[0].VideoTimecodeStart)
	require.Equal(t, 60.0, mappings[1].VideoTimecodeStart)
	require.Equal(t, video.ID, mappings[0].VideoEntryID)
}
