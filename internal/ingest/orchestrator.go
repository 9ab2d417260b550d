// SPDX-License-Identifier: MIT

package ingest

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coursesmith/coursesmith/internal/blob"
	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/log"
	"github.com/coursesmith/coursesmith/internal/store"
)

var entriesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "coursesmith",
	Name:      "ingest_entries_processed_total",
	Help:      "Material entries processed by source type and outcome",
}, []string{"source_type", "outcome"})

// Orchestrator drives one entry through its processing lifecycle.
type Orchestrator struct {
	Materials *store.MaterialRepo
	Blob      *blob.Store
	Registry  *Registry
	Mappings  *store.MappingRepo
	// Transcriber is consulted for slide/video alignment when a presentation
	// has a video sibling. Optional.
	Transcriber Transcriber
	// Extractor re-reads the deck for alignment. Optional.
	Extractor SlideExtractor
}

// ProcessEntry runs the full pipeline for one entry: transition to PENDING,
// read the stored object, run the source-type processor, persist the
// normalized content and move to READY. Any failure lands the entry in ERROR
// with the message preserved.
func (o *Orchestrator) ProcessEntry(ctx context.Context, tenantID, entryID string) error {
	entry, err := o.Materials.EntryByID(ctx, tenantID, entryID)
	if err != nil {
		return err
	}
	logger := log.WithComponentFromContext(ctx, "ingest").With().
		Str(log.FieldEntryID, entry.ID).
		Str("source_type", string(entry.SourceType)).
		Logger()

	switch entry.State {
	case model.EntryRaw:
		if entry, err = o.Materials.TransitionEntry(ctx, tenantID, entryID, model.EntryPending, ""); err != nil {
			return err
		}
	case model.EntryPending:
		// an interrupted run left the entry mid-flight, pick it back up
		logger.Info().Msg("resuming interrupted processing")
	default:
		return fmt.Errorf("ingest: entry %s is %s, nothing to process", entryID, entry.State)
	}

	if err := o.process(ctx, entry); err != nil {
		entriesProcessed.WithLabelValues(string(entry.SourceType), "error").Inc()
		logger.Error().Err(err).Str(log.FieldEvent, "entry.failed").Msg("processing failed")
		if _, terr := o.Materials.TransitionEntry(ctx, tenantID, entryID, model.EntryError, err.Error()); terr != nil {
			logger.Error().Err(terr).Msg("error state transition failed")
		}
		return err
	}

	entriesProcessed.WithLabelValues(string(entry.SourceType), "ready").Inc()
	logger.Info().Str(log.FieldEvent, "entry.ready").Msg("entry processed")
	return nil
}

func (o *Orchestrator) process(ctx context.Context, entry *model.MaterialEntry) error {
	proc, err := o.Registry.Get(entry.SourceType)
	if err != nil {
		return err
	}

	// video and presentation processors read the blob themselves via the
	// storage key, so the payload is only loaded for inline formats
	var raw []byte
	switch entry.SourceType {
	case model.SourceText, model.SourceWeb:
		if raw, err = o.Blob.Read(ctx, entry.StorageKey); err != nil {
			return fmt.Errorf("ingest: read stored object: %w", err)
		}
	}

	res, err := proc.Process(ctx, entry, raw)
	if err != nil {
		return err
	}

	if err := o.Materials.SetProcessedContent(ctx, entry.TenantID, entry.ID, res.Content); err != nil {
		return fmt.Errorf("ingest: persist content: %w", err)
	}
	if _, err := o.Materials.TransitionEntry(ctx, entry.TenantID, entry.ID, model.EntryReady, ""); err != nil {
		return err
	}

	if entry.SourceType == model.SourcePresentation {
		if err := o.alignWithVideo(ctx, entry); err != nil {
			// alignment is best effort, the entry itself is already READY
			log.WithComponentFromContext(ctx, "ingest").Warn().Err(err).
				Str(log.FieldEntryID, entry.ID).
				Msg("slide/video alignment skipped")
		}
	}
	return nil
}

// alignWithVideo builds slide/video mappings when the presentation shares a
// node with a ready video entry.
func (o *Orchestrator) alignWithVideo(ctx context.Context, presentation *model.MaterialEntry) error {
	if o.Transcriber == nil || o.Extractor == nil || o.Mappings == nil {
		return nil
	}
	siblings, err := o.Materials.EntriesOf(ctx, presentation.NodeID)
	if err != nil {
		return err
	}
	var video *model.MaterialEntry
	for _, e := range siblings {
		if e.SourceType == model.SourceVideo && e.State == model.EntryReady {
			video = e
			break
		}
	}
	if video == nil {
		return nil
	}

	deck, err := o.Extractor.ExtractSlides(ctx, presentation.StorageKey)
	if err != nil {
		return err
	}
	tr, err := o.Transcriber.Transcribe(ctx, video.StorageKey)
	if err != nil {
		return err
	}

	mappings := AlignSlides(presentation.NodeID, presentation.TenantID, presentation, video, deck, tr)
	ValidateMappings(mappings)
	return o.Mappings.ReplaceForPresentation(ctx, presentation.ID, mappings)
}
