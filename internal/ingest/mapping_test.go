// SPDX-License-Identifier: MIT

package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coursesmith/coursesmith/internal/domain/model"
)

func TestAlignSlides(t *testing.T) {
	pres := &model.MaterialEntry{ID: "p1"}
	video := &model.MaterialEntry{ID: "v1"}
	deck := &SlideDeck{Slides: []Slide{{Number: 1}, {Number: 2}, {Number: 3}}}
	tr := &Transcript{Segments: []Segment{{Start: 0, End: 300}}}

	mappings := AlignSlides("n1", "t1", pres, video, deck, tr)
	require.Len(t, mappings, 3)

	require.Equal(t, 0.0, mappings[0].VideoTimecodeStart)
	require.Equal(t, 100.0, mappings[1].VideoTimecodeStart)
	require.Equal(t, 200.0, mappings[2].VideoTimecodeStart)

	require.NotNil(t, mappings[0].VideoTimecodeEnd)
	require.Equal(t, 100.0, *mappings[0].VideoTimecodeEnd)
	require.Nil(t, mappings[2].VideoTimecodeEnd, "last slide keeps an open end")

	for i, m := range mappings {
		require.Equal(t, i, m.Position)
		require.Equal(t, model.MappingPendingValidation, m.ValidationState)
		require.Equal(t, "p1", m.PresentationEntryID)
		require.Equal(t, "v1", m.VideoEntryID)
	}
}

func TestValidateMappings(t *testing.T) {
	end := func(v float64) *float64 { return &v }

	t.Run("consistent set validates", func(t *testing.T) {
		mappings := []*model.SlideVideoMapping{
			{SlideNumber: 1, Position: 0, VideoTimecodeStart: 0, VideoTimecodeEnd: end(50)},
			{SlideNumber: 2, Position: 1, VideoTimecodeStart: 50, VideoTimecodeEnd: end(100)},
			{SlideNumber: 3, Position: 2, VideoTimecodeStart: 100},
		}
		ValidateMappings(mappings)
		for _, m := range mappings {
			require.Equal(t, model.MappingValidated, m.ValidationState)
			require.Empty(t, m.ValidationErrors)
		}
	})

	t.Run("regressing timecode fails", func(t *testing.T) {
		mappings := []*model.SlideVideoMapping{
			{SlideNumber: 1, Position: 0, VideoTimecodeStart: 80},
			{SlideNumber: 2, Position: 1, VideoTimecodeStart: 40},
		}
		ValidateMappings(mappings)
		require.Equal(t, model.MappingValidated, mappings[0].ValidationState)
		require.Equal(t, model.MappingValidationFailed, mappings[1].ValidationState)
		require.Contains(t, mappings[1].ValidationErrors, "precedes")
	})

	t.Run("duplicate and non-positive slide numbers fail", func(t *testing.T) {
		mappings := []*model.SlideVideoMapping{
			{SlideNumber: 0, Position: 0, VideoTimecodeStart: 0},
			{SlideNumber: 2, Position: 1, VideoTimecodeStart: 10},
			{SlideNumber: 2, Position: 2, VideoTimecodeStart: 20},
		}
		ValidateMappings(mappings)
		require.Equal(t, model.MappingValidationFailed, mappings[0].ValidationState)
		require.Equal(t, model.MappingValidated, mappings[1].ValidationState)
		require.Equal(t, model.MappingValidationFailed, mappings[2].ValidationState)
	})

	t.Run("inverted range fails", func(t *testing.T) {
		mappings := []*model.SlideVideoMapping{
			{SlideNumber: 1, Position: 0, VideoTimecodeStart: 30, VideoTimecodeEnd: end(30)},
		}
		ValidateMappings(mappings)
		require.Equal(t, model.MappingValidationFailed, mappings[0].ValidationState)
		require.Contains(t, mappings[0].ValidationErrors, "end timecode")
	})
}
