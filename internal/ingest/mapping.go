// SPDX-License-Identifier: MIT

package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/coursesmith/coursesmith/internal/domain/model"
)

// AlignSlides distributes slides over the video timeline proportionally. Each
// slide gets an equal share of the total duration; the final slide keeps an
// open end so playback past the estimate still maps to it. Mappings start in
// pending_validation until ValidateMappings confirms them.
func AlignSlides(nodeID, tenantID string, presentation, video *model.MaterialEntry, deck *SlideDeck, tr *Transcript) []*model.SlideVideoMapping {
	if deck == nil || len(deck.Slides) == 0 {
		return nil
	}
	duration := transcriptDuration(tr)
	share := duration / float64(len(deck.Slides))

	mappings := make([]*model.SlideVideoMapping, 0, len(deck.Slides))
	for i, slide := range deck.Slides {
		m := &model.SlideVideoMapping{
			TenantID:            tenantID,
			NodeID:              nodeID,
			PresentationEntryID: presentation.ID,
			VideoEntryID:        video.ID,
			SlideNumber:         slide.Number,
			VideoTimecodeStart:  share * float64(i),
			Position:            i,
			ValidationState:     model.MappingPendingValidation,
		}
		if i < len(deck.Slides)-1 {
			end := share * float64(i+1)
			m.VideoTimecodeEnd = &end
		}
		mappings = append(mappings, m)
	}
	return mappings
}

func transcriptDuration(tr *Transcript) float64 {
	if tr == nil || len(tr.Segments) == 0 {
		return 0
	}
	var max float64
	for _, seg := range tr.Segments {
		if seg.End > max {
			max = seg.End
		}
	}
	return max
}

// ValidateMappings checks an alignment set for internal consistency and
// stamps each mapping validated or validation_failed. Failures carry the
// offending checks in ValidationErrors.
func ValidateMappings(mappings []*model.SlideVideoMapping) {
	ordered := make([]*model.SlideVideoMapping, len(mappings))
	copy(ordered, mappings)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	seen := make(map[int]bool, len(ordered))
	var prevStart float64
	for i, m := range ordered {
		var problems []string

		if m.SlideNumber <= 0 {
			problems = append(problems, fmt.Sprintf("slide number %d is not positive", m.SlideNumber))
		} else if seen[m.SlideNumber] {
			problems = append(problems, fmt.Sprintf("slide number %d appears more than once", m.SlideNumber))
		}
		seen[m.SlideNumber] = true

		if m.VideoTimecodeStart < 0 {
			problems = append(problems, "start timecode is negative")
		}
		if i > 0 && m.VideoTimecodeStart < prevStart {
			problems = append(problems, "start timecode precedes the previous slide")
		}
		prevStart = m.VideoTimecodeStart

		if m.VideoTimecodeEnd != nil && *m.VideoTimecodeEnd <= m.VideoTimecodeStart {
			problems = append(problems, "end timecode does not follow start")
		}

		if len(problems) > 0 {
			m.ValidationState = model.MappingValidationFailed
			m.ValidationErrors = strings.Join(problems, "; ")
		} else {
			m.ValidationState = model.MappingValidated
			m.ValidationErrors = ""
		}
	}
}
