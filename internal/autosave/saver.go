package autosave

import (
	"context"

	"storyforge/api/internal/story"
)

// SectionSaver bridges one editor section's completion metric to the
// engine. It applies the optimistic local progress update first, so the
// UI-visible value moves synchronously no matter what the network does.
type SectionSaver struct {
	store     *story.Store
	engine    *Engine
	field     story.ProgressField
	calculate func() int
}

// NewSectionSaver builds a saver for one section. A nil calculate uses
// the standard calculator for the field.
func NewSectionSaver(store *story.Store, engine *Engine, field story.ProgressField, calculate func() int) *SectionSaver {
	if calculate == nil {
		calculate = story.Calculator(store, field)
	}
	return &SectionSaver{store: store, engine: engine, field: field, calculate: calculate}
}

// SaveProgress computes the section percentage, applies it locally, and
// delegates an immediate save. The local update is never rolled back if
// the save later fails or is queued.
func (s *SectionSaver) SaveProgress(ctx context.Context, data map[string]any, showAlert bool) {
	progress := s.applyLocal()
	s.engine.Save(ctx, s.shapePayload(data, progress), Options{
		ShowAlert:         showAlert,
		CalculateProgress: s.calculate,
		ProgressField:     s.field,
	})
}

// DebouncedSaveProgress is SaveProgress through the debounce window.
func (s *SectionSaver) DebouncedSaveProgress(data map[string]any) {
	progress := s.applyLocal()
	s.engine.DebouncedSave(s.shapePayload(data, progress), Options{
		CalculateProgress: s.calculate,
		ProgressField:     s.field,
	})
}

// Close releases the underlying engine's timers.
func (s *SectionSaver) Close() {
	s.engine.Close()
}

func (s *SectionSaver) applyLocal() int {
	progress := s.calculate()
	s.store.Dispatch(story.UpdateProgress{Values: story.Progress{s.field: progress}})
	return progress
}

func (s *SectionSaver) shapePayload(data map[string]any, progress int) map[string]any {
	payload := make(map[string]any, len(data)+2)
	for k, v := range data {
		payload[k] = v
	}
	// Dialogue persists under its own top-level backend field rather
	// than flattened into the document.
	if s.field == story.ProgressDialogue {
		if dialogue, ok := data["dialogue"]; ok && dialogue != nil {
			payload["dialogue"] = dialogue
		}
	}
	merged := s.store.ProgressSnapshot()
	merged[s.field] = progress
	payload["progress"] = merged
	return payload
}
