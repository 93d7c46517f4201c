package story

import "testing"

func TestConceptProgressCountsFilledFields(t *testing.T) {
	var s State
	if got := ConceptProgress(s); got != 0 {
		t.Fatalf("empty concept should score 0, got %d", got)
	}

	s.Title = "Dune"
	s.Premise = "Spice is everything."
	s.Tone = "epic"
	// 3 of 7 fields, rounded.
	if got := ConceptProgress(s); got != 43 {
		t.Fatalf("expected 43, got %d", got)
	}
}

func TestConceptProgressIgnoresWhitespace(t *testing.T) {
	var s State
	s.Title = "   "
	if got := ConceptProgress(s); got != 0 {
		t.Fatalf("whitespace-only field counted as filled: %d", got)
	}
}

func TestWorldbuildingProgressCountsListsOnce(t *testing.T) {
	var s State
	s.Locations = []Location{{Name: "Arrakeen"}, {Name: "Sietch Tabr"}}
	// One of eleven slots regardless of how many locations exist.
	if got := WorldbuildingProgress(s); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
}

func TestCharactersProgressRequiresCompleteProfiles(t *testing.T) {
	var s State
	complete := Character{
		Name: "Paul", Role: "protagonist", Goals: "survive",
		Backstory: "ducal heir", Motivations: "family", Arc: "ascension",
	}
	partial := Character{Name: "Chani"}
	s.Characters = []Character{complete, partial}

	if got := CharactersProgress(s); got != 50 {
		t.Fatalf("expected 50 with one of two complete, got %d", got)
	}
}

func TestChaptersProgressNeedsAResolvedScene(t *testing.T) {
	var s State
	s.Chapters = []Chapter{
		{
			Title: "One", Synopsis: "arrival", Goal: "establish",
			Scenes: []Scene{{Summary: "landing", Outcome: "settled"}},
		},
		{
			// Outlined but no scene carries both summary and outcome.
			Title: "Two", Synopsis: "betrayal", Goal: "turn",
			Scenes: []Scene{{Summary: "dinner"}},
		},
	}
	if got := ChaptersProgress(s); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}

func TestDialogueProgressAveragesProfiles(t *testing.T) {
	var s State
	s.Dialogue.VoiceProfiles = []VoiceProfile{
		{SpeechPattern: "clipped", Vocabulary: "formal", Tics: "pauses", Accent: "caladanian"},
		{SpeechPattern: "dry", Vocabulary: "sparse"},
	}
	if got := DialogueProgress(s); got != 75 {
		t.Fatalf("expected 75, got %d", got)
	}
}

func TestResearchProgressFloorsAtTenPercent(t *testing.T) {
	var s State
	s.ResearchNotes = []ResearchNote{{Topic: "ecology"}}
	if got := ResearchProgress(s); got != 10 {
		t.Fatalf("expected the 10%% floor for incomplete notes, got %d", got)
	}

	s.ResearchNotes[0].Content = "sand cycles"
	s.ResearchNotes[0].Tags = []string{"desert"}
	if got := ResearchProgress(s); got != 100 {
		t.Fatalf("expected 100 for a complete note, got %d", got)
	}
}

func TestScheduleProgress(t *testing.T) {
	var s State
	s.Schedule.DailyWordCount = 500
	s.Schedule.Deadlines = []Deadline{{Title: "draft one"}}
	if got := ScheduleProgress(s); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}

func TestFeedbackProgressTracksAddressedNotes(t *testing.T) {
	var s State
	s.Feedback = []FeedbackNote{{Addressed: true}, {Addressed: false}, {Addressed: true}}
	if got := FeedbackProgress(s); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
}

func TestCalculatorReadsLiveStoreState(t *testing.T) {
	store := NewStore()
	calc := Calculator(store, ProgressPlot)
	if got := calc(); got != 0 {
		t.Fatalf("expected 0 for an empty plot, got %d", got)
	}

	store.Dispatch(UpdatePlot{PlotStructure: str("three-act")})
	if got := calc(); got != 33 {
		t.Fatalf("expected 33 after setting the structure, got %d", got)
	}
}

func TestCalculatorUnknownFieldReturnsZero(t *testing.T) {
	store := NewStore()
	calc := Calculator(store, ProgressField("totalWords"))
	if got := calc(); got != 0 {
		t.Fatalf("expected 0 for a non-section field, got %d", got)
	}
}
