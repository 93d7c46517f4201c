package story

import "strings"

// Section completion heuristics. Each returns 0-100 and matches what the
// corresponding editor page reports while the user fills it in.

func ConceptProgress(s State) int {
	fields := []string{
		s.Title,
		strings.Join(s.Genre, ","),
		s.TargetAudience,
		s.Premise,
		strings.Join(s.Themes, ","),
		s.Tone,
		s.AdditionalNotes,
	}
	return ratio(countFilled(fields), len(fields))
}

func WorldbuildingProgress(s State) int {
	fields := []string{
		s.Setting.TimePeriod,
		s.Setting.WorldType,
		s.Setting.TechnologyLevel,
		s.Setting.WorldDescription,
		s.Setting.Languages,
		s.Setting.Religion,
		s.Setting.Customs,
		s.Setting.HistoricalEvents,
		s.Setting.Myths,
	}
	filled := countFilled(fields)
	total := len(fields) + 2
	// Societal structures and locations count as filled when at least one exists.
	if len(s.Setting.SocietalStructures) > 0 {
		filled++
	}
	if len(s.Locations) > 0 {
		filled++
	}
	return ratio(filled, total)
}

func CharactersProgress(s State) int {
	if len(s.Characters) == 0 {
		return 0
	}
	filled := 0
	for _, c := range s.Characters {
		fields := []string{c.Name, c.Role, c.Goals, c.Backstory, c.Motivations, c.Arc}
		if countFilled(fields) == len(fields) {
			filled++
		}
	}
	return ratio(filled, len(s.Characters))
}

func PlotProgress(s State) int {
	filled := 0
	if strings.TrimSpace(s.PlotStructure) != "" {
		filled++
	}
	if len(s.PlotPoints) > 0 {
		filled++
	}
	if len(s.PlotBeats) > 0 {
		filled++
	}
	return ratio(filled, 3)
}

func NarrationProgress(s State) int {
	fields := []string{s.POVType, s.Tense, s.Narrator, s.NarrativeVoice, s.SampleParagraph}
	return ratio(countFilled(fields), len(fields))
}

func ThemesProgress(s State) int {
	filled := 0
	total := 3 + 4
	if len(s.CentralThemes) > 0 {
		filled++
	}
	if len(s.Symbols) > 0 {
		filled++
	}
	if len(s.Motifs) > 0 {
		filled++
	}
	filled += countFilled([]string{s.ThemeDescription, s.ThematicDevelopment, s.ThemeBeginning, s.ThemeEnd})
	return ratio(filled, total)
}

func ChaptersProgress(s State) int {
	if len(s.Chapters) == 0 {
		return 0
	}
	filled := 0
	for _, ch := range s.Chapters {
		if strings.TrimSpace(ch.Title) == "" ||
			strings.TrimSpace(ch.Synopsis) == "" ||
			strings.TrimSpace(ch.Goal) == "" {
			continue
		}
		for _, sc := range ch.Scenes {
			if strings.TrimSpace(sc.Summary) != "" && strings.TrimSpace(sc.Outcome) != "" {
				filled++
				break
			}
		}
	}
	return ratio(filled, len(s.Chapters))
}

func DialogueProgress(s State) int {
	profiles := s.Dialogue.VoiceProfiles
	if len(profiles) == 0 {
		return 0
	}
	sum := 0
	for _, p := range profiles {
		fields := []string{p.SpeechPattern, p.Vocabulary, p.Tics, p.Accent}
		sum += ratio(countFilled(fields), len(fields))
	}
	return sum / len(profiles)
}

func ResearchProgress(s State) int {
	if len(s.ResearchNotes) == 0 {
		return 0
	}
	filled := 0
	for _, n := range s.ResearchNotes {
		if strings.TrimSpace(n.Topic) != "" && strings.TrimSpace(n.Content) != "" &&
			(len(n.Sources) > 0 || len(n.Tags) > 0) {
			filled++
		}
	}
	p := ratio(filled, len(s.ResearchNotes))
	// Any notes at all count for something on the dashboard.
	if p == 0 {
		return 10
	}
	return p
}

func ScheduleProgress(s State) int {
	filled := 0
	total := 4
	if s.Schedule.DailyWordCount > 0 {
		filled++
	}
	if s.Schedule.WeeklyGoal > 0 {
		filled++
	}
	if strings.TrimSpace(s.Schedule.CompletionDate) != "" {
		filled++
	}
	if len(s.Schedule.Deadlines) > 0 {
		filled++
	}
	return ratio(filled, total)
}

func FeedbackProgress(s State) int {
	if len(s.Feedback) == 0 {
		return 0
	}
	addressed := 0
	for _, f := range s.Feedback {
		if f.Addressed {
			addressed++
		}
	}
	return ratio(addressed, len(s.Feedback))
}

// Calculator returns the standard progress calculator for a section,
// bound to live reads of the store.
func Calculator(store *Store, field ProgressField) func() int {
	calc := map[ProgressField]func(State) int{
		ProgressConcept:       ConceptProgress,
		ProgressWorldbuilding: WorldbuildingProgress,
		ProgressCharacters:    CharactersProgress,
		ProgressPlot:          PlotProgress,
		ProgressNarration:     NarrationProgress,
		ProgressThemes:        ThemesProgress,
		ProgressChapters:      ChaptersProgress,
		ProgressDialogue:      DialogueProgress,
		ProgressResearch:      ResearchProgress,
		ProgressSchedule:      ScheduleProgress,
		ProgressFeedback:      FeedbackProgress,
	}[field]
	if calc == nil {
		return func() int { return 0 }
	}
	return func() int { return calc(store.Snapshot()) }
}

func countFilled(fields []string) int {
	n := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			n++
		}
	}
	return n
}

func ratio(filled, total int) int {
	if total == 0 {
		return 0
	}
	p := (filled*100 + total/2) / total
	if p > 100 {
		return 100
	}
	return p
}
