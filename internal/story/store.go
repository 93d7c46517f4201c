package story

import (
	"sync"
	"time"
)

// SaveStatus reflects the autosave engine's current disposition. It is
// written only by the engine and read by UI indicators.
type SaveStatus string

const (
	SaveIdle    SaveStatus = "idle"
	SaveSaving  SaveStatus = "saving"
	SaveSuccess SaveStatus = "success"
	SaveError   SaveStatus = "error"
	SaveOffline SaveStatus = "offline"
)

// Action is a single state transition applied by Store.Dispatch.
type Action interface {
	apply(*State)
}

// Store is the single source of truth for one open story. Section editors
// dispatch synchronous, optimistic updates; the autosave engine persists
// snapshots of it independently.
type Store struct {
	mu         sync.RWMutex
	state      State
	saveStatus SaveStatus
}

func NewStore() *Store {
	return &Store{state: NewState(), saveStatus: SaveIdle}
}

// Dispatch applies actions in order, under the store lock.
func (s *Store) Dispatch(actions ...Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range actions {
		a.apply(&s.state)
	}
}

// Snapshot returns a copy of the current state. Slices and maps are
// cloned shallowly per element; callers must not mutate nested pointers.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Progress = s.state.Progress.Clone()
	return out
}

// ProgressSnapshot returns a copy of just the progress map.
func (s *Store) ProgressSnapshot() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Progress.Clone()
}

func (s *Store) SaveStatus() SaveStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveStatus
}

// SetSaveStatus is called by the autosave engine's status hook.
func (s *Store) SetSaveStatus(status SaveStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveStatus = status
}

// UpdateConcept overwrites the concept fields that are non-nil.
type UpdateConcept struct {
	Title           *string
	Genre           []string
	TargetAudience  *string
	Premise         *string
	Themes          []string
	Tone            *string
	AdditionalNotes *string
	QueryLetter     *string
	Synopsis        *string
	AuthorBio       *string
	MarketingPlan   *string
}

func (a UpdateConcept) apply(s *State) {
	setString(&s.Title, a.Title)
	if a.Genre != nil {
		s.Genre = a.Genre
	}
	setString(&s.TargetAudience, a.TargetAudience)
	setString(&s.Premise, a.Premise)
	if a.Themes != nil {
		s.Themes = a.Themes
	}
	setString(&s.Tone, a.Tone)
	setString(&s.AdditionalNotes, a.AdditionalNotes)
	setString(&s.QueryLetter, a.QueryLetter)
	setString(&s.Synopsis, a.Synopsis)
	setString(&s.AuthorBio, a.AuthorBio)
	setString(&s.MarketingPlan, a.MarketingPlan)
}

type UpdateWorldbuilding struct {
	Setting   *Setting
	Locations []Location
}

func (a UpdateWorldbuilding) apply(s *State) {
	if a.Setting != nil {
		s.Setting = *a.Setting
	}
	if a.Locations != nil {
		s.Locations = a.Locations
	}
}

type AddCharacter struct{ Character Character }

func (a AddCharacter) apply(s *State) {
	s.Characters = append(s.Characters, a.Character)
}

type UpdateCharacter struct {
	ID        string
	Character Character
}

func (a UpdateCharacter) apply(s *State) {
	for i := range s.Characters {
		if s.Characters[i].ID == a.ID {
			c := a.Character
			c.ID = a.ID
			s.Characters[i] = c
			return
		}
	}
}

type DeleteCharacter struct{ ID string }

func (a DeleteCharacter) apply(s *State) {
	kept := s.Characters[:0]
	for _, c := range s.Characters {
		if c.ID != a.ID {
			kept = append(kept, c)
		}
	}
	s.Characters = kept
}

type UpdatePlot struct {
	PlotStructure *string
	PlotPoints    []PlotPoint
	PlotBeats     []PlotBeat
}

func (a UpdatePlot) apply(s *State) {
	setString(&s.PlotStructure, a.PlotStructure)
	if a.PlotPoints != nil {
		s.PlotPoints = a.PlotPoints
	}
	if a.PlotBeats != nil {
		s.PlotBeats = a.PlotBeats
	}
}

type UpdateNarration struct {
	POVType         *string
	POVCharacters   []string
	POVNotes        *string
	Tense           *string
	Narrator        *string
	NarrativeVoice  *string
	SampleParagraph *string
}

func (a UpdateNarration) apply(s *State) {
	setString(&s.POVType, a.POVType)
	if a.POVCharacters != nil {
		s.POVCharacters = a.POVCharacters
	}
	setString(&s.POVNotes, a.POVNotes)
	setString(&s.Tense, a.Tense)
	setString(&s.Narrator, a.Narrator)
	setString(&s.NarrativeVoice, a.NarrativeVoice)
	setString(&s.SampleParagraph, a.SampleParagraph)
}

type UpdateThemes struct {
	CentralThemes       []string
	Symbols             []Symbol
	Motifs              []string
	ThemeDescription    *string
	ThematicDevelopment *string
	ThemeBeginning      *string
	ThemeMiddle         *string
	ThemeEnd            *string
}

func (a UpdateThemes) apply(s *State) {
	if a.CentralThemes != nil {
		s.CentralThemes = a.CentralThemes
	}
	if a.Symbols != nil {
		s.Symbols = a.Symbols
	}
	if a.Motifs != nil {
		s.Motifs = a.Motifs
	}
	setString(&s.ThemeDescription, a.ThemeDescription)
	setString(&s.ThematicDevelopment, a.ThematicDevelopment)
	setString(&s.ThemeBeginning, a.ThemeBeginning)
	setString(&s.ThemeMiddle, a.ThemeMiddle)
	setString(&s.ThemeEnd, a.ThemeEnd)
}

type UpdateChapters struct{ Chapters []Chapter }

func (a UpdateChapters) apply(s *State) {
	if a.Chapters != nil {
		s.Chapters = a.Chapters
	}
}

type UpdateResearch struct{ ResearchNotes []ResearchNote }

func (a UpdateResearch) apply(s *State) {
	if a.ResearchNotes != nil {
		s.ResearchNotes = a.ResearchNotes
	}
	s.LastUpdated = time.Now()
}

type UpdateSchedule struct{ Schedule *Schedule }

func (a UpdateSchedule) apply(s *State) {
	if a.Schedule != nil {
		s.Schedule = *a.Schedule
	}
}

type UpdateFeedback struct{ Feedback []FeedbackNote }

func (a UpdateFeedback) apply(s *State) {
	s.Feedback = a.Feedback
	s.LastUpdated = time.Now()
}

type UpdateDrafts struct{ Drafts []Draft }

func (a UpdateDrafts) apply(s *State) {
	s.Drafts = a.Drafts
	s.LastUpdated = time.Now()
}

type UpdateRevisionPlanning struct{ Planning RevisionPlanning }

func (a UpdateRevisionPlanning) apply(s *State) {
	s.RevisionPlanning = a.Planning
	s.RevisionPlanning.LastUpdated = time.Now()
}

type UpdateDialogue struct {
	VoiceProfiles       []VoiceProfile
	SampleDialogues     []SampleDialogue
	ConversationContext *ConversationContext
}

func (a UpdateDialogue) apply(s *State) {
	if a.VoiceProfiles != nil {
		s.Dialogue.VoiceProfiles = a.VoiceProfiles
	}
	if a.SampleDialogues != nil {
		s.Dialogue.SampleDialogues = a.SampleDialogues
	}
	if a.ConversationContext != nil {
		s.Dialogue.ConversationContext = a.ConversationContext
	}
}

// UpdateProgress merges the given section percentages into the progress map.
type UpdateProgress struct{ Values Progress }

func (a UpdateProgress) apply(s *State) {
	if s.Progress == nil {
		s.Progress = Progress{}
	}
	for k, v := range a.Values {
		s.Progress[k] = v
	}
}

type UpdateSettings struct {
	DarkMode      *bool
	AutoSave      *bool
	Notifications *bool
}

func (a UpdateSettings) apply(s *State) {
	if a.DarkMode != nil {
		s.Settings.DarkMode = *a.DarkMode
	}
	if a.AutoSave != nil {
		s.Settings.AutoSave = *a.AutoSave
	}
	if a.Notifications != nil {
		s.Settings.Notifications = *a.Notifications
	}
}

// LoadStory replaces the whole document, typically after a GET hydrate.
type LoadStory struct{ State State }

func (a LoadStory) apply(s *State) {
	*s = a.State
	if s.Progress == nil {
		s.Progress = NewState().Progress
	}
}

// ResetStory restores the empty-story defaults.
type ResetStory struct{}

func (a ResetStory) apply(s *State) {
	*s = NewState()
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
