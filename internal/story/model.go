// Package story holds the in-memory story document: the full planning
// model (concept, worldbuilding, characters, plot, chapters, dialogue,
// research, schedule, feedback, drafts) plus the reducer-style store the
// editors read from and the autosave engine persists.
package story

import (
	"time"

	"github.com/google/uuid"
)

// ProgressField names one section's completion slot in the progress map.
type ProgressField string

const (
	ProgressConcept       ProgressField = "concept"
	ProgressWorldbuilding ProgressField = "worldbuilding"
	ProgressCharacters    ProgressField = "characters"
	ProgressPlot          ProgressField = "plot"
	ProgressNarration     ProgressField = "narration"
	ProgressThemes        ProgressField = "themes"
	ProgressChapters      ProgressField = "chapters"
	ProgressDialogue      ProgressField = "dialogue"
	ProgressResearch      ProgressField = "research"
	ProgressSchedule      ProgressField = "schedule"
	ProgressFeedback      ProgressField = "feedback"

	// Derived counters, not section percentages.
	ProgressTotalWords        ProgressField = "totalWords"
	ProgressChaptersPlanned   ProgressField = "chaptersPlanned"
	ProgressChaptersCompleted ProgressField = "chaptersCompleted"
)

// Progress maps section names to 0-100 completion (plus derived counters).
type Progress map[ProgressField]int

func (p Progress) Clone() Progress {
	out := make(Progress, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

type Setting struct {
	TimePeriod         string   `json:"timePeriod"`
	WorldType          string   `json:"worldType"`
	SocietalStructures []string `json:"societalStructures"`
	TechnologyLevel    string   `json:"technologyLevel"`
	WorldDescription   string   `json:"worldDescription"`
	Languages          string   `json:"languages,omitempty"`
	Religion           string   `json:"religion,omitempty"`
	Customs            string   `json:"customs,omitempty"`
	HistoricalEvents   string   `json:"historicalEvents,omitempty"`
	Myths              string   `json:"myths,omitempty"`
	MapImage           string   `json:"mapImage,omitempty"`
}

type Location struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Importance  string `json:"importance"`
}

type Relationship struct {
	CharacterID      string `json:"characterId"`
	RelationshipType string `json:"relationshipType"`
	Description      string `json:"description"`
}

type Character struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Age                 string         `json:"age"`
	Gender              string         `json:"gender"`
	Occupation          string         `json:"occupation"`
	Goals               string         `json:"goals"`
	Role                string         `json:"role"`
	PhysicalDescription string         `json:"physicalDescription"`
	PersonalityTraits   []string       `json:"personalityTraits"`
	Strengths           []string       `json:"strengths"`
	Flaws               []string       `json:"flaws"`
	Backstory           string         `json:"backstory"`
	Motivations         string         `json:"motivations"`
	Conflicts           string         `json:"conflicts"`
	Arc                 string         `json:"arc"`
	Relationships       []Relationship `json:"relationships"`
	VoiceStyle          string         `json:"voiceStyle"`
}

type PlotPoint struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Characters  []string `json:"characters"`
	Location    string   `json:"location"`
	Outcome     string   `json:"outcome"`
	Act         string   `json:"act"`
}

type PlotBeat struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Act         string `json:"act"`
}

type Symbol struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Meaning     string   `json:"meaning"`
	Occurrences []string `json:"occurrences"`
}

type Scene struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Characters []string `json:"characters"`
	Location   string   `json:"location"`
	TimeOfDay  string   `json:"timeOfDay"`
	Outcome    string   `json:"outcome"`
}

type Chapter struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Synopsis      string  `json:"synopsis"`
	Goal          string  `json:"goal"`
	Conflict      string  `json:"conflict"`
	Resolution    string  `json:"resolution"`
	POV           string  `json:"pov"`
	WordCountGoal int     `json:"wordCountGoal"`
	Scenes        []Scene `json:"scenes"`
}

type ResearchNote struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	Content   string     `json:"content"`
	Sources   []string   `json:"sources"`
	Tags      []string   `json:"tags"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type WritingHabits struct {
	BestTime         string   `json:"bestTime"`
	PlannedDays      []string `json:"plannedDays"`
	SessionLength    string   `json:"sessionLength"`
	EnvironmentNotes string   `json:"environmentNotes"`
}

type Deadline struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Priority    string `json:"priority"`
	Description string `json:"description,omitempty"`
}

type WordCountEntry struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

type Schedule struct {
	DailyWordCount int              `json:"dailyWordCount"`
	WeeklyGoal     int              `json:"weeklyGoal"`
	TotalGoal      int              `json:"totalGoal,omitempty"`
	CompletionDate string           `json:"completionDate,omitempty"`
	WritingHabits  *WritingHabits   `json:"writingHabits,omitempty"`
	Deadlines      []Deadline       `json:"deadlines"`
	WordCountLog   []WordCountEntry `json:"wordCountLog,omitempty"`
}

type FeedbackNote struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	Date      string     `json:"date"`
	Content   string     `json:"content"`
	Related   string     `json:"related,omitempty"`
	Section   string     `json:"section,omitempty"`
	Addressed bool       `json:"addressed"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type Draft struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	Words       int       `json:"words"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type RevisionPlanning struct {
	Strategy    string    `json:"strategy"`
	Round       string    `json:"round"`
	Completion  string    `json:"completion"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type VoiceProfile struct {
	CharacterID   string `json:"characterId"`
	SpeechPattern string `json:"speechPattern"`
	Vocabulary    string `json:"vocabulary"`
	Tics          string `json:"tics"`
	Accent        string `json:"accent"`
}

type SampleDialogue struct {
	ID          string `json:"id"`
	CharacterID string `json:"characterId"`
	Text        string `json:"text"`
}

type ConversationContext struct {
	Characters []string `json:"characters"`
	Setting    string   `json:"setting"`
	Goal       string   `json:"goal"`
	Dialogue   string   `json:"dialogue"`
}

type Settings struct {
	DarkMode      bool `json:"darkMode"`
	AutoSave      bool `json:"autoSave"`
	Notifications bool `json:"notifications"`
}

// Dialogue groups the dialogue-and-voice section. The backend persists it
// under its own top-level "dialogue" field rather than flattened.
type Dialogue struct {
	VoiceProfiles       []VoiceProfile       `json:"voiceProfiles,omitempty"`
	SampleDialogues     []SampleDialogue     `json:"sampleDialogues,omitempty"`
	ConversationContext *ConversationContext `json:"conversationContext,omitempty"`
}

// State is the full story document.
type State struct {
	Title           string    `json:"title"`
	Genre           []string  `json:"genre"`
	TargetAudience  string    `json:"targetAudience"`
	Premise         string    `json:"premise"`
	Themes          []string  `json:"themes"`
	Tone            string    `json:"tone"`
	AdditionalNotes string    `json:"additionalNotes"`
	LastUpdated     time.Time `json:"lastUpdated"`

	// Publishing
	QueryLetter   string `json:"queryLetter,omitempty"`
	Synopsis      string `json:"synopsis,omitempty"`
	AuthorBio     string `json:"authorBio,omitempty"`
	MarketingPlan string `json:"marketingPlan,omitempty"`

	Setting   Setting    `json:"setting"`
	Locations []Location `json:"locations"`

	Characters []Character `json:"characters"`

	PlotStructure string      `json:"plotStructure"`
	PlotPoints    []PlotPoint `json:"plotPoints"`
	PlotBeats     []PlotBeat  `json:"plotBeats"`

	POVType         string   `json:"povType"`
	POVCharacters   []string `json:"povCharacters,omitempty"`
	POVNotes        string   `json:"povNotes,omitempty"`
	Tense           string   `json:"tense"`
	Narrator        string   `json:"narrator"`
	NarrativeVoice  string   `json:"narrativeVoice,omitempty"`
	SampleParagraph string   `json:"sampleParagraph,omitempty"`

	CentralThemes       []string `json:"centralThemes"`
	Symbols             []Symbol `json:"symbols"`
	Motifs              []string `json:"motifs"`
	ThemeDescription    string   `json:"themeDescription,omitempty"`
	ThematicDevelopment string   `json:"thematicDevelopment,omitempty"`
	ThemeBeginning      string   `json:"themeBeginning,omitempty"`
	ThemeMiddle         string   `json:"themeMiddle,omitempty"`
	ThemeEnd            string   `json:"themeEnd,omitempty"`

	Chapters      []Chapter      `json:"chapters"`
	ResearchNotes []ResearchNote `json:"researchNotes"`
	Schedule      Schedule       `json:"schedule"`
	Feedback      []FeedbackNote `json:"feedback"`
	Drafts        []Draft        `json:"drafts"`

	RevisionPlanning RevisionPlanning `json:"revisionPlanning"`

	Progress Progress `json:"progress"`
	Settings Settings `json:"settings"`

	Dialogue Dialogue `json:"dialogue"`
}

// NewState returns an empty story with the same defaults the web app
// seeds a fresh story with.
func NewState() State {
	return State{
		Genre:         []string{},
		Themes:        []string{},
		Locations:     []Location{},
		Characters:    []Character{},
		PlotPoints:    []PlotPoint{},
		PlotBeats:     []PlotBeat{},
		POVCharacters: []string{},
		CentralThemes: []string{},
		Symbols:       []Symbol{},
		Motifs:        []string{},
		Chapters:      []Chapter{},
		ResearchNotes: []ResearchNote{},
		Schedule: Schedule{
			TotalGoal: 80000,
			WritingHabits: &WritingHabits{
				PlannedDays: []string{},
			},
			Deadlines: []Deadline{},
		},
		Feedback:    []FeedbackNote{},
		Drafts:      []Draft{},
		LastUpdated: time.Now(),
		Progress: Progress{
			ProgressConcept:           0,
			ProgressWorldbuilding:     0,
			ProgressCharacters:        0,
			ProgressPlot:              0,
			ProgressNarration:         0,
			ProgressThemes:            0,
			ProgressChapters:          0,
			ProgressDialogue:          0,
			ProgressResearch:          0,
			ProgressSchedule:          0,
			ProgressFeedback:          0,
			ProgressTotalWords:        0,
			ProgressChaptersPlanned:   0,
			ProgressChaptersCompleted: 0,
		},
		Settings: Settings{AutoSave: true, Notifications: true},
		Dialogue: Dialogue{
			VoiceProfiles:       []VoiceProfile{},
			SampleDialogues:     []SampleDialogue{},
			ConversationContext: &ConversationContext{Characters: []string{}},
		},
	}
}

// NewElementID mints an ID for characters, locations, plot points and the
// other list elements the editors create locally.
func NewElementID() string {
	return uuid.NewString()
}
