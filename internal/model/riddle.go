package model

// Difficulty is the difficulty tag a question list is requested with.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return true
	}
	return false
}

// Riddle is a single multi-step challenge. A riddle is solved once every one
// of its TotalSteps hints has been answered correctly.
type Riddle struct {
	ID         int    `json:"riddle_id" yaml:"riddle_id"`
	PromptText string `json:"prompt_text" yaml:"prompt_text"`
	TotalSteps int    `json:"total_steps" yaml:"total_steps"`
}

// StepPrompt is the visual hint shown for one step of a riddle.
type StepPrompt struct {
	RiddleID int    `json:"riddle_id"`
	Step     int    `json:"step"`
	Guide    string `json:"guide"`
}

// WordVideo is a playable reference for a word or phrase.
type WordVideo struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}
