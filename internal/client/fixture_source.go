package client

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stemsi/handgame-backend/internal/game"
	"github.com/stemsi/handgame-backend/internal/model"
)

// fixtureFile is the on-disk layout of a riddle fixture.
type fixtureFile struct {
	DefaultGuide string            `yaml:"default_guide"`
	Riddles      []fixtureRiddle   `yaml:"riddles"`
	Videos       map[string]string `yaml:"videos"`
}

type fixtureRiddle struct {
	model.Riddle `yaml:",inline"`
	// Difficulties lists the difficulties the riddle is served for. Empty
	// means every difficulty.
	Difficulties []model.Difficulty `yaml:"difficulties"`
	Guides       []string           `yaml:"guides"`
}

// FixtureSource serves riddles from a YAML file instead of the riddle
// service. Used for local development and tests.
type FixtureSource struct {
	fixture fixtureFile
}

// LoadFixtureSource reads and validates the fixture at path.
func LoadFixtureSource(path string) (*FixtureSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read riddle fixture: %w", err)
	}
	return ParseFixtureSource(raw)
}

// ParseFixtureSource builds a FixtureSource from YAML bytes.
func ParseFixtureSource(raw []byte) (*FixtureSource, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse riddle fixture: %w", err)
	}
	if len(f.Riddles) == 0 {
		return nil, fmt.Errorf("riddle fixture has no riddles")
	}

	seen := make(map[int]bool, len(f.Riddles))
	for _, r := range f.Riddles {
		if seen[r.ID] {
			return nil, fmt.Errorf("riddle fixture: duplicate riddle_id %d", r.ID)
		}
		seen[r.ID] = true
		if r.TotalSteps < 1 {
			return nil, fmt.Errorf("riddle fixture: riddle %d has total_steps %d", r.ID, r.TotalSteps)
		}
	}
	return &FixtureSource{fixture: f}, nil
}

// FetchQuestionList returns up to total riddles for difficulty in file order.
func (s *FixtureSource) FetchQuestionList(ctx context.Context, difficulty model.Difficulty, total int) ([]model.Riddle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", game.ErrTransport, err)
	}

	var out []model.Riddle
	for _, r := range s.fixture.Riddles {
		if total > 0 && len(out) == total {
			break
		}
		if r.servedFor(difficulty) {
			out = append(out, r.Riddle)
		}
	}
	return out, nil
}

// FetchStepPrompt returns the guide configured for the step, falling back
// to the fixture's default guide.
func (s *FixtureSource) FetchStepPrompt(ctx context.Context, riddleID, step int) (model.StepPrompt, error) {
	if err := ctx.Err(); err != nil {
		return model.StepPrompt{}, fmt.Errorf("%w: %v", game.ErrTransport, err)
	}

	r, ok := s.riddle(riddleID)
	if !ok || step < 1 || step > r.TotalSteps {
		return model.StepPrompt{}, fmt.Errorf("%w: no step %d for riddle %d", game.ErrTransport, step, riddleID)
	}

	guide := s.fixture.DefaultGuide
	if step <= len(r.Guides) && r.Guides[step-1] != "" {
		guide = r.Guides[step-1]
	}
	if guide == "" {
		return model.StepPrompt{}, fmt.Errorf("%w: no guide for riddle %d step %d", game.ErrTransport, riddleID, step)
	}
	return model.StepPrompt{RiddleID: riddleID, Step: step, Guide: guide}, nil
}

// FetchWordVideo returns the video configured for text.
func (s *FixtureSource) FetchWordVideo(ctx context.Context, text string) (model.WordVideo, error) {
	if err := ctx.Err(); err != nil {
		return model.WordVideo{}, fmt.Errorf("%w: %v", game.ErrTransport, err)
	}
	link, ok := s.fixture.Videos[text]
	if !ok {
		return model.WordVideo{}, fmt.Errorf("%w: no video for %q", game.ErrTransport, text)
	}
	return model.WordVideo{Text: text, URL: link}, nil
}

func (s *FixtureSource) riddle(id int) (fixtureRiddle, bool) {
	for _, r := range s.fixture.Riddles {
		if r.ID == id {
			return r, true
		}
	}
	return fixtureRiddle{}, false
}

func (r fixtureRiddle) servedFor(d model.Difficulty) bool {
	if len(r.Difficulties) == 0 {
		return true
	}
	for _, candidate := range r.Difficulties {
		if candidate == d {
			return true
		}
	}
	return false
}
