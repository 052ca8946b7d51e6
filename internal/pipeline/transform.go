package pipeline

import (
	"errors"
	"fmt"

	"go-tweet-pipeline/internal/model"

	"go.uber.org/zap"
)

// Cleaning step names, in the order they always run.
const (
	StepDropUnwantedRows  = "drop_unwanted_rows"
	StepDropDuplicates    = "drop_duplicates"
	StepConvertToDatetime = "convert_to_datetime"
	StepConvertToNumbers  = "convert_to_numbers"
	StepRemoveNonEnglish  = "remove_non_english"
)

// CleaningSteps lists every step in canonical order.
var CleaningSteps = []string{
	StepDropUnwantedRows,
	StepDropDuplicates,
	StepConvertToDatetime,
	StepConvertToNumbers,
	StepRemoveNonEnglish,
}

// ErrUnknownStep is returned for a step name that is not in CleaningSteps.
var ErrUnknownStep = errors.New("unknown cleaning step")

// StepObserver is notified around every step ApplySteps runs.
type StepObserver interface {
	StartStage(stage string, rowsIn int)
	EndStage(stage string, rowsOut int)
	FailStage(stage string, err error)
}

// ApplySteps runs the named steps on t in canonical order, whatever order
// they are listed in. An empty list runs every step.
func (c *TweetCleaner) ApplySteps(t *model.Table, steps []string, observer StepObserver) (*model.Table, error) {
	selected, err := selectSteps(steps)
	if err != nil {
		return nil, err
	}

	result := t
	for _, name := range CleaningSteps {
		if !selected[name] {
			continue
		}
		if observer != nil {
			observer.StartStage(name, result.Len())
		}

		next, err := c.step(name)(result)
		if err != nil {
			if observer != nil {
				observer.FailStage(name, err)
			}
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		result = next

		if observer != nil {
			observer.EndStage(name, result.Len())
		}
	}

	c.logger.Debug("cleaning finished", zap.Int("rows_in", t.Len()), zap.Int("rows_out", result.Len()))
	return result, nil
}

func (c *TweetCleaner) step(name string) func(*model.Table) (*model.Table, error) {
	switch name {
	case StepDropUnwantedRows:
		return c.DropUnwantedRows
	case StepDropDuplicates:
		return c.DropDuplicates
	case StepConvertToDatetime:
		return c.ConvertToDatetime
	case StepConvertToNumbers:
		return c.ConvertToNumbers
	case StepRemoveNonEnglish:
		return c.RemoveNonEnglish
	default:
		return nil
	}
}

func selectSteps(steps []string) (map[string]bool, error) {
	selected := make(map[string]bool, len(CleaningSteps))
	if len(steps) == 0 {
		for _, s := range CleaningSteps {
			selected[s] = true
		}
		return selected, nil
	}

	known := make(map[string]bool, len(CleaningSteps))
	for _, s := range CleaningSteps {
		known[s] = true
	}
	for _, s := range steps {
		if !known[s] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStep, s)
		}
		selected[s] = true
	}
	return selected, nil
}
