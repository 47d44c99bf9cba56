package dataset

import "fmt"

// Stage names the pipeline step that raised a warning.
type Stage string

const (
	StageLoad      Stage = "load"
	StageClassify  Stage = "classify"
	StageMerge     Stage = "merge"
	StageNormalize Stage = "normalize"
	StageSummarize Stage = "summarize"
)

// Warning is a recoverable degradation surfaced to the user.
type Warning struct {
	Stage   Stage  `json:"stage"`
	Source  string `json:"source,omitempty"`
	Message string `json:"message"`
}

// Warnf builds a Warning with a formatted message.
func Warnf(stage Stage, source, format string, args ...any) Warning {
	return Warning{Stage: stage, Source: source, Message: fmt.Sprintf(format, args...)}
}

func (w Warning) String() string {
	if w.Source == "" {
		return fmt.Sprintf("[%s] %s", w.Stage, w.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", w.Stage, w.Source, w.Message)
}
