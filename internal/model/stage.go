package model

// StageSpan is the closed index interval a stage occupies within the raw
// series, plus advisory features computed by the detector.
type StageSpan struct {
	Start    int
	End      int
	Features map[string]any
}

// StageTimeline maps stage ids to their detected spans.
type StageTimeline map[string]StageSpan

// GlobalStage is the sentinel stage id meaning "the whole run".
const GlobalStage = "global"
