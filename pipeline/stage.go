package pipeline

// Stage is a step of a batch run. Stages run in order; each one starts only
// after the previous one has finished for every genome.
type Stage int

const (
	StageParseInput Stage = iota
	StageResolveAccessions
	StagePrimaryFanout
	StageDetermineFallbackSet
	StageSecondaryFanout
	StageMerge
	StageWriteReport
	StageCleanup
	StageDone
)

var stageNames = [...]string{
	StageParseInput:           "PARSE_INPUT",
	StageResolveAccessions:    "RESOLVE_ACCESSIONS",
	StagePrimaryFanout:        "PRIMARY_FANOUT",
	StageDetermineFallbackSet: "DETERMINE_FALLBACK_SET",
	StageSecondaryFanout:      "SECONDARY_FANOUT",
	StageMerge:                "MERGE",
	StageWriteReport:          "WRITE_REPORT",
	StageCleanup:              "CLEANUP",
	StageDone:                 "DONE",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN_STAGE"
	}
	return stageNames[s]
}
