package models

// MatchStage names the search stage that produced a match.
type MatchStage string

const (
	StageNone       MatchStage = ""
	StageStructured MatchStage = "structured"
	StageRelaxed    MatchStage = "relaxed"
	StagePlainText  MatchStage = "plain"
	StageAlbum      MatchStage = "album"
)

// MatchResult is the best catalog candidate for a track.
//
// URI is empty when no stage returned any candidate. Score is a [0, 100]
// confidence and is reported even when it falls below the acceptance threshold.
type MatchResult struct {
	URI     string
	Score   float64
	Artwork string
	Stage   MatchStage
}

// Found reports whether any candidate was selected.
func (m MatchResult) Found() bool { return m.URI != "" }

// Accepted applies an acceptance threshold to the result.
func (m MatchResult) Accepted(threshold float64) bool {
	return m.Found() && m.Score >= threshold
}
