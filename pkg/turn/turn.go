// Package turn folds the council's stream events into the canonical state
// of one in-flight assistant turn: which stages are pending, which have
// produced data, and whether the turn ended in success or failure.
//
// State is a value type. Every transition returns a fresh snapshot and
// leaves the receiver untouched, so published snapshots never alias and can
// be rendered concurrently while the fold continues.
package turn

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/llmcouncil/councilgo/pkg/models"
)

// Stage identifies one of the three council phases.
type Stage string

const (
	Stage1 Stage = "stage1"
	Stage2 Stage = "stage2"
	Stage3 Stage = "stage3"
)

// Status is the lifecycle of a turn. Complete and failed are terminal; a
// terminal turn never mutates again.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// ErrIncompleteStream marks a transport that closed before a terminal
// event arrived.
var ErrIncompleteStream = errors.New("stream closed before the turn completed")

// StreamError carries the diagnostic from a service-sent error event, as
// opposed to a transport-level failure.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string { return e.Message }

// State is one snapshot of an assistant turn under assembly. The zero
// value is unusable; start from New.
type State struct {
	Status   Status
	Stage1   []models.Stage1Response
	Stage2   []models.Stage2Ranking
	Metadata *models.RankingMetadata
	Stage3   *models.Stage3Response

	// Loading holds the stages whose start event has arrived but whose
	// data has not. Never mutated in place; transitions clone it.
	Loading map[Stage]bool

	// Err is set when Status is failed.
	Err error
}

// New returns an idle turn with nothing pending.
func New() State {
	return State{Status: StatusIdle}
}

// Begin moves an idle turn to in-progress. Called once, at submission.
func (s State) Begin() (State, bool) {
	if s.Status != StatusIdle {
		return s, false
	}
	s.Status = StatusInProgress
	return s, true
}

// Apply folds one event into the state, returning the next snapshot and
// whether anything changed. Duplicates, events for stages that already
// hold data, events in terminal states, and payloads that fail to decode
// are all ignored.
func (s State) Apply(ev models.StreamEvent) (State, bool) {
	if s.Terminal() {
		return s, false
	}

	switch ev.Type {
	case models.EventStage1Start:
		if s.Status != StatusInProgress || s.Stage1 != nil {
			return s, false
		}
		return s.addLoading(Stage1)

	case models.EventStage1:
		if s.Status != StatusInProgress || s.Stage1 != nil {
			return s, false
		}
		var data []models.Stage1Response
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			logBadPayload(ev.Type, err)
			return s, false
		}
		s = s.removeLoading(Stage1)
		s.Stage1 = data
		return s, true

	case models.EventStage2Start:
		if s.Status != StatusInProgress || s.Stage2 != nil {
			return s, false
		}
		return s.addLoading(Stage2)

	case models.EventStage2:
		if s.Status != StatusInProgress || s.Stage2 != nil {
			return s, false
		}
		var data []models.Stage2Ranking
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			logBadPayload(ev.Type, err)
			return s, false
		}
		s = s.removeLoading(Stage2)
		s.Stage2 = data
		s.Metadata = decodeMetadata(ev.Metadata)
		return s, true

	case models.EventStage3Start:
		if s.Status != StatusInProgress || s.Stage3 != nil {
			return s, false
		}
		return s.addLoading(Stage3)

	case models.EventStage3:
		if s.Status != StatusInProgress {
			return s, false
		}
		var data models.Stage3Response
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			logBadPayload(ev.Type, err)
			return s, false
		}
		s = s.removeLoading(Stage3)
		s.Stage3 = &data
		s.Status = StatusComplete
		return s, true

	case models.EventError:
		return s.fail(&StreamError{Message: ev.Message}), true

	default:
		// The decoder only emits recognized tags; this arm is a safety net.
		return s, false
	}
}

// Finish models end-of-input: a turn still in flight fails with
// ErrIncompleteStream, stages already received retained unmodified.
func (s State) Finish() (State, bool) {
	if s.Terminal() {
		return s, false
	}
	return s.fail(ErrIncompleteStream), true
}

// Fail records a transport-level failure. No-op once terminal.
func (s State) Fail(err error) (State, bool) {
	if s.Terminal() {
		return s, false
	}
	return s.fail(err), true
}

// Terminal reports whether the turn reached complete or failed.
func (s State) Terminal() bool {
	return s.Status == StatusComplete || s.Status == StatusFailed
}

// Waiting reports whether a stage has started but not yet produced data.
func (s State) Waiting(st Stage) bool {
	return s.Loading[st]
}

func (s State) fail(err error) State {
	s.Status = StatusFailed
	s.Err = err
	s.Loading = nil
	return s
}

func (s State) addLoading(st Stage) (State, bool) {
	if s.Loading[st] {
		return s, false
	}
	m := make(map[Stage]bool, len(s.Loading)+1)
	for k, v := range s.Loading {
		m[k] = v
	}
	m[st] = true
	s.Loading = m
	return s, true
}

func (s State) removeLoading(st Stage) State {
	if !s.Loading[st] {
		return s
	}
	m := make(map[Stage]bool, len(s.Loading))
	for k, v := range s.Loading {
		if k != st {
			m[k] = v
		}
	}
	s.Loading = m
	return s
}

func decodeMetadata(raw json.RawMessage) *models.RankingMetadata {
	if len(raw) == 0 {
		return nil
	}
	var md models.RankingMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		log.Debug().Err(err).Msg("Ignoring ranking metadata that failed to decode")
		return nil
	}
	return &md
}

func logBadPayload(t models.EventType, err error) {
	log.Debug().Err(err).Str("type", string(t)).Msg("Ignoring stage payload that failed to decode")
}
