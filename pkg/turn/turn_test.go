package turn_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/llmcouncil/councilgo/pkg/models"
	"github.com/llmcouncil/councilgo/pkg/turn"
)

func event(t *testing.T, typ models.EventType, payload interface{}) models.StreamEvent {
	t.Helper()
	ev := models.StreamEvent{Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		ev.Data = data
	}
	return ev
}

func stage1Payload() []models.Stage1Response {
	return []models.Stage1Response{
		{Model: "openai/gpt-5", Response: "first answer"},
		{Model: "google/gemini-3-pro-preview", Response: "second answer"},
	}
}

func stage2Payload() []models.Stage2Ranking {
	return []models.Stage2Ranking{
		{Model: "openai/gpt-5", Ranking: "FINAL RANKING:\n1. B\n2. A\n", ParsedRanking: []string{"B", "A"}},
	}
}

func stage3Payload() models.Stage3Response {
	return models.Stage3Response{Model: "google/gemini-3-pro-preview", Response: "the final word"}
}

// apply folds an event and fails the test if the state did not change.
func apply(t *testing.T, s turn.State, ev models.StreamEvent) turn.State {
	t.Helper()
	next, changed := s.Apply(ev)
	if !changed {
		t.Fatalf("Apply(%s) did not change the state", ev.Type)
	}
	return next
}

// ─── Lifecycle ───────────────────────────────────────────────

func TestBegin(t *testing.T) {
	s := turn.New()
	if s.Status != turn.StatusIdle {
		t.Fatalf("New().Status = %q, want %q", s.Status, turn.StatusIdle)
	}

	s, changed := s.Begin()
	if !changed {
		t.Fatal("Begin() from idle should change the state")
	}
	if s.Status != turn.StatusInProgress {
		t.Errorf("after Begin, Status = %q, want %q", s.Status, turn.StatusInProgress)
	}

	if _, changed := s.Begin(); changed {
		t.Error("Begin() twice should be a no-op")
	}
}

func TestHappyPath(t *testing.T) {
	s, _ := turn.New().Begin()

	s = apply(t, s, event(t, models.EventStage1Start, nil))
	if !s.Waiting(turn.Stage1) {
		t.Error("after stage1_start, Waiting(Stage1) = false, want true")
	}

	s = apply(t, s, event(t, models.EventStage1, stage1Payload()))
	if s.Waiting(turn.Stage1) {
		t.Error("after stage1 data, Waiting(Stage1) = true, want false")
	}
	if len(s.Stage1) != 2 {
		t.Errorf("Stage1 holds %d answers, want 2", len(s.Stage1))
	}

	s = apply(t, s, event(t, models.EventStage2Start, nil))
	if !s.Waiting(turn.Stage2) {
		t.Error("after stage2_start, Waiting(Stage2) = false, want true")
	}

	ev := event(t, models.EventStage2, stage2Payload())
	ev.Metadata, _ = json.Marshal(models.RankingMetadata{
		LabelToModel: map[string]string{"A": "openai/gpt-5", "B": "google/gemini-3-pro-preview"},
		AggregateRankings: []models.AggregateRanking{
			{Model: "google/gemini-3-pro-preview", AverageRank: 1, RankingsCount: 1},
		},
	})
	s = apply(t, s, ev)
	if s.Metadata == nil {
		t.Fatal("Metadata = nil after stage2 event that carried it")
	}
	if s.Metadata.LabelToModel["B"] != "google/gemini-3-pro-preview" {
		t.Errorf("LabelToModel[B] = %q, want the gemini model", s.Metadata.LabelToModel["B"])
	}

	s = apply(t, s, event(t, models.EventStage3Start, nil))
	if !s.Waiting(turn.Stage3) {
		t.Error("after stage3_start, Waiting(Stage3) = false, want true")
	}

	s = apply(t, s, event(t, models.EventStage3, stage3Payload()))
	if s.Status != turn.StatusComplete {
		t.Errorf("after stage3, Status = %q, want %q", s.Status, turn.StatusComplete)
	}
	if !s.Terminal() {
		t.Error("completed turn should be terminal")
	}
	if s.Stage3 == nil || s.Stage3.Response != "the final word" {
		t.Errorf("Stage3 = %+v, want the synthesized answer", s.Stage3)
	}
	if s.Waiting(turn.Stage3) {
		t.Error("completed turn should have no loading stages")
	}
}

func TestStage3WithoutStartStillCompletes(t *testing.T) {
	s, _ := turn.New().Begin()

	s = apply(t, s, event(t, models.EventStage3, stage3Payload()))
	if s.Status != turn.StatusComplete {
		t.Errorf("Status = %q, want %q", s.Status, turn.StatusComplete)
	}
}

// ─── Idempotence and guards ──────────────────────────────────

func TestDuplicateStartIgnored(t *testing.T) {
	s, _ := turn.New().Begin()
	s = apply(t, s, event(t, models.EventStage1Start, nil))

	if _, changed := s.Apply(event(t, models.EventStage1Start, nil)); changed {
		t.Error("duplicate stage1_start should not change the state")
	}
}

func TestDuplicateDataIgnored(t *testing.T) {
	s, _ := turn.New().Begin()
	s = apply(t, s, event(t, models.EventStage1, stage1Payload()))

	replacement := []models.Stage1Response{{Model: "m", Response: "overwrite attempt"}}
	next, changed := s.Apply(event(t, models.EventStage1, replacement))
	if changed {
		t.Fatal("second stage1 event should not change the state")
	}
	if next.Stage1[0].Response != "first answer" {
		t.Errorf("Stage1[0].Response = %q, want the original answer kept", next.Stage1[0].Response)
	}
}

func TestStartAfterDataIgnored(t *testing.T) {
	s, _ := turn.New().Begin()
	s = apply(t, s, event(t, models.EventStage1, stage1Payload()))

	next, changed := s.Apply(event(t, models.EventStage1Start, nil))
	if changed {
		t.Fatal("stage1_start after stage1 data should not change the state")
	}
	if next.Waiting(turn.Stage1) {
		t.Error("a stage with data must never show as loading again")
	}
}

func TestEventsAfterTerminalIgnored(t *testing.T) {
	s, _ := turn.New().Begin()
	s = apply(t, s, event(t, models.EventStage3, stage3Payload()))

	for _, ev := range []models.StreamEvent{
		event(t, models.EventStage1Start, nil),
		event(t, models.EventStage1, stage1Payload()),
		{Type: models.EventError, Message: "late failure"},
	} {
		if _, changed := s.Apply(ev); changed {
			t.Errorf("Apply(%s) after terminal state should be a no-op", ev.Type)
		}
	}
	if s.Status != turn.StatusComplete {
		t.Errorf("Status = %q, want %q", s.Status, turn.StatusComplete)
	}
}

func TestBadPayloadIgnored(t *testing.T) {
	s, _ := turn.New().Begin()

	ev := models.StreamEvent{Type: models.EventStage1, Data: json.RawMessage(`{"not":"a list"}`)}
	if _, changed := s.Apply(ev); changed {
		t.Error("undecodable stage payload should not change the state")
	}
}

func TestEventsBeforeBeginIgnored(t *testing.T) {
	s := turn.New()

	if _, changed := s.Apply(event(t, models.EventStage1Start, nil)); changed {
		t.Error("events before Begin should not change an idle turn")
	}
}

// ─── Failure paths ───────────────────────────────────────────

func TestErrorEventFails(t *testing.T) {
	s, _ := turn.New().Begin()
	s = apply(t, s, event(t, models.EventStage1, stage1Payload()))
	s = apply(t, s, event(t, models.EventStage2Start, nil))

	s = apply(t, s, models.StreamEvent{Type: models.EventError, Message: "provider quota exceeded"})
	if s.Status != turn.StatusFailed {
		t.Fatalf("Status = %q, want %q", s.Status, turn.StatusFailed)
	}

	var serr *turn.StreamError
	if !errors.As(s.Err, &serr) {
		t.Fatalf("Err = %T, want *turn.StreamError", s.Err)
	}
	if serr.Message != "provider quota exceeded" {
		t.Errorf("StreamError.Message = %q, want the event's message", serr.Message)
	}
	if s.Waiting(turn.Stage2) {
		t.Error("failure must clear loading stages")
	}
	if len(s.Stage1) != 2 {
		t.Error("failure must keep the stages already received")
	}
}

func TestFinishWhileInProgress(t *testing.T) {
	s, _ := turn.New().Begin()
	s = apply(t, s, event(t, models.EventStage1, stage1Payload()))

	s, changed := s.Finish()
	if !changed {
		t.Fatal("Finish() on an in-flight turn should change the state")
	}
	if s.Status != turn.StatusFailed {
		t.Errorf("Status = %q, want %q", s.Status, turn.StatusFailed)
	}
	if !errors.Is(s.Err, turn.ErrIncompleteStream) {
		t.Errorf("Err = %v, want ErrIncompleteStream", s.Err)
	}
	if len(s.Stage1) != 2 {
		t.Error("Finish must keep the stages already received")
	}
}

func TestFinishAfterCompleteIsNoOp(t *testing.T) {
	s, _ := turn.New().Begin()
	s = apply(t, s, event(t, models.EventStage3, stage3Payload()))

	if _, changed := s.Finish(); changed {
		t.Error("Finish() after completion should be a no-op")
	}
}

func TestFailRecordsCause(t *testing.T) {
	s, _ := turn.New().Begin()

	cause := errors.New("connection reset")
	s, changed := s.Fail(cause)
	if !changed {
		t.Fatal("Fail() on an in-flight turn should change the state")
	}
	if !errors.Is(s.Err, cause) {
		t.Errorf("Err = %v, want the recorded cause", s.Err)
	}

	if _, changed := s.Fail(errors.New("second")); changed {
		t.Error("Fail() on a failed turn should be a no-op")
	}
}

// ─── Snapshot isolation ──────────────────────────────────────

func TestSnapshotsDoNotAlias(t *testing.T) {
	s, _ := turn.New().Begin()
	before := apply(t, s, event(t, models.EventStage1Start, nil))

	after := apply(t, before, event(t, models.EventStage1, stage1Payload()))

	if !before.Waiting(turn.Stage1) {
		t.Error("earlier snapshot mutated: Waiting(Stage1) flipped to false")
	}
	if after.Waiting(turn.Stage1) {
		t.Error("later snapshot should not be waiting on stage1")
	}
	if before.Stage1 != nil {
		t.Error("earlier snapshot mutated: Stage1 became non-nil")
	}
}
