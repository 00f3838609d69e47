package sse_test

import (
	"testing"

	"github.com/llmcouncil/councilgo/pkg/models"
	"github.com/llmcouncil/councilgo/pkg/sse"
)

// feedString is a convenience for the common single-chunk case.
func feedString(d *sse.Decoder, s string) []models.StreamEvent {
	return d.Feed([]byte(s))
}

// ─── Framing ─────────────────────────────────────────────────

func TestFeedSingleEvent(t *testing.T) {
	d := sse.NewDecoder()

	events := feedString(d, "data: {\"type\":\"stage1_start\"}\n\n")
	if len(events) != 1 {
		t.Fatalf("Feed() returned %d events, want 1", len(events))
	}
	if events[0].Type != models.EventStage1Start {
		t.Errorf("event type = %q, want %q", events[0].Type, models.EventStage1Start)
	}
	if d.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", d.Dropped())
	}
}

func TestFeedEventSplitAcrossChunks(t *testing.T) {
	d := sse.NewDecoder()

	if events := feedString(d, "data: {\"type\":\"sta"); len(events) != 0 {
		t.Fatalf("partial line produced %d events, want 0", len(events))
	}
	events := feedString(d, "ge2_start\"}\n")
	if len(events) != 1 {
		t.Fatalf("completing line produced %d events, want 1", len(events))
	}
	if events[0].Type != models.EventStage2Start {
		t.Errorf("event type = %q, want %q", events[0].Type, models.EventStage2Start)
	}
}

func TestFeedByteByByteMatchesWhole(t *testing.T) {
	stream := "data: {\"type\":\"stage1_start\"}\n\n" +
		"data: {\"type\":\"stage1\",\"data\":[{\"model\":\"m\",\"response\":\"r\"}]}\n\n" +
		": keep-alive\n" +
		"data: {\"type\":\"stage3\",\"data\":{\"model\":\"m\",\"response\":\"done\"}}\n\n"

	whole := sse.NewDecoder().Feed([]byte(stream))

	byByte := sse.NewDecoder()
	var split []models.StreamEvent
	for i := 0; i < len(stream); i++ {
		split = append(split, byByte.Feed([]byte{stream[i]})...)
	}

	if len(split) != len(whole) {
		t.Fatalf("byte-by-byte produced %d events, whole chunk %d", len(split), len(whole))
	}
	for i := range whole {
		if split[i].Type != whole[i].Type {
			t.Errorf("event %d: type %q vs %q", i, split[i].Type, whole[i].Type)
		}
		if string(split[i].Data) != string(whole[i].Data) {
			t.Errorf("event %d: data %q vs %q", i, split[i].Data, whole[i].Data)
		}
	}
}

func TestFeedCRLFLines(t *testing.T) {
	d := sse.NewDecoder()

	events := feedString(d, "data: {\"type\":\"stage3_start\"}\r\n\r\n")
	if len(events) != 1 {
		t.Fatalf("Feed() with CRLF returned %d events, want 1", len(events))
	}
	if events[0].Type != models.EventStage3Start {
		t.Errorf("event type = %q, want %q", events[0].Type, models.EventStage3Start)
	}
}

func TestTrailingFragmentHeldUntilNewline(t *testing.T) {
	d := sse.NewDecoder()

	if events := feedString(d, "data: {\"type\":\"stage1_start\"}"); len(events) != 0 {
		t.Fatalf("unterminated line produced %d events, want 0", len(events))
	}
	// The newline may arrive much later; the fragment must survive unrelated
	// chunks in between.
	if events := feedString(d, ""); len(events) != 0 {
		t.Fatalf("empty chunk produced %d events, want 0", len(events))
	}
	events := feedString(d, "\n")
	if len(events) != 1 {
		t.Fatalf("newline did not complete the buffered line: %d events, want 1", len(events))
	}
}

// ─── Line filtering ──────────────────────────────────────────

func TestNonDataLinesIgnored(t *testing.T) {
	d := sse.NewDecoder()

	stream := "event: message\n" +
		": comment line\n" +
		"\n" +
		"id: 42\n" +
		"Data: {\"type\":\"stage1_start\"}\n" +
		"data:{\"type\":\"stage1_start\"}\n"
	if events := feedString(d, stream); len(events) != 0 {
		t.Fatalf("non-data lines produced %d events, want 0", len(events))
	}
	if d.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0; unprefixed lines are not diagnostics", d.Dropped())
	}
}

func TestPrefixedNonJSONDropped(t *testing.T) {
	d := sse.NewDecoder()

	events := feedString(d, "data: {not json\ndata: {\"type\":\"stage1_start\"}\n")
	if len(events) != 1 {
		t.Fatalf("Feed() returned %d events, want 1", len(events))
	}
	if d.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", d.Dropped())
	}
}

func TestUnknownTagDropped(t *testing.T) {
	d := sse.NewDecoder()

	events := feedString(d, "data: {\"type\":\"title_complete\",\"title\":\"x\"}\n")
	if len(events) != 0 {
		t.Fatalf("unknown tag produced %d events, want 0", len(events))
	}
	if d.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", d.Dropped())
	}
}

func TestBadFrameDoesNotKillStream(t *testing.T) {
	d := sse.NewDecoder()

	stream := "data: {\"type\":\"stage1_start\"}\n" +
		"data: garbage\n" +
		"data: {\"type\":\"stage2_start\"}\n"
	events := feedString(d, stream)
	if len(events) != 2 {
		t.Fatalf("Feed() returned %d events, want 2", len(events))
	}
	if events[0].Type != models.EventStage1Start || events[1].Type != models.EventStage2Start {
		t.Errorf("events = %q, %q; want stage1_start, stage2_start", events[0].Type, events[1].Type)
	}
}

// ─── Payload passthrough ─────────────────────────────────────

func TestEventCarriesRawPayload(t *testing.T) {
	d := sse.NewDecoder()

	events := feedString(d, "data: {\"type\":\"stage2\",\"data\":[],\"metadata\":{\"label_to_model\":{\"A\":\"m\"}}}\n")
	if len(events) != 1 {
		t.Fatalf("Feed() returned %d events, want 1", len(events))
	}
	if string(events[0].Data) != "[]" {
		t.Errorf("Data = %q, want %q", events[0].Data, "[]")
	}
	if len(events[0].Metadata) == 0 {
		t.Error("Metadata should carry the raw object")
	}
}

func TestErrorEventCarriesMessage(t *testing.T) {
	d := sse.NewDecoder()

	events := feedString(d, "data: {\"type\":\"error\",\"message\":\"provider quota exceeded\"}\n")
	if len(events) != 1 {
		t.Fatalf("Feed() returned %d events, want 1", len(events))
	}
	if events[0].Message != "provider quota exceeded" {
		t.Errorf("Message = %q, want %q", events[0].Message, "provider quota exceeded")
	}
}
