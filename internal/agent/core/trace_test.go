package core

import (
	"testing"
	"time"
)

func traceEvent(seq int, msg string) TraceEvent {
	return TraceEvent{RunID: "r1", Seq: seq, Kind: EventStep, Message: msg, Timestamp: time.Now()}
}

func TestBufferSinkOffsets(t *testing.T) {
	sink := &BufferSink{}
	for i := 0; i < 3; i++ {
		sink.Emit(traceEvent(i, "event"))
	}

	if sink.Len() != 3 {
		t.Fatalf("len = %d, want 3", sink.Len())
	}
	if got := sink.Events(0); len(got) != 3 {
		t.Fatalf("full snapshot length = %d", len(got))
	}
	if got := sink.Events(2); len(got) != 1 || got[0].Seq != 2 {
		t.Fatalf("unexpected tail snapshot: %v", got)
	}
	if got := sink.Events(3); got != nil {
		t.Fatalf("past-end offset should yield nil, got %v", got)
	}
	if got := sink.Events(-1); got != nil {
		t.Fatalf("negative offset should yield nil, got %v", got)
	}
}

func TestBufferSinkSnapshotIsCopy(t *testing.T) {
	sink := &BufferSink{}
	sink.Emit(traceEvent(0, "original"))

	snap := sink.Events(0)
	snap[0].Message = "mutated"
	if sink.Events(0)[0].Message != "original" {
		t.Fatal("snapshot mutation must not leak into the sink")
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &BufferSink{}
	b := &BufferSink{}
	multi := MultiSink{a, nil, b}

	multi.Emit(traceEvent(0, "hello"))
	if a.Len() != 1 || b.Len() != 1 {
		t.Fatalf("fan-out incomplete: a=%d b=%d", a.Len(), b.Len())
	}
}
