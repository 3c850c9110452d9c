package segment

import (
	"reflect"
	"strings"
	"testing"
)

// ========== Segment ==========

func TestSegment_TwoNumberedQuestionsOnOneLine(t *testing.T) {
	got := Segment("1. What is judicial review? 2. What is a money bill?")
	want := []string{"1. What is judicial review?", "2. What is a money bill?"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Segment = %v, want %v", got, want)
	}
}

func TestSegment_MultiLineQuestionMerges(t *testing.T) {
	text := "3. Discuss the role of\npressure groups in the\nIndian polity?"
	got := Segment(text)
	want := []string{"3. Discuss the role of pressure groups in the Indian polity?"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Segment = %v, want %v", got, want)
	}
}

func TestSegment_MarkerForceClosesPriorBuffer(t *testing.T) {
	// The first question's '?' is mid-buffer; the "2." marker must close it.
	text := "1. What is cooperative federalism? Illustrate\n2. Explain the doctrine of basic structure?"
	got := Segment(text)
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2: %v", len(got), got)
	}
	if got[0] != "1. What is cooperative federalism? Illustrate" {
		t.Errorf("first = %q", got[0])
	}
	if got[1] != "2. Explain the doctrine of basic structure?" {
		t.Errorf("second = %q", got[1])
	}
}

func TestSegment_SubPartMarkers(t *testing.T) {
	text := "(a) Define pressure groups with examples?\n(b) How do they influence policy making?"
	got := Segment(text)
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2: %v", len(got), got)
	}
}

func TestSegment_ShortFragmentDropped(t *testing.T) {
	got := Segment("Why? ")
	if len(got) != 0 {
		t.Errorf("short fragment should be dropped, got %v", got)
	}
}

func TestSegment_NonQuestionTextIgnored(t *testing.T) {
	got := Segment("This document contains instructions.\nRead all of them carefully.")
	if len(got) != 0 {
		t.Errorf("statements without '?' should yield nothing, got %v", got)
	}
}

func TestSegment_BoilerplateRejected(t *testing.T) {
	text := "Page 2 of 4, continued from the previous section, is it?\n" +
		"See the annexure for the detailed map, would you?\n" +
		"4. What are the constitutional safeguards for civil servants?"
	got := Segment(text)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1: %v", len(got), got)
	}
	if !strings.HasPrefix(got[0], "4.") {
		t.Errorf("surviving candidate = %q", got[0])
	}
}

func TestSegment_RunawayBufferSplitsAtEmbeddedQuestionMarks(t *testing.T) {
	// Two questions buried in a long run of text that never terminates with '?'.
	filler := strings.Repeat("irrelevant instructions and administrative notes ", 12)
	text := "Explain the significance of the preamble to the constitution? " +
		"What checks exist on the amending power of parliament? " + filler
	got := Segment(text)
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2: %v", len(got), got)
	}
}

func TestSegment_ExactDuplicatesRemoved(t *testing.T) {
	text := "5. What is a pressure group in politics?\n5. What is a pressure group in politics?"
	got := Segment(text)
	if len(got) != 1 {
		t.Errorf("duplicates should collapse to one, got %v", got)
	}
}

func TestSegment_FlushAtEndOfInput(t *testing.T) {
	// No trailing newline, question mark mid-buffer at EOF.
	got := Segment("6. Why is fiscal federalism contested in India? Comment briefly")
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1: %v", len(got), got)
	}
}

func TestSegment_OverlongCandidateRejected(t *testing.T) {
	got := Segment("7. " + strings.Repeat("very long question text ", 30) + "what do you conclude?")
	if len(got) != 0 {
		t.Errorf("candidates above the length ceiling should be dropped, got %v", got)
	}
}

// ========== splitCompound ==========

func TestSplitCompound_NoMarkerNoSplit(t *testing.T) {
	s := "What is inflation? How is it measured by the RBI?"
	got := splitCompound(s)
	if len(got) != 1 || got[0] != s {
		t.Errorf("questions without markers should stay whole, got %v", got)
	}
}

func TestSplitCompound_SubPartBoundary(t *testing.T) {
	got := splitCompound("Define federalism with suitable examples? (b) Contrast it with unitary systems?")
	if len(got) != 2 {
		t.Errorf("got %v, want a split at the (b) marker", got)
	}
}
