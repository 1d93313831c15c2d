package translator

import (
	"fmt"
	"testing"
	"time"
)

func TestTranscript_Limit(t *testing.T) {
	tr := newTranscript(3)
	now := time.Now()
	for i := 0; i < 5; i++ {
		tr.add(fmt.Sprintf("line %d", i), i%2 == 0, now)
	}

	items := tr.list()
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	if items[0].Text != "line 2" || items[2].Text != "line 4" {
		t.Errorf("Expected the newest items, got %q..%q", items[0].Text, items[2].Text)
	}
	if items[0].ID == items[1].ID {
		t.Error("Expected unique IDs")
	}
}

func TestTranscript_ListIsACopy(t *testing.T) {
	tr := newTranscript(0)
	tr.add("hello", false, time.Now())
	items := tr.list()
	items[0].Text = "changed"
	if tr.list()[0].Text != "hello" {
		t.Error("Expected list to return a copy")
	}
}
