package scrollback

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestBuffer_AppendAssignsSequence(t *testing.T) {
	b := New(0)

	first := b.Append(NewEntry(StatusInfo, "Connected."))
	second := b.Append(Entry{Kind: Output, Content: "ok", Text: "ok"})

	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("seqs = %d, %d, want 1, 2", first.Seq, second.Seq)
	}
	if first.Time.IsZero() {
		t.Error("expected Time to be set")
	}
	if b.LastSeq() != 2 {
		t.Errorf("LastSeq() = %d, want 2", b.LastSeq())
	}
}

func TestBuffer_SnapshotReadAfterWrite(t *testing.T) {
	b := New(0)
	for i := 0; i < 5; i++ {
		b.Append(NewEntry(Input, "cmd"))
		snap := b.Snapshot()
		if len(snap) != i+1 {
			t.Fatalf("after %d appends Snapshot has %d entries", i+1, len(snap))
		}
		if snap[i].Seq != uint64(i+1) {
			t.Errorf("entry %d seq = %d", i, snap[i].Seq)
		}
	}
}

func TestBuffer_SnapshotIsCopy(t *testing.T) {
	b := New(0)
	b.Append(NewEntry(Input, "a"))

	snap := b.Snapshot()
	snap[0].Text = "changed"

	if b.Snapshot()[0].Text != "a" {
		t.Error("modifying a snapshot changed the buffer")
	}
}

func TestBuffer_Since(t *testing.T) {
	b := New(0)
	for i := 0; i < 4; i++ {
		b.Append(NewEntry(Input, "x"))
	}

	tests := []struct {
		seq  uint64
		want int
	}{
		{0, 4},
		{1, 3},
		{3, 1},
		{4, 0},
		{10, 0},
	}
	for _, tc := range tests {
		got := b.Since(tc.seq)
		if len(got) != tc.want {
			t.Errorf("Since(%d) returned %d entries, want %d", tc.seq, len(got), tc.want)
		}
		if len(got) > 0 && got[0].Seq != tc.seq+1 {
			t.Errorf("Since(%d) starts at seq %d", tc.seq, got[0].Seq)
		}
	}
}

func TestBuffer_Limit(t *testing.T) {
	b := New(3)
	for i := 0; i < 10; i++ {
		b.Append(NewEntry(Input, string(rune('a'+i))))
	}

	snap := b.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Len = %d, want 3", len(snap))
	}
	if snap[0].Seq != 8 || snap[2].Seq != 10 {
		t.Errorf("retained seqs %d..%d, want 8..10", snap[0].Seq, snap[2].Seq)
	}
	if snap[2].Text != "j" {
		t.Errorf("newest text = %q, want %q", snap[2].Text, "j")
	}

	// Entries older than the retained window are not replayed.
	if got := b.Since(2); len(got) != 3 {
		t.Errorf("Since(2) returned %d entries, want 3", len(got))
	}
}

func TestBuffer_Notify(t *testing.T) {
	b := New(0)

	select {
	case <-b.Notify():
		t.Fatal("unexpected notification before append")
	default:
	}

	b.Append(NewEntry(StatusInfo, "hi"))
	b.Append(NewEntry(StatusInfo, "again"))

	select {
	case <-b.Notify():
	default:
		t.Fatal("expected notification after append")
	}
}

func TestBuffer_ConcurrentAppend(t *testing.T) {
	b := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Append(NewEntry(Output, "x"))
			}
		}()
	}
	wg.Wait()

	snap := b.Snapshot()
	if len(snap) != 1000 {
		t.Fatalf("Len = %d, want 1000", len(snap))
	}
	for i, e := range snap {
		if e.Seq != uint64(i+1) {
			t.Fatalf("entry %d has seq %d", i, e.Seq)
		}
	}
}

func TestNewEntry_EscapesText(t *testing.T) {
	e := NewEntry(Input, "echo <b>&")
	if e.Content != "echo &lt;b&gt;&amp;" {
		t.Errorf("Content = %q", e.Content)
	}
	if e.Text != "echo <b>&" {
		t.Errorf("Text = %q", e.Text)
	}
}

func TestEntry_JSONKind(t *testing.T) {
	data, err := json.Marshal(NewEntry(StatusError, "Disconnected."))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"status_error"`) {
		t.Errorf("json = %s", data)
	}
}

func TestEntry_JSONKindDecode(t *testing.T) {
	var e Entry
	if err := json.Unmarshal([]byte(`{"seq":3,"kind":"output","content":"x"}`), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if e.Kind != Output || e.Seq != 3 {
		t.Errorf("decoded %+v", e)
	}
	if err := json.Unmarshal([]byte(`{"kind":"banner"}`), &e); err == nil {
		t.Error("expected error for unknown kind")
	}
}
