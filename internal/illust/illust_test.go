package illust_test

import (
	"errors"
	"testing"

	"pixie/internal/illust"
)

func valid(id int64) illust.Illust {
	return illust.Illust{
		ID:       id,
		Type:     illust.TypeIllust,
		PageURLs: []string{"https://img.example/p0.png"},
	}
}

func TestValidate(t *testing.T) {
	if err := valid(1).Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	bad := valid(0)
	if err := bad.Validate(); err == nil {
		t.Fatal("zero id should be rejected")
	}

	noPages := valid(2)
	noPages.PageURLs = nil
	if err := noPages.Validate(); err == nil {
		t.Fatal("record without pages should be rejected")
	}

	animated := valid(3)
	animated.Type = illust.TypeUgoira
	if err := animated.Validate(); err == nil {
		t.Fatal("ugoira without frame delays should be rejected")
	}
	animated.FrameDelays = []int{100, 100}
	if err := animated.Validate(); err != nil {
		t.Fatalf("well-formed ugoira rejected: %v", err)
	}

	stray := valid(4)
	stray.FrameDelays = []int{100}
	if err := stray.Validate(); err == nil {
		t.Fatal("frame delays on a still record should be rejected")
	}
}

func TestParseType(t *testing.T) {
	if parsed, ok := illust.ParseType(" Manga "); !ok || parsed != illust.TypeManga {
		t.Fatalf("parse manga: got %q ok=%v", parsed, ok)
	}
	if _, ok := illust.ParseType("sculpture"); ok {
		t.Fatal("unknown type should not parse")
	}
}

func TestDerivedFields(t *testing.T) {
	record := valid(5)
	record.Width, record.Height = 200, 100
	if record.Area() != 20000 {
		t.Fatalf("area: got %d", record.Area())
	}
	if record.AspectRatio() != 2.0 {
		t.Fatalf("aspect ratio: got %v", record.AspectRatio())
	}
	record.Height = 0
	if record.AspectRatio() != 0 {
		t.Fatal("degenerate aspect ratio should be zero")
	}
}

func TestStreamExhaustion(t *testing.T) {
	stream := illust.FromSlice([]illust.Illust{valid(1), valid(2)})

	var ids []int64
	for stream.Next() {
		ids = append(ids, stream.Illust().ID)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("stream order: got %v", ids)
	}
	if stream.Err() != nil {
		t.Fatalf("unexpected stream error: %v", stream.Err())
	}
	if !stream.Exhausted() || stream.Next() {
		t.Fatal("exhausted stream must stay exhausted")
	}
}

func TestStreamStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	stream := illust.NewStream(func() (illust.Illust, bool, error) {
		calls++
		if calls == 1 {
			return valid(1), true, nil
		}
		return illust.Illust{}, false, boom
	})

	items, err := stream.Collect()
	if len(items) != 1 {
		t.Fatalf("expected one record before the error, got %d", len(items))
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected the fetch error, got %v", err)
	}
	if stream.Next() {
		t.Fatal("errored stream must not resume")
	}
}

func TestStreamSeqEarlyStop(t *testing.T) {
	stream := illust.FromSlice([]illust.Illust{valid(1), valid(2), valid(3)})

	var first int64
	for record := range stream.Seq() {
		first = record.ID
		break
	}
	if first != 1 {
		t.Fatalf("expected first record, got %d", first)
	}

	// The remainder is still readable; Seq only consumed what was yielded.
	if !stream.Next() || stream.Illust().ID != 2 {
		t.Fatalf("expected record 2 next, got %v", stream.Illust().ID)
	}
}
