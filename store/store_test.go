package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"skirace/match"
)

func openTemp(t *testing.T) (*BoltStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	return s, path
}

func sampleResult(id string) match.MatchResult {
	return match.MatchResult{
		MatchID: id,
		Code:    "ABC123",
		Mode:    "race",
		Seed:    7,
		Ticks:   300,
		EndedAt: time.Unix(1700000000, 0).UTC(),
		Results: []match.Result{
			{PlayerID: "p1", OwnerID: "u1", DisplayName: "Ann", Placement: 1, Score: 40, Distance: 900, Status: "finished", Connected: true},
			{PlayerID: "p2", DisplayName: "Guest-1a2b", Placement: 2, Score: 12, Distance: 300, Status: "crashed"},
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	want := sampleResult("m1")
	if err := s.SaveResults(context.Background(), want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("m1")
	if err != nil {
		t.Fatal(err)
	}
	if got.MatchID != "m1" || got.Ticks != 300 || len(got.Results) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.Results[0].DisplayName != "Ann" || !got.EndedAt.Equal(want.EndedAt) {
		t.Fatalf("got %+v", got.Results[0])
	}
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestMatchesOfOwner(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	for _, id := range []string{"m2", "m1"} {
		if err := s.SaveResults(context.Background(), sampleResult(id)); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := s.MatchesOf("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "m1" || ids[1] != "m2" {
		t.Fatalf("ids = %v", ids)
	}
	// 游客没有 owner，不建索引
	if ids, _ := s.MatchesOf(""); len(ids) != 0 {
		t.Fatalf("guest ids = %v", ids)
	}
}

func TestReopenKeepsResults(t *testing.T) {
	s, path := openTemp(t)
	if err := s.SaveResults(context.Background(), sampleResult("m1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Get("m1"); err != nil {
		t.Fatal(err)
	}
}

func TestCanceledContext(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SaveResults(ctx, sampleResult("m1")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
