package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/guildgate/internal/store/core"
)

func TestUpsertIsIdempotentPerExternalID(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := &core.VerifiedUser{ExternalID: "42", Username: "old", AccessToken: "t1", VerifiedAt: time.Now()}
	if err := s.UpsertByExternalID(ctx, u); err != nil {
		t.Fatal(err)
	}
	u2 := &core.VerifiedUser{ExternalID: "42", Username: "new", AccessToken: "t2", VerifiedAt: time.Now()}
	if err := s.UpsertByExternalID(ctx, u2); err != nil {
		t.Fatal(err)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record after re-verification, got %d", len(all))
	}
	if all[0].Username != "new" || all[0].AccessToken != "t2" {
		t.Fatalf("last write must win: %+v", all[0])
	}
}

func TestConcurrentUpsertSameKey(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.UpsertByExternalID(ctx, &core.VerifiedUser{ExternalID: "dup", AccessToken: "tok", VerifiedAt: time.Now()})
		}()
	}
	wg.Wait()

	all, _ := s.List(ctx)
	if len(all) != 1 {
		t.Fatalf("concurrent upserts produced %d rows, want 1", len(all))
	}
}

func TestListByExternalIDsPreservesOrderAndSkipsUnknown(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_ = s.UpsertByExternalID(ctx, &core.VerifiedUser{ExternalID: id, VerifiedAt: time.Now()})
	}

	got, err := s.ListByExternalIDs(ctx, []string{"c", "nope", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ExternalID != "c" || got[1].ExternalID != "a" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.UpsertByExternalID(ctx, &core.VerifiedUser{ExternalID: "x", VerifiedAt: time.Now()})

	if err := s.DeleteByExternalID(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteByExternalID(ctx, "x"); !core.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetByExternalID(ctx, "x"); !core.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	_ = s.UpsertByExternalID(ctx, &core.VerifiedUser{ExternalID: "1", AccessToken: "t", VerifiedAt: now})
	_ = s.UpsertByExternalID(ctx, &core.VerifiedUser{ExternalID: "2", VerifiedAt: now.Add(-48 * time.Hour)})

	st, err := s.Stats(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 2 || st.Last24h != 1 || st.WithToken != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

// Round-trip: lo que escribe el recorder debe volver idéntico para el reconciler.
func TestRoundTripTokenFidelity(t *testing.T) {
	s := New()
	ctx := context.Background()
	tok := "ya29.exact-token-bytes_ÄÖÜ"
	_ = s.UpsertByExternalID(ctx, &core.VerifiedUser{ExternalID: "rt", AccessToken: tok, VerifiedAt: time.Now()})

	got, err := s.GetByExternalID(ctx, "rt")
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != tok {
		t.Fatalf("token transcoded: %q != %q", got.AccessToken, tok)
	}
}
