package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/guildgate/internal/discord"
	"github.com/dropDatabas3/guildgate/internal/store/core"
)

type fakeAPI struct {
	addCalls  []string
	roleCalls []string
	addFn     func(userID string) (discord.AddResult, error)
	roleFn    func(userID string) error
	noBot     bool
}

func (f *fakeAPI) AddGuildMember(_ context.Context, _, userID, _ string, _ []string) (discord.AddResult, error) {
	f.addCalls = append(f.addCalls, userID)
	if f.addFn != nil {
		return f.addFn(userID)
	}
	return discord.MemberCreated, nil
}

func (f *fakeAPI) AddMemberRole(_ context.Context, _, userID, _ string) error {
	f.roleCalls = append(f.roleCalls, userID)
	if f.roleFn != nil {
		return f.roleFn(userID)
	}
	return nil
}

func (f *fakeAPI) HasBotToken() bool { return !f.noBot }

type pacerFunc func(ctx context.Context) error

func (f pacerFunc) Wait(ctx context.Context) error { return f(ctx) }

func noPace(context.Context) error { return nil }

func withToken(id string) core.VerifiedUser {
	return core.VerifiedUser{ExternalID: id, Username: "user-" + id, AccessToken: "tok-" + id}
}

func conflict() error {
	return &discord.APIError{Status: 409, Body: "already a member"}
}

func TestRunMixedBatch(t *testing.T) {
	// A se agrega, B no tiene token, C ya es miembro y recibe el rol.
	api := &fakeAPI{
		addFn: func(userID string) (discord.AddResult, error) {
			if userID == "C" {
				return 0, conflict()
			}
			return discord.MemberCreated, nil
		},
	}
	users := []core.VerifiedUser{
		withToken("A"),
		{ExternalID: "B", Username: "user-B"},
		withToken("C"),
	}

	rep, err := New(api, pacerFunc(noPace), nil, nil).Run(context.Background(), "g1", users, "role-1")
	if err != nil {
		t.Fatal(err)
	}

	want := []Status{StatusAdded, StatusSkipped, StatusRoleAssigned}
	if len(rep.Outcomes) != len(want) {
		t.Fatalf("outcomes = %d, want %d", len(rep.Outcomes), len(want))
	}
	for i, st := range want {
		if rep.Outcomes[i].Status != st {
			t.Errorf("outcome[%d] = %s, want %s", i, rep.Outcomes[i].Status, st)
		}
	}
	if rep.Succeeded != 2 || rep.Failed != 0 || rep.Skipped != 1 {
		t.Fatalf("counts = %d/%d/%d, want 2/0/1", rep.Succeeded, rep.Failed, rep.Skipped)
	}
	if rep.Requested != 3 {
		t.Fatalf("requested = %d", rep.Requested)
	}
}

func TestSkippedUserNeverHitsProvider(t *testing.T) {
	api := &fakeAPI{}
	users := []core.VerifiedUser{{ExternalID: "no-token"}}

	rep, err := New(api, pacerFunc(noPace), nil, nil).Run(context.Background(), "g1", users, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(api.addCalls) != 0 || len(api.roleCalls) != 0 {
		t.Fatalf("provider called for tokenless user: add=%v role=%v", api.addCalls, api.roleCalls)
	}
	if rep.Outcomes[0].Status != StatusSkipped || rep.Outcomes[0].Reason != "no access token" {
		t.Fatalf("outcome = %+v", rep.Outcomes[0])
	}
}

func TestConflictWithoutRoleIsAlreadyMember(t *testing.T) {
	api := &fakeAPI{addFn: func(string) (discord.AddResult, error) { return 0, conflict() }}

	rep, err := New(api, pacerFunc(noPace), nil, nil).Run(context.Background(), "g1",
		[]core.VerifiedUser{withToken("A")}, "")
	if err != nil {
		t.Fatal(err)
	}
	if got := rep.Outcomes[0].Status; got != StatusAlreadyMember {
		t.Fatalf("status = %s, want %s", got, StatusAlreadyMember)
	}
	if len(api.roleCalls) != 0 {
		t.Fatal("role assign attempted without a role id")
	}
	// AlreadyMember no cuenta como succeeded ni como failed.
	if rep.Succeeded != 0 || rep.Failed != 0 {
		t.Fatalf("counts = %d/%d, want 0/0", rep.Succeeded, rep.Failed)
	}
}

func TestConflictRoleFallbackFailure(t *testing.T) {
	api := &fakeAPI{
		addFn:  func(string) (discord.AddResult, error) { return 0, conflict() },
		roleFn: func(string) error { return &discord.APIError{Status: 403, Body: "missing permissions"} },
	}

	rep, err := New(api, pacerFunc(noPace), nil, nil).Run(context.Background(), "g1",
		[]core.VerifiedUser{withToken("A")}, "role-1")
	if err != nil {
		t.Fatal(err)
	}
	o := rep.Outcomes[0]
	if o.Status != StatusFailed || o.Reason == "" {
		t.Fatalf("outcome = %+v, want failed with reason", o)
	}
}

func TestFailureIsolation(t *testing.T) {
	api := &fakeAPI{
		addFn: func(userID string) (discord.AddResult, error) {
			if userID == "B" {
				return 0, &discord.APIError{Status: 502, Body: "bad gateway"}
			}
			return discord.MemberCreated, nil
		},
	}
	users := []core.VerifiedUser{withToken("A"), withToken("B"), withToken("C")}

	rep, err := New(api, pacerFunc(noPace), nil, nil).Run(context.Background(), "g1", users, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Outcomes) != 3 {
		t.Fatalf("a single failure aborted the batch: %d outcomes", len(rep.Outcomes))
	}
	if rep.Outcomes[1].Status != StatusFailed {
		t.Fatalf("outcome[1] = %s", rep.Outcomes[1].Status)
	}
	if rep.Outcomes[2].Status != StatusAdded {
		t.Fatalf("user after the failure not processed: %s", rep.Outcomes[2].Status)
	}
	if rep.Succeeded != 2 || rep.Failed != 1 {
		t.Fatalf("counts = %d/%d", rep.Succeeded, rep.Failed)
	}
}

func TestRunLevelFatals(t *testing.T) {
	users := []core.VerifiedUser{withToken("A")}

	if _, err := New(&fakeAPI{}, pacerFunc(noPace), nil, nil).Run(context.Background(), "", users, ""); !errors.Is(err, ErrEmptyGuildID) {
		t.Fatalf("empty guild id: err = %v", err)
	}

	api := &fakeAPI{noBot: true}
	if _, err := New(api, pacerFunc(noPace), nil, nil).Run(context.Background(), "g1", users, ""); !errors.Is(err, ErrNoBotAccess) {
		t.Fatalf("missing bot creds: err = %v", err)
	}
	if len(api.addCalls) != 0 {
		t.Fatal("per-user attempt made despite missing bot credentials")
	}
}

func TestCancellationReturnsPartialReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAPI{}
	// Cancela durante el pacing posterior al primer usuario.
	pacer := pacerFunc(func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	users := []core.VerifiedUser{withToken("A"), withToken("B"), withToken("C")}

	rep, err := New(api, pacer, nil, nil).Run(ctx, "g1", users, "")
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Partial {
		t.Fatal("report not marked partial")
	}
	if len(rep.Outcomes) != 1 || rep.Outcomes[0].ExternalID != "A" {
		t.Fatalf("partial outcomes = %+v", rep.Outcomes)
	}
	if len(api.addCalls) != 1 {
		t.Fatalf("calls after cancellation: %v", api.addCalls)
	}
}

func TestPacerRunsBetweenUsersOnly(t *testing.T) {
	var waits int
	pacer := pacerFunc(func(context.Context) error { waits++; return nil })
	users := []core.VerifiedUser{withToken("A"), withToken("B"), withToken("C")}

	if _, err := New(&fakeAPI{}, pacer, nil, nil).Run(context.Background(), "g1", users, ""); err != nil {
		t.Fatal(err)
	}
	if waits != 2 {
		t.Fatalf("pacer waits = %d, want 2", waits)
	}
}

func TestOutcomeHookObservesEveryStatus(t *testing.T) {
	seen := map[Status]int{}
	api := &fakeAPI{addFn: func(userID string) (discord.AddResult, error) {
		if userID == "B" {
			return 0, conflict()
		}
		return discord.MemberCreated, nil
	}}
	users := []core.VerifiedUser{withToken("A"), withToken("B"), {ExternalID: "C"}}

	_, err := New(api, pacerFunc(noPace), nil, func(s Status) { seen[s]++ }).Run(context.Background(), "g1", users, "r")
	if err != nil {
		t.Fatal(err)
	}
	if seen[StatusAdded] != 1 || seen[StatusRoleAssigned] != 1 || seen[StatusSkipped] != 1 {
		t.Fatalf("hook observations = %v", seen)
	}
}

func TestDelayPacerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewDelayPacer(time.Hour).Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestBucketPacerAllowsBurst(t *testing.T) {
	p := NewBucketPacer(1000, 5)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 5; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
}
