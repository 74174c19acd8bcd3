package lifecycle_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"collective/internal/lifecycle"
	"collective/internal/services"
)

type call struct {
	method string
	height uint64
	open   bool
}

// chain simulates one governance instance whose block height advances only
// while the coordinator sleeps: one block per poll interval slept.
type chain struct {
	mu         sync.Mutex
	height     uint64
	proposalID uint64
	start      uint64
	ends       []uint64
	closesAt   uint64
	passed     bool
	opened     bool
	calls      []call
	reads      map[string]int
}

func newChain() *chain {
	return &chain{
		height:     990,
		proposalID: 7,
		start:      1000,
		ends:       []uint64{1010},
		closesAt:   1011,
		passed:     true,
		reads:      make(map[string]int),
	}
}

func (c *chain) isOpenLocked() bool {
	return c.opened && c.height < c.closesAt
}

func (c *chain) record(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call{method: method, height: c.height, open: c.isOpenLocked()})
	if method == "openVote" {
		c.opened = true
	}
}

func (c *chain) read(method string) {
	c.mu.Lock()
	c.reads[method]++
	c.mu.Unlock()
}

func (c *chain) sends() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	for i, cl := range c.calls {
		out[i] = cl.method
	}
	return out
}

func (c *chain) find(method string) (call, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cl := range c.calls {
		if cl.method == method {
			return cl, true
		}
	}
	return call{}, false
}

func (c *chain) Propose(context.Context) (uint64, error) {
	c.record("propose")
	return c.proposalID, nil
}

func (c *chain) Configure(context.Context, uint64, uint64, uint64) error {
	c.record("configure")
	return nil
}

func (c *chain) OpenVote(context.Context, uint64) error {
	c.record("openVote")
	return nil
}

func (c *chain) IsOpen(context.Context, uint64) (bool, error) {
	c.read("isOpen")
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOpenLocked(), nil
}

func (c *chain) EndVote(context.Context, uint64) error {
	c.record("endVote")
	return nil
}

func (c *chain) VoteSucceeded(context.Context, uint64) (bool, error) {
	c.read("voteSucceeded")
	return c.passed, nil
}

func (c *chain) VoteFor(context.Context, uint64) error {
	c.record("voteFor")
	return nil
}

func (c *chain) VoteAgainst(context.Context, uint64) error {
	c.record("voteAgainst")
	return nil
}

func (c *chain) AbstainFromVote(context.Context, uint64) error {
	c.record("abstainFromVote")
	return nil
}

func (c *chain) VoteForWithTokenID(context.Context, uint64, uint64) error {
	c.record("voteForWithToken")
	return nil
}

func (c *chain) VoteAgainstWithTokenID(context.Context, uint64, uint64) error {
	c.record("voteAgainstWithToken")
	return nil
}

func (c *chain) AbstainWithTokenID(context.Context, uint64, uint64) error {
	c.record("abstainWithToken")
	return nil
}

func (c *chain) QuorumRequired(context.Context, uint64) (uint64, error) {
	c.read("quorumRequired")
	return 1, nil
}

func (c *chain) VoteDuration(context.Context, uint64) (uint64, error) {
	c.read("voteDuration")
	return 5, nil
}

func (c *chain) StartBlock(context.Context, uint64) (uint64, error) {
	c.read("startBlock")
	return c.start, nil
}

func (c *chain) EndBlock(context.Context, uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads["endBlock"]++
	end := c.ends[0]
	if len(c.ends) > 1 {
		c.ends = c.ends[1:]
	}
	return end, nil
}

func (c *chain) BlockHeight(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height, nil
}

func (c *chain) setHeight(h uint64) {
	c.mu.Lock()
	c.height = h
	c.mu.Unlock()
}

const interval = time.Millisecond

func (c *chain) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blocks := uint64(d / interval)
	if blocks == 0 {
		blocks = 1
	}
	c.mu.Lock()
	c.height += blocks
	c.mu.Unlock()
	return nil
}

func newCoordinator(c *chain, mutate func(*lifecycle.Options)) *lifecycle.Coordinator {
	opts := lifecycle.Options{PollInterval: interval, Sleep: c.sleep}
	if mutate != nil {
		mutate(&opts)
	}
	return lifecycle.New(c, c, c, opts)
}

func TestRunEndToEnd(t *testing.T) {
	c := newChain()
	result, err := newCoordinator(c, nil).Run(context.Background(), lifecycle.Plan{Quorum: 1, Duration: 5, Vote: lifecycle.ChoiceFor})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Passed {
		t.Fatal("expected the measure to pass")
	}
	want := lifecycle.Proposal{ID: 7, Quorum: 1, Duration: 5, StartBlock: 1000, EndBlock: 1010, State: lifecycle.StateClosed}
	if result.Proposal != want {
		t.Fatalf("unexpected proposal\n got: %+v\nwant: %+v", result.Proposal, want)
	}
	if got := c.sends(); !reflect.DeepEqual(got, []string{"propose", "configure", "openVote", "voteFor", "endVote"}) {
		t.Fatalf("unexpected send order %v", got)
	}

	open, _ := c.find("openVote")
	if open.height < 1000 {
		t.Fatalf("openVote sent at height %d before start block 1000", open.height)
	}
	end, _ := c.find("endVote")
	if end.open && end.height < 1010 {
		t.Fatalf("endVote sent at height %d while vote open", end.height)
	}
	if end.height != 1011 {
		t.Fatalf("expected endVote once the vote closed at 1011, got %d", end.height)
	}
}

func TestRunVotesWithToken(t *testing.T) {
	c := newChain()
	token := uint64(12)
	_, err := newCoordinator(c, nil).Run(context.Background(), lifecycle.Plan{Quorum: 1, Duration: 5, Vote: lifecycle.ChoiceAgainst, TokenID: &token})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := c.sends(); !reflect.DeepEqual(got, []string{"propose", "configure", "openVote", "voteAgainstWithToken", "endVote"}) {
		t.Fatalf("unexpected send order %v", got)
	}
}

func TestRunReportsFailedMeasure(t *testing.T) {
	c := newChain()
	c.passed = false
	result, err := newCoordinator(c, nil).Run(context.Background(), lifecycle.Plan{Quorum: 1, Duration: 5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Passed {
		t.Fatal("expected the measure to fail")
	}
	if _, voted := c.find("voteFor"); voted {
		t.Fatal("choice none must not vote")
	}
}

func TestStepsOutOfOrderAreViolations(t *testing.T) {
	ctx := context.Background()
	c := newChain()
	coord := newCoordinator(c, nil)

	if err := coord.Open(ctx); !errors.Is(err, services.ErrLifecycleViolation) {
		t.Fatalf("Open before propose: expected violation, got %v", err)
	}
	if _, err := coord.Propose(ctx); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := coord.Propose(ctx); !errors.Is(err, services.ErrLifecycleViolation) {
		t.Fatalf("second Propose: expected violation, got %v", err)
	}
	if err := coord.AwaitStart(ctx); !errors.Is(err, services.ErrLifecycleViolation) {
		t.Fatalf("AwaitStart before configure: expected violation, got %v", err)
	}
	if err := coord.Configure(ctx, 1, 5); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := coord.Configure(ctx, 1, 5); !errors.Is(err, services.ErrLifecycleViolation) {
		t.Fatalf("configure is issued once per proposal, got %v", err)
	}
	if err := coord.Close(ctx); !errors.Is(err, services.ErrLifecycleViolation) {
		t.Fatalf("Close before end wait: expected violation, got %v", err)
	}
	if _, err := coord.Outcome(ctx); !errors.Is(err, services.ErrLifecycleViolation) {
		t.Fatalf("Outcome before close: expected violation, got %v", err)
	}
	if got := c.sends(); !reflect.DeepEqual(got, []string{"propose", "configure"}) {
		t.Fatalf("refused steps must not send, got %v", got)
	}
}

func TestOpenRefusesBeforeStartBlock(t *testing.T) {
	ctx := context.Background()
	c := newChain()
	coord := newCoordinator(c, nil)
	if _, err := coord.Propose(ctx); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if err := coord.Configure(ctx, 1, 5); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := coord.AwaitStart(ctx); err != nil {
		t.Fatalf("AwaitStart: %v", err)
	}

	c.setHeight(999)
	if err := coord.Open(ctx); !errors.Is(err, services.ErrLifecycleViolation) {
		t.Fatalf("expected violation below start block, got %v", err)
	}
	if _, sent := c.find("openVote"); sent {
		t.Fatal("openVote must not be sent below the start block")
	}
	if coord.Proposal().State != lifecycle.StatePendingStart {
		t.Fatalf("unexpected state %s", coord.Proposal().State)
	}

	c.setHeight(1000)
	if err := coord.Open(ctx); err != nil {
		t.Fatalf("Open at start block: %v", err)
	}
}

func TestAwaitEndTreatsEndBlockAsFixed(t *testing.T) {
	c := newChain()
	c.ends = []uint64{1010, 1020}
	c.closesAt = 5000

	result, err := newCoordinator(c, nil).Run(context.Background(), lifecycle.Plan{Quorum: 1, Duration: 5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	end, _ := c.find("endVote")
	if end.height != 1011 {
		t.Fatalf("expected endVote just past block 1010, got %d", end.height)
	}
	if c.reads["endBlock"] != 1 || result.Proposal.EndBlock != 1010 {
		t.Fatalf("expected a single endBlock read, got %d (end %d)", c.reads["endBlock"], result.Proposal.EndBlock)
	}
}

func TestAwaitEndRefreshesEndBlock(t *testing.T) {
	c := newChain()
	c.ends = []uint64{1010, 1020}
	c.closesAt = 5000

	coord := newCoordinator(c, func(o *lifecycle.Options) { o.RefreshEndBlock = true })
	result, err := coord.Run(context.Background(), lifecycle.Plan{Quorum: 1, Duration: 5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	end, _ := c.find("endVote")
	if end.height != 1021 {
		t.Fatalf("expected endVote just past the moved end block 1020, got %d", end.height)
	}
	if result.Proposal.EndBlock != 1020 {
		t.Fatalf("expected refreshed end block, got %d", result.Proposal.EndBlock)
	}
}

// openAt drives a coordinator on a simulated clock to an open vote at height
// start. Sleeping advances the clock and, when advance is set, the height by
// one block per second slept.
func openAt(t *testing.T, c *chain, advance bool, mutate func(*lifecycle.Options)) *lifecycle.Coordinator {
	t.Helper()
	now := time.Unix(1700000000, 0)
	coord := newCoordinator(c, func(o *lifecycle.Options) {
		o.PollInterval = time.Second
		o.WaitTimeout = 30 * time.Second
		o.Now = func() time.Time { return now }
		o.Sleep = func(ctx context.Context, d time.Duration) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			now = now.Add(d)
			if advance {
				c.mu.Lock()
				c.height += uint64(d / time.Second)
				c.mu.Unlock()
			}
			return nil
		}
		if mutate != nil {
			mutate(o)
		}
	})
	ctx := context.Background()
	c.setHeight(c.start)
	if _, err := coord.Propose(ctx); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if err := coord.Configure(ctx, 1, 5); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := coord.AwaitStart(ctx); err != nil {
		t.Fatalf("AwaitStart: %v", err)
	}
	if err := coord.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return coord
}

func TestAwaitEndTimesOutWhenStalledAtEndBlock(t *testing.T) {
	c := newChain()
	c.closesAt = 5000
	coord := openAt(t, c, false, func(o *lifecycle.Options) { o.WaitTimeout = 5 * time.Second })
	c.setHeight(1010)

	err := coord.AwaitEnd(context.Background())
	if !errors.Is(err, services.ErrWaitTimeout) {
		t.Fatalf("expected wait timeout at a stalled end block, got %v", err)
	}
	if _, sent := c.find("endVote"); sent {
		t.Fatal("endVote must not be sent after a timed out wait")
	}
}

func TestAwaitEndTimeoutCoversMovingEndBlock(t *testing.T) {
	c := newChain()
	c.closesAt = 1 << 40
	c.ends = nil
	for end := uint64(1010); end < 1010+10*1000; end += 10 {
		c.ends = append(c.ends, end)
	}
	coord := openAt(t, c, true, func(o *lifecycle.Options) { o.RefreshEndBlock = true })

	err := coord.AwaitEnd(context.Background())
	if !errors.Is(err, services.ErrWaitTimeout) {
		t.Fatalf("expected one timeout across refreshed end blocks, got %v", err)
	}
	if h, _ := c.BlockHeight(context.Background()); h > 1000+30 {
		t.Fatalf("expected the wait to stop within the timeout, height reached %d", h)
	}
}

func TestOutcomeReadIsRepeatable(t *testing.T) {
	ctx := context.Background()
	c := newChain()
	coord := newCoordinator(c, nil)
	if _, err := coord.Run(ctx, lifecycle.Plan{Quorum: 1, Duration: 5}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	sends := len(c.sends())
	for i := 0; i < 3; i++ {
		passed, err := coord.Outcome(ctx)
		if err != nil || !passed {
			t.Fatalf("Outcome read %d: %v %v", i, passed, err)
		}
	}
	if len(c.sends()) != sends {
		t.Fatal("outcome reads must not send")
	}
}

func TestCancellationAbandonsWait(t *testing.T) {
	c := newChain()
	ctx, cancel := context.WithCancel(context.Background())
	sleeps := 0
	coord := newCoordinator(c, func(o *lifecycle.Options) {
		o.Sleep = func(ctx context.Context, d time.Duration) error {
			sleeps++
			cancel()
			return ctx.Err()
		}
	})

	_, err := coord.Run(ctx, lifecycle.Plan{Quorum: 1, Duration: 5})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if sleeps != 1 {
		t.Fatalf("expected the first sleep to end the wait, got %d sleeps", sleeps)
	}
	if got := c.sends(); !reflect.DeepEqual(got, []string{"propose", "configure"}) {
		t.Fatalf("no send may follow a cancelled wait, got %v", got)
	}
	if coord.Proposal().State != lifecycle.StatePendingStart {
		t.Fatalf("unexpected state %s", coord.Proposal().State)
	}
}

func TestStateLabels(t *testing.T) {
	tests := map[lifecycle.State]string{
		lifecycle.StateNone:         "Not Proposed",
		lifecycle.StateCreated:      "Created",
		lifecycle.StatePendingStart: "Pending Start",
		lifecycle.StatePendingEnd:   "Pending End",
		lifecycle.StateClosed:       "Closed",
	}
	for state, want := range tests {
		if got := state.Label(); got != want {
			t.Fatalf("%q: expected %q, got %q", state, want, got)
		}
	}
	if len(lifecycle.AllStates()) != 6 {
		t.Fatalf("unexpected states %v", lifecycle.AllStates())
	}
}

func TestParseChoice(t *testing.T) {
	for input, want := range map[string]lifecycle.Choice{
		"":        lifecycle.ChoiceNone,
		"none":    lifecycle.ChoiceNone,
		"FOR":     lifecycle.ChoiceFor,
		"against": lifecycle.ChoiceAgainst,
		"abstain": lifecycle.ChoiceAbstain,
	} {
		got, ok := lifecycle.ParseChoice(input)
		if !ok || got != want {
			t.Fatalf("ParseChoice(%q) = %q, %v", input, got, ok)
		}
	}
	if _, ok := lifecycle.ParseChoice("maybe"); ok {
		t.Fatal("expected unknown choice to be refused")
	}
}
