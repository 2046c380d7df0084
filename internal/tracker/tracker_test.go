package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/deephaven-examples/deephaven-ib/internal/gateway"
	"github.com/deephaven-examples/deephaven-ib/internal/reqid"
	"github.com/deephaven-examples/deephaven-ib/internal/sink"
)

func newTestTracker(t *testing.T) (*Tracker, *sink.MemorySink, *[]gateway.Command) {
	t.Helper()
	out := sink.NewMemorySink(16)
	var mu sync.Mutex
	sent := &[]gateway.Command{}
	send := func(cmd gateway.Command) error {
		mu.Lock()
		defer mu.Unlock()
		*sent = append(*sent, cmd)
		return nil
	}
	alloc := reqid.NewAllocator(reqid.DefaultConfig(), func() error { return nil }, nil)
	return New(alloc, out, send, uuid.New(), nil), out, sent
}

func auditActions(t *testing.T, out *sink.MemorySink) []string {
	t.Helper()
	var actions []string
	for _, r := range out.Rows(sink.TableRequests) {
		actions = append(actions, r.(sink.RequestRow).Action)
	}
	return actions
}

func TestOpenAssignsUniqueIDs(t *testing.T) {
	trk, out, _ := newTestTracker(t)

	a := trk.Open(KindMarketData)
	b := trk.Open(KindBarsRealtime)
	if a == b {
		t.Fatalf("Open assigned the same id twice: %d", a)
	}
	if trk.OpenCount() != 2 {
		t.Errorf("OpenCount() = %d, want 2", trk.OpenCount())
	}

	actions := auditActions(t, out)
	if len(actions) != 2 || actions[0] != "open" || actions[1] != "open" {
		t.Errorf("audit actions = %v, want two opens", actions)
	}
}

func TestCompleteResolvesAndAudits(t *testing.T) {
	trk, out, _ := newTestTracker(t)

	id := trk.Open(KindHistoricalTicks, WithWaiter())
	trk.Complete(id, Result{})

	if _, ok := trk.Lookup(id); ok {
		t.Error("Lookup after Complete still finds the request")
	}
	if err := trk.Wait(context.Background(), id); err != nil {
		t.Errorf("Wait after Complete = %v, want nil", err)
	}

	actions := auditActions(t, out)
	if len(actions) != 2 || actions[1] != "complete" {
		t.Errorf("audit actions = %v, want [open complete]", actions)
	}
}

func TestCancelSendsUpstreamCommand(t *testing.T) {
	trk, _, sent := newTestTracker(t)

	id := trk.Open(KindMarketData,
		WithCancelCommand(func(id int64) gateway.Command { return gateway.CancelMktData{ReqID: id} }),
	)
	trk.Cancel(id)

	if len(*sent) != 1 {
		t.Fatalf("sent %d commands, want 1", len(*sent))
	}
	cancel, ok := (*sent)[0].(gateway.CancelMktData)
	if !ok {
		t.Fatalf("sent command type = %T, want CancelMktData", (*sent)[0])
	}
	if cancel.ReqID != id {
		t.Errorf("cancel req id = %d, want %d", cancel.ReqID, id)
	}
}

func TestCancelOneShotSendsNothing(t *testing.T) {
	trk, _, sent := newTestTracker(t)

	id := trk.Open(KindNewsArticle)
	trk.Cancel(id)

	if len(*sent) != 0 {
		t.Errorf("sent %d commands, want 0 for a one-shot request", len(*sent))
	}
}

func TestCancelCompleteRace_ExactlyOneTerminalTransition(t *testing.T) {
	for i := 0; i < 50; i++ {
		trk, out, _ := newTestTracker(t)
		id := trk.Open(KindMarketData, WithWaiter())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			trk.Cancel(id)
		}()
		go func() {
			defer wg.Done()
			trk.Complete(id, Result{})
		}()
		wg.Wait()

		actions := auditActions(t, out)
		if len(actions) != 2 {
			t.Fatalf("audit actions = %v, want exactly one terminal transition", actions)
		}
		last := actions[1]
		if last != "cancel" && last != "complete" {
			t.Fatalf("terminal action = %q", last)
		}
		if _, ok := trk.Lookup(id); ok {
			t.Fatal("request still tracked after terminal transition")
		}
	}
}

func TestDuplicateTerminalIsNoOp(t *testing.T) {
	trk, out, _ := newTestTracker(t)

	id := trk.Open(KindHistoricalTicks)
	trk.Complete(id, Result{})
	trk.Complete(id, Result{})
	trk.Cancel(id)

	actions := auditActions(t, out)
	if len(actions) != 2 {
		t.Errorf("audit actions = %v, duplicates must not audit", actions)
	}
}

func TestWait_ReturnsCompletionError(t *testing.T) {
	trk, _, _ := newTestTracker(t)

	id := trk.Open(KindContractDetails, WithWaiter())
	upstream := gateway.UpstreamError{ReqID: id, Code: 200, Message: "No security definition"}

	go func() {
		time.Sleep(10 * time.Millisecond)
		trk.Complete(id, Result{Err: upstream})
	}()

	err := trk.Wait(context.Background(), id)
	var ue gateway.UpstreamError
	if !errors.As(err, &ue) || ue.Code != 200 {
		t.Fatalf("Wait() error = %v, want the upstream error", err)
	}
}

func TestWait_AfterFailureReturnsError(t *testing.T) {
	trk, _, _ := newTestTracker(t)

	id := trk.Open(KindContractDetails, WithWaiter())
	upstream := gateway.UpstreamError{ReqID: id, Code: 162, Message: "Historical data query failed"}

	// The failure lands before anyone waits on the id.
	trk.Complete(id, Result{Err: upstream})

	err := trk.Wait(context.Background(), id)
	var ue gateway.UpstreamError
	if !errors.As(err, &ue) || ue.Code != 162 {
		t.Fatalf("Wait() after failure = %v, want upstream code 162", err)
	}

	// The result is consumed; a second wait sees nothing.
	if err := trk.Wait(context.Background(), id); err != nil {
		t.Errorf("second Wait() = %v, want nil", err)
	}
}

func TestWait_AbandonedResultNotRetained(t *testing.T) {
	trk, _, _ := newTestTracker(t)

	id := trk.Open(KindContractDetails, WithWaiter())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := trk.Wait(ctx, id); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Wait() error = %v, want ErrTimeout", err)
	}

	// A completion after the waiter gave up is not kept around.
	trk.Complete(id, Result{Err: gateway.UpstreamError{ReqID: id, Code: 200}})

	trk.mu.RLock()
	_, kept := trk.settled[id]
	trk.mu.RUnlock()
	if kept {
		t.Error("result for an abandoned wait was retained")
	}
}

func TestWait_TimesOut(t *testing.T) {
	trk, _, _ := newTestTracker(t)

	id := trk.Open(KindContractDetails, WithWaiter())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := trk.Wait(ctx, id); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Wait() error = %v, want ErrTimeout", err)
	}
}

func TestWait_WithoutWaiterReturnsImmediately(t *testing.T) {
	trk, _, _ := newTestTracker(t)

	id := trk.Open(KindMarketData)
	if err := trk.Wait(context.Background(), id); err != nil {
		t.Fatalf("Wait() on waiterless request = %v, want nil", err)
	}
}

func TestHasWaiter(t *testing.T) {
	trk, _, _ := newTestTracker(t)

	with := trk.Open(KindContractDetails, WithWaiter())
	without := trk.Open(KindContractDetails)

	if !trk.HasWaiter(with) {
		t.Error("HasWaiter() = false for a waiter request")
	}
	if trk.HasWaiter(without) {
		t.Error("HasWaiter() = true for a waiterless request")
	}
}
