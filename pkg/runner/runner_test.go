package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kasuganosora/rowwatch/pkg/backstore"
)

func newTestRunner() *Runner {
	return New(zap.NewNop())
}

// Two read-only tasks over overlapping scope run concurrently: neither
// blocks the other.
func TestRunnerAllowsConcurrentReads(t *testing.T) {
	r := newTestRunner()
	var wg sync.WaitGroup
	started := make(chan struct{}, 2)
	release := make(chan struct{})

	run := func() {
		defer wg.Done()
		task := NewTask([]string{"movie"}, backstore.ReadOnly)
		_, err := r.Run(context.Background(), task, func(ctx context.Context) (any, error) {
			started <- struct{}{}
			<-release
			return nil, nil
		})
		if err != nil {
			t.Error(err)
		}
	}

	wg.Add(2)
	go run()
	go run()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("expected both read-only tasks to start without waiting on each other")
		}
	}
	close(release)
	wg.Wait()
}

// A write task against a table excludes any other task on that table until
// it finishes.
func TestRunnerSerializesWriteAgainstOverlappingScope(t *testing.T) {
	r := newTestRunner()
	var order []string
	var mu sync.Mutex
	release := make(chan struct{})
	writeStarted := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		task := NewTask([]string{"movie"}, backstore.ReadWrite)
		r.Run(context.Background(), task, func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, "write-start")
			mu.Unlock()
			close(writeStarted)
			<-release
			mu.Lock()
			order = append(order, "write-end")
			mu.Unlock()
			return nil, nil
		})
	}()

	<-writeStarted
	go func() {
		defer wg.Done()
		task := NewTask([]string{"movie"}, backstore.ReadOnly)
		r.Run(context.Background(), task, func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, "read")
			mu.Unlock()
			return nil, nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if len(order) != 3 || order[0] != "write-start" || order[1] != "write-end" || order[2] != "read" {
		t.Fatalf("expected the read to wait for the write to finish, got %v", order)
	}
}

// Disjoint-scope tasks never block each other, even when both are writes.
func TestRunnerAllowsDisjointScopeWrites(t *testing.T) {
	r := newTestRunner()
	var wg sync.WaitGroup
	started := make(chan struct{}, 2)
	release := make(chan struct{})

	run := func(table string) {
		defer wg.Done()
		task := NewTask([]string{table}, backstore.ReadWrite)
		r.Run(context.Background(), task, func(ctx context.Context) (any, error) {
			started <- struct{}{}
			<-release
			return nil, nil
		})
	}

	wg.Add(2)
	go run("movie")
	go run("actor")

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("expected disjoint-scope writes to run concurrently")
		}
	}
	close(release)
	wg.Wait()
}

func TestRunnerHonorsCancelBeforeAdmission(t *testing.T) {
	r := newTestRunner()
	blocking := NewTask([]string{"movie"}, backstore.ReadWrite)
	release := make(chan struct{})
	go r.Run(context.Background(), blocking, func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})
	time.Sleep(10 * time.Millisecond)

	waiting := NewTask([]string{"movie"}, backstore.ReadOnly)
	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), waiting, func(ctx context.Context) (any, error) {
			return nil, nil
		})
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	waiting.Cancel()
	close(release)

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a cancelled task to return an error instead of running")
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled task never returned")
	}
}
