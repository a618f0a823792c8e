package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"petsphere/pkg/queue"
)

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []queue.Job
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, job queue.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.jobs = append(n.jobs, job)
	return nil
}

func newTestQueue(t *testing.T) *queue.RedisJobQueue {
	t.Helper()
	redis := miniredis.RunT(t)
	q, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:   redis.Addr(),
		Stream: "test:notifications",
		Group:  "notifiers",
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q
}

func TestWorkerDeliversKnownEvents(t *testing.T) {
	notifier := &recordingNotifier{}
	w, err := NewWorker(Config{Queue: newTestQueue(t), Notifier: notifier})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	for _, event := range []string{queue.EventPetCreated, queue.EventPetPhotoUpdated} {
		job := queue.Job{ID: "job-" + event, Event: event, PetID: "pet-1", OwnerID: "user-1"}
		if err := w.handle(context.Background(), job); err != nil {
			t.Fatalf("handle(%s): %v", event, err)
		}
	}
	if len(notifier.jobs) != 2 {
		t.Fatalf("delivered %d jobs, want 2", len(notifier.jobs))
	}
}

func TestWorkerSkipsUnknownEvents(t *testing.T) {
	notifier := &recordingNotifier{}
	w, err := NewWorker(Config{Queue: newTestQueue(t), Notifier: notifier})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	job := queue.Job{ID: "job-1", Event: "pet.renamed", PetID: "pet-1"}
	if err := w.handle(context.Background(), job); err != nil {
		t.Fatalf("unknown event should ack cleanly, got %v", err)
	}
	if len(notifier.jobs) != 0 {
		t.Fatalf("unknown event was delivered: %+v", notifier.jobs)
	}
}

func TestWorkerPropagatesDeliveryFailure(t *testing.T) {
	wantErr := errors.New("push provider down")
	notifier := &recordingNotifier{err: wantErr}
	w, err := NewWorker(Config{Queue: newTestQueue(t), Notifier: notifier})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	job := queue.Job{ID: "job-1", Event: queue.EventPetCreated}
	if err := w.handle(context.Background(), job); !errors.Is(err, wantErr) {
		t.Fatalf("handle = %v, want delivery error for retry", err)
	}
}

func TestNewWorkerRequiresQueue(t *testing.T) {
	if _, err := NewWorker(Config{}); err == nil {
		t.Fatal("NewWorker without queue should fail")
	}
}
