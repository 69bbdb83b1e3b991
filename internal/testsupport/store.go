package testsupport

import (
	"context"
	"testing"

	"stillcut/internal/config"
	"stillcut/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob enqueues a job with one single-pair group per output name.
func NewJob(t testing.TB, store *queue.Store, outDir string, outputs ...string) *queue.Job {
	t.Helper()

	groups := make([]queue.Group, 0, len(outputs))
	for i, name := range outputs {
		groups = append(groups, queue.Group{
			OutputFilename: name,
			Pairs: []queue.Pair{{
				Index: i,
				Image: "/images/" + name + ".jpg",
				Audio: "/audio/" + name + ".mp3",
			}},
		})
	}
	job, err := store.Enqueue(context.Background(), queue.NewJob{
		ImagesDir:  "/images",
		AudioDir:   "/audio",
		OutDir:     outDir,
		GroupMode:  "1",
		OnExisting: config.OnExistingError,
		Groups:     groups,
	})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}
