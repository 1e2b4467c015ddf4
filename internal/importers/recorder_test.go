package importers

import (
	"context"
	"sync"

	"github.com/mrlokans/courseimport/internal/progress"
)

type recorder struct {
	mu    sync.Mutex
	snaps []progress.Snapshot
}

func (r *recorder) Report(ctx context.Context, snap progress.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return nil
}

func (r *recorder) last() progress.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

func (r *recorder) phases() []progress.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Phase
	for _, s := range r.snaps {
		if len(out) == 0 || out[len(out)-1] != s.Phase {
			out = append(out, s.Phase)
		}
	}
	return out
}
