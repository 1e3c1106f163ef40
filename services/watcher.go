// services/watcher.go - Live participant/host view of a session
package services

import (
	"context"
	"time"

	"wizzzard/docstore"
	"wizzzard/models"
	"wizzzard/session"
)

const defaultTick = time.Second

// Update is emitted for every new snapshot and every countdown tick.
type Update struct {
	Quiz *models.QuizSession
	View session.View
	Tick bool
}

type Watcher struct {
	store docstore.Store
	now   func() time.Time
	tick  time.Duration
}

func NewWatcher(store docstore.Store) *Watcher {
	return &Watcher{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		tick:  defaultTick,
	}
}

// WithTick sets the countdown refresh interval.
func (w *Watcher) WithTick(d time.Duration) *Watcher {
	w.tick = d
	return w
}

// Watch streams updates for a session to onUpdate until ctx is cancelled or
// the subscription fails. onUpdate runs on the calling goroutine. The
// subscription and ticker are released before Watch returns.
func (w *Watcher) Watch(ctx context.Context, id string, onUpdate func(Update)) error {
	docs := make(chan *models.QuizSession, 8)
	errs := make(chan error, 1)

	unsubscribe, err := w.store.Subscribe(ctx, id, func(q *models.QuizSession) {
		select {
		case docs <- q:
			return
		default:
		}
		// Full: drop the oldest, the newer snapshot supersedes it.
		select {
		case <-docs:
		default:
		}
		select {
		case docs <- q:
		default:
		}
	}, func(err error) {
		select {
		case errs <- err:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	var (
		view   session.View
		latest *models.QuizSession
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errs:
			return err

		case q := <-docs:
			next, err := session.Reduce(view, q.Snapshot(), w.now())
			if err != nil {
				return err
			}
			if latest == nil || q.Version >= latest.Version {
				latest = q
			}
			view = next
			onUpdate(Update{Quiz: latest, View: view})

		case <-ticker.C:
			if latest == nil || view.Phase != session.PhaseShown {
				continue
			}
			view = session.Tick(view, w.now())
			onUpdate(Update{Quiz: latest, View: view, Tick: true})
		}
	}
}
