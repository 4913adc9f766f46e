package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/smallnest/chanx"
)

// RefreshFunc recomputes one lot.
type RefreshFunc func(ctx context.Context, lotID uuid.UUID) error

// Watcher subscribes to the change channel and calls Refresh once per lot
// after the lot has been quiet for Debounce.
type Watcher struct {
	Rdb      *redis.Client
	Channel  string
	Debounce time.Duration
	Refresh  RefreshFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

var ErrWatcherStarted = errors.New("watcher already started")

// Start subscribes and returns once the subscription is confirmed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return ErrWatcherStarted
	}
	if w.Refresh == nil {
		return errors.New("watcher needs a refresh func")
	}
	channel := w.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	ctx, cancel := context.WithCancel(ctx)
	ps := w.Rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		cancel()
		_ = ps.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	queue := chanx.NewUnboundedChan[ChangeEvent](ctx, 64)

	w.cancel = cancel
	w.pubsub = ps
	w.wg.Add(2)
	go w.receive(ctx, ps.Channel(), queue)
	go w.coalesce(ctx, queue)

	log.Info().Str("channel", channel).Dur("debounce", w.Debounce).Msg("Change watcher started")
	return nil
}

// Close stops both goroutines and waits for an in-flight refresh to return.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	err := w.pubsub.Close()
	w.wg.Wait()
	w.cancel = nil
	w.pubsub = nil
	log.Info().Msg("Change watcher stopped")
	return err
}

func (w *Watcher) receive(ctx context.Context, msgs <-chan *redis.Message, queue *chanx.UnboundedChan[ChangeEvent]) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			ev, err := Decode([]byte(msg.Payload))
			if err != nil {
				log.Warn().Err(err).Msg("Dropping undecodable change event")
				continue
			}
			select {
			case queue.In <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// coalesce keeps one deadline per lot; every new event pushes it back.
func (w *Watcher) coalesce(ctx context.Context, queue *chanx.UnboundedChan[ChangeEvent]) {
	defer w.wg.Done()
	pending := map[uuid.UUID]time.Time{}
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		var wake <-chan time.Time
		if next, ok := earliest(pending); ok {
			timer.Reset(time.Until(next))
			wake = timer.C
		}

		select {
		case <-ctx.Done():
			return
		case ev, ok := <-queue.Out:
			if !ok {
				return
			}
			lotID, err := ev.Lot()
			if err != nil {
				log.Debug().Err(err).Str("table", ev.Table).Msg("Ignoring change event")
			} else {
				pending[lotID] = time.Now().Add(w.Debounce)
			}
		case <-wake:
			now := time.Now()
			for lotID, due := range pending {
				if due.After(now) {
					continue
				}
				delete(pending, lotID)
				if err := w.Refresh(ctx, lotID); err != nil && !errors.Is(err, context.Canceled) {
					log.Warn().Err(err).Str("lot_id", lotID.String()).Msg("Refresh after change failed")
				}
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

func earliest(pending map[uuid.UUID]time.Time) (time.Time, bool) {
	var first time.Time
	found := false
	for _, t := range pending {
		if !found || t.Before(first) {
			first, found = t, true
		}
	}
	return first, found
}
