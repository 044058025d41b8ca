package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/strainbot/internal/events"
	"github.com/tphakala/strainbot/internal/logger"
	"github.com/tphakala/strainbot/internal/notify"
)

// Alert defaults
const (
	DefaultAlertCooldown = time.Hour
	DefaultAlertRetract  = 30 * time.Minute

	alertTimeout = 15 * time.Second
)

// Notifier posts moderator notices and can take them down again
type Notifier interface {
	Post(ctx context.Context, n notify.Notice) (string, error)
	Retract(ctx context.Context, id string) error
}

// alerter tells moderators about pending submissions at most once per
// cooldown and retracts each notice after a delay
type alerter struct {
	notifier     Notifier
	sometimes    *rate.Sometimes
	retractAfter time.Duration
	emit         func(events.Event)
	record       func(action string)

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newAlerter(n Notifier, cooldown, retractAfter time.Duration, emit func(events.Event), record func(string)) *alerter {
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	if retractAfter <= 0 {
		retractAfter = DefaultAlertRetract
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &alerter{
		notifier:     n,
		sometimes:    &rate.Sometimes{Interval: cooldown},
		retractAfter: retractAfter,
		emit:         emit,
		record:       record,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func pendingNotice(pending int) notify.Notice {
	msg := fmt.Sprintf("There are %d products pending approval.", pending)
	if pending == 1 {
		msg = "There is 1 product pending approval."
	}
	return notify.Notice{Title: "Moderator Alert", Message: msg}
}

// maybeAlert starts a post/retract cycle unless one ran within the cooldown
func (a *alerter) maybeAlert(pending int) {
	if pending <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.sometimes.Do(func() {
		a.wg.Add(1)
		go a.cycle(pendingNotice(pending), pending)
	})
}

func (a *alerter) cycle(n notify.Notice, pending int) {
	defer a.wg.Done()
	log := getLogger()

	postCtx, cancel := context.WithTimeout(a.ctx, alertTimeout)
	id, err := a.notifier.Post(postCtx, n)
	cancel()
	if err != nil {
		log.Warn("moderator alert failed", logger.Int("pending", pending), logger.Error(err))
		a.record("failed")
		return
	}
	log.Info("moderator alert sent", logger.Int("pending", pending), logger.String("notice_id", id))
	a.record("posted")
	ev := events.New(events.TypeAlert)
	ev.Message = n.Message
	ev.Total = pending
	a.emit(ev)

	timer := time.NewTimer(a.retractAfter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-a.ctx.Done():
		// shutting down, take the notice down now
	}

	retractCtx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()
	if err := a.notifier.Retract(retractCtx, id); err != nil {
		log.Warn("could not retract moderator alert", logger.String("notice_id", id), logger.Error(err))
		return
	}
	a.record("retracted")
	retracted := events.New(events.TypeAlertRetracted)
	retracted.Message = id
	a.emit(retracted)
}

// close stops pending cycles and waits for them to retract their notices
func (a *alerter) close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.cancel()
	a.wg.Wait()
}
