package moderation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/strainbot/internal/events"
)

func TestPendingNotice(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "There is 1 product pending approval.", pendingNotice(1).Message)
	assert.Equal(t, "There are 4 products pending approval.", pendingNotice(4).Message)
	assert.Equal(t, "Moderator Alert", pendingNotice(4).Title)
}

func TestAlerterCycle(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		emitted []events.Type
		actions []string
	)
	n := &fakeNotifier{}
	a := newAlerter(n, time.Hour, 10*time.Millisecond,
		func(ev events.Event) {
			mu.Lock()
			emitted = append(emitted, ev.Type)
			mu.Unlock()
		},
		func(action string) {
			mu.Lock()
			actions = append(actions, action)
			mu.Unlock()
		})

	a.maybeAlert(0)
	a.maybeAlert(3)
	a.maybeAlert(4)

	require.Eventually(t, func() bool {
		_, retracted := n.counts()
		return retracted == 1
	}, 2*time.Second, 5*time.Millisecond)
	a.close()

	posted, _ := n.counts()
	assert.Equal(t, 1, posted, "cooldown suppresses the second alert")
	assert.Equal(t, "There are 3 products pending approval.", n.posted[0].Message)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []events.Type{events.TypeAlert, events.TypeAlertRetracted}, emitted)
	assert.Equal(t, []string{"posted", "retracted"}, actions)
}

func TestAlerterClosedIgnoresAlerts(t *testing.T) {
	t.Parallel()

	n := &fakeNotifier{}
	a := newAlerter(n, 0, 0, func(events.Event) {}, func(string) {})
	a.close()
	a.maybeAlert(5)

	posted, _ := n.counts()
	assert.Zero(t, posted)
}
