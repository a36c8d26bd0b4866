package pkg

import (
	"fmt"
	"time"
)

// Clock adds up how long each side has spent thinking. It is not a game
// clock: nobody loses on time. Like the rest of the game state it belongs
// to the owner goroutine.
type Clock struct {
	Spent   [2]time.Duration
	running bool
	side    PlayerColor
	since   time.Time
	now     func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Start charges time to side from now on, stopping whoever was running.
func (cl *Clock) Start(side PlayerColor) {
	cl.Stop()
	cl.running = true
	cl.side = side
	cl.since = cl.now()
}

func (cl *Clock) Stop() {
	if !cl.running {
		return
	}
	cl.Spent[cl.side] += cl.now().Sub(cl.since)
	cl.running = false
}

func (cl *Clock) Reset() {
	cl.Spent = [2]time.Duration{}
	cl.running = false
}

// Elapsed includes the running period, if side is the one running.
func (cl *Clock) Elapsed(side PlayerColor) time.Duration {
	d := cl.Spent[side]
	if cl.running && cl.side == side {
		d += cl.now().Sub(cl.since)
	}
	return d
}

func (cl *Clock) Format(side PlayerColor) string {
	d := cl.Elapsed(side)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func (cl *Clock) String() string {
	return fmt.Sprintf("White %s Black %s", cl.Format(White), cl.Format(Black))
}
