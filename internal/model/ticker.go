package model

import (
	"time"

	"github.com/hugodutka/radioterm/internal/channels"
	"github.com/hugodutka/radioterm/internal/event"
)

const tickInterval = time.Second

// RunTicker enqueues a tick, sleeps, and repeats. No drift correction.
func RunTicker(b *channels.Bundle) {
	for {
		b.Model.Send(event.Tick{})
		time.Sleep(tickInterval)
	}
}
