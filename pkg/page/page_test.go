package page

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/Autorefresh/pkg/clock"
	"github.com/SmitUplenchwar2687/Autorefresh/pkg/refresh"
	"github.com/SmitUplenchwar2687/Autorefresh/pkg/storage"
)

func TestControllerThroughFacade(t *testing.T) {
	quiet := log.New(io.Discard, "", 0)
	vc := clock.NewVirtualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	task := refresh.New("facade", vc, refresh.WithLogger(quiet), refresh.WithRepeat(refresh.RepeatForever))

	runs := 0
	ctl := New("facade", task, storage.NewMemoryStorage(vc), WithLogger(quiet), WithWork(func() { runs++ }))

	active, interval := true, 2*time.Second
	if err := ctl.Update(context.Background(), Params{Active: &active, Interval: &interval}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	vc.Advance(4 * time.Second)

	if runs != 3 {
		t.Fatalf("runs = %d, want 3 (immediate plus two fires)", runs)
	}
	task.Stop()
}
