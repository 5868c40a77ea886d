package framework

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the default period between iterations.
const DefaultInterval = 10 * time.Millisecond

// Loop calls controllers at a steady cadence and keeps runnables
// running in the background.
type Loop struct {
	Interval time.Duration

	controllers [PriorityLevels][]Controller
	runners     []Runnable
	lock        sync.Mutex

	wakeOnce sync.Once
	wakeUpCh chan struct{}
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopIteration struct {
	loop          *Loop
	ctx           context.Context
	time          time.Time
	priorityLevel int
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers at a priority level.
// Controllers implementing Runnable are also run in the background.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.controllers[priorityLevel] = append(l.controllers[priorityLevel], ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementations.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.lock.Lock()
	l.runners = append(l.runners, runnables...)
	l.lock.Unlock()
	return l
}

func (l *Loop) wakeUp() chan struct{} {
	l.wakeOnce.Do(func() {
		l.wakeUpCh = make(chan struct{}, 1)
	})
	return l.wakeUpCh
}

// TriggerNext schedules an iteration without waiting for the interval.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUp() <- struct{}{}:
	default:
	}
}

// Run implements Runnable. It stops when ctx is done or any runnable
// fails.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	failCh := make(chan error, 1)
	runner := NewRunnerWith(ctx)
	l.lock.Lock()
	for _, r := range l.runners {
		runner.Go(&watched{Runnable: r, failCh: failCh})
	}
	l.lock.Unlock()
	defer func() {
		cancel()
		runner.Wait()
	}()

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	wakeUpCh := l.wakeUp()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-failCh:
			return err
		case <-ticker.C:
			l.RunOnce(ctx)
		case <-wakeUpCh:
			l.RunOnce(ctx)
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail(ctx context.Context) {
	if err := l.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalln(err)
	}
}

// RunOnce runs one iteration of all controllers in priority order.
func (l *Loop) RunOnce(ctx context.Context) {
	iter := &loopIteration{loop: l, ctx: ctx, time: time.Now()}
	for i := 0; i < PriorityLevels; i++ {
		l.lock.Lock()
		ctls := l.controllers[i]
		l.lock.Unlock()
		iter.priorityLevel = i
		for _, ctl := range ctls {
			if err := ctl.Control(iter); err != nil {
				glog.Errorf("controller error: %v", err)
			}
		}
	}
}

func (t *loopIteration) Context() context.Context { return t.ctx }
func (t *loopIteration) Time() time.Time          { return t.time }
func (t *loopIteration) PriorityLevel() int       { return t.priorityLevel }
func (t *loopIteration) TriggerNext()             { t.loop.TriggerNext() }

type watched struct {
	Runnable
	failCh chan error
}

func (w *watched) Name() string {
	if named, ok := w.Runnable.(Named); ok {
		return named.Name()
	}
	return ""
}

func (w *watched) Run(ctx context.Context) error {
	err := w.Runnable.Run(ctx)
	if err != nil && ctx.Err() == nil {
		select {
		case w.failCh <- err:
		default:
		}
	}
	return err
}
