package jobs

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/seabridge/internal/errs"
	"github.com/MimeLyc/seabridge/pkg/icron"
	"github.com/MimeLyc/seabridge/pkg/log"
)

// Poller polls watched jobs on a fixed schedule until they reach a
// terminal status or polling is stopped. Stopping polling never cancels the
// provider job.
type Poller struct {
	manager  *Manager
	schedule cron.Schedule
	cron     *cron.Cron
	chain    cron.Chain
	onUpdate func(*DocumentJob)

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool

	mu      sync.Mutex
	watched map[string]*watch
}

type watch struct {
	entryID cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

type PollerOption func(*Poller)

// WithSchedule sets the poll schedule. The default is icron.DefaultPollSchedule.
func WithSchedule(s cron.Schedule) PollerOption {
	return func(p *Poller) {
		if s != nil {
			p.schedule = s
		}
	}
}

// WithUpdateHook registers fn to receive every polled job.
func WithUpdateHook(fn func(*DocumentJob)) PollerOption {
	return func(p *Poller) {
		p.onUpdate = fn
	}
}

func NewPoller(manager *Manager, opts ...PollerOption) *Poller {
	cl := icron.Logger()
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		manager: manager,
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		chain:   cron.NewChain(cron.SkipIfStillRunning(cl)),
		ctx:     ctx,
		cancel:  cancel,
		watched: make(map[string]*watch),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.schedule == nil {
		p.schedule, _ = icron.ParseSchedule(icron.DefaultPollSchedule)
	}
	return p
}

// Watch starts polling jobID. It returns false if the job is already watched.
func (p *Poller) Watch(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.watched[jobID]; ok {
		return false
	}
	ctx, cancel := context.WithCancel(p.ctx)
	w := &watch{ctx: ctx, cancel: cancel}
	w.entryID = p.cron.Schedule(p.schedule, p.chain.Then(cron.FuncJob(func() {
		p.poll(ctx, jobID)
	})))
	p.watched[jobID] = w
	log.Debug("Watching job %s", jobID)
	return true
}

// Stop stops polling jobID and cancels an in-flight poll. It returns false
// if the job was not watched.
func (p *Poller) Stop(jobID string) bool {
	p.mu.Lock()
	w, ok := p.watched[jobID]
	if ok {
		delete(p.watched, jobID)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	w.cancel()
	p.cron.Remove(w.entryID)
	log.Debug("Stopped watching job %s", jobID)
	return true
}

// Tick polls every watched job once.
func (p *Poller) Tick(ctx context.Context) {
	for _, id := range p.Active() {
		p.mu.Lock()
		w, ok := p.watched[id]
		p.mu.Unlock()
		if !ok {
			continue
		}

		pctx, cancel := context.WithCancel(ctx)
		stop := context.AfterFunc(w.ctx, cancel)
		p.poll(pctx, id)
		stop()
		cancel()
	}
}

// Resume watches every active job in the store, returning how many were
// added.
func (p *Poller) Resume(ctx context.Context) (int, error) {
	active, err := p.manager.ActiveJobs(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range active {
		if p.Watch(job.ID) {
			n++
		}
	}
	if n > 0 {
		log.Info("Resumed polling for %d active jobs", n)
	}
	return n, nil
}

// Active returns the ids of watched jobs in sorted order.
func (p *Poller) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.watched))
	for id := range p.watched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Poller) Start() {
	p.cron.Start()
	p.running.Store(true)
}

// Running reports whether scheduled polls are being executed.
func (p *Poller) Running() bool {
	return p.running.Load()
}

// Shutdown cancels in-flight polls and waits for running entries to return.
func (p *Poller) Shutdown(ctx context.Context) error {
	p.running.Store(false)
	p.cancel()
	done := p.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) poll(ctx context.Context, jobID string) {
	if ctx.Err() != nil {
		return
	}

	job, err := p.manager.PollStatus(ctx, jobID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errs.KindOf(err) == errs.JobNotFound {
			if _, gerr := p.manager.Job(ctx, jobID); errs.Is(gerr, errs.JobNotFound) {
				log.Warn("Job %s no longer exists, stop polling: %v", jobID, err)
				p.Stop(jobID)
				return
			}
		}
		log.Warn("Failed to poll job %s, will retry: %v", jobID, err)
		return
	}

	if p.onUpdate != nil {
		p.onUpdate(job)
	}
	if job.Status.Terminal() {
		p.Stop(jobID)
	}
}
