package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/issueradar/issueradar/internal/constants"
	"github.com/issueradar/issueradar/internal/digest"
	"github.com/issueradar/issueradar/internal/ghclient"
	"github.com/issueradar/issueradar/internal/log"
	"github.com/issueradar/issueradar/internal/tui"
)

// progressRuntime bundles TUI-related state for commands that talk to GitHub
// or the model.
type progressRuntime struct {
	useTUI  bool
	tasks   []tui.Task
	events  chan tui.Event
	tuiDone chan error
}

// setupRuntime creates the runtime and returns a cleanup function for profiling.
func setupRuntime(opts *Options, tasks []tui.Task) (*progressRuntime, func(), error) {
	profiler := NewProfiler(opts.CPUProfile, opts.MemProfile, opts.Trace)
	if err := profiler.Start(); err != nil {
		return nil, nil, err
	}

	useTUI := shouldUseTUI(opts)

	// Initialize logging - suppress logs during TUI to avoid interleaving with display
	if useTUI {
		log.Initialize(opts.Verbosity, io.Discard)
	} else {
		log.Initialize(opts.Verbosity, os.Stderr)
	}

	rt := &progressRuntime{useTUI: useTUI, tasks: tasks}
	return rt, profiler.Stop, nil
}

// startTUI initializes and starts the TUI goroutine if TUI mode is enabled.
func (rt *progressRuntime) startTUI() {
	if !rt.useTUI {
		return
	}
	rt.events = make(chan tui.Event, constants.TUIEventBuffer)
	rt.tuiDone = make(chan error, 1)
	go func() {
		rt.tuiDone <- tui.Run(rt.events, tui.WithTasks(rt.tasks))
	}()
}

// close closes the event channel and waits for the TUI to finish. Safe to call twice.
func (rt *progressRuntime) close() {
	closeTUI(rt.events, rt.tuiDone)
	rt.events = nil
	rt.tuiDone = nil
}

// sendEvent sends a task event to the TUI channel if it exists.
func (rt *progressRuntime) sendEvent(task tui.TaskID, status tui.TaskStatus, opts ...tui.TaskEventOption) {
	sendTaskEvent(rt.events, task, status, opts...)
}

// observeDigest forwards composer stage events to the TUI, or to the log without one.
func (rt *progressRuntime) observeDigest(e digest.Event) {
	if rt.events == nil {
		if e.Err != nil {
			log.Debug("digest stage failed", "stage", e.Stage, "error", e.Err)
			return
		}
		log.Info("digest stage", "stage", e.Stage, "message", e.Message)
		return
	}
	tui.SendEvent(rt.events, tui.FromDigestEvent(e))
	rt.reportRateLimit()
}

// onPage reports progress of an issue page walk. done and budget count pages
// across every repository; a zero budget means the walk is unbounded.
func (rt *progressRuntime) onPage(done, budget, count int) {
	if rt.events == nil {
		log.Progress("Fetching issues: page %s (%d issues)", pageLabel(done, budget), count)
		return
	}
	opts := []tui.TaskEventOption{tui.WithMessage("page " + pageLabel(done, budget)), tui.WithCount(count)}
	if budget > 0 {
		opts = append(opts, tui.WithProgress(float64(done)/float64(budget)))
	}
	rt.sendEvent(tui.TaskFetch, tui.StatusRunning, opts...)
	rt.reportRateLimit()
}

func pageLabel(done, budget int) string {
	if budget > 0 {
		return fmt.Sprintf("%d/%d", done, budget)
	}
	return fmt.Sprintf("%d", done)
}

// reportRateLimit shows the rate limit banner while GitHub refuses requests.
func (rt *progressRuntime) reportRateLimit() {
	status := ghclient.GetRateLimitStatus()
	if !status.Limited {
		return
	}
	tui.SendEvent(rt.events, tui.RateLimitEvent{Limited: true, ResetAt: status.ResetAt})
}

// sendTaskEvent sends a task event if the channel is not nil.
func sendTaskEvent(events chan tui.Event, task tui.TaskID, status tui.TaskStatus, opts ...tui.TaskEventOption) {
	if events == nil {
		return
	}
	tui.SendTaskEvent(events, task, status, opts...)
}

// closeTUI closes the event channel and waits for the TUI to finish.
func closeTUI(events chan tui.Event, tuiDone chan error) {
	if events == nil {
		return
	}
	close(events)
	if tuiDone != nil {
		if err := <-tuiDone; err != nil {
			log.Debug("tui exited with error", "error", err)
		}
	}
}
