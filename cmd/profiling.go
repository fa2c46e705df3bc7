package cmd

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/issueradar/issueradar/internal/log"
)

// Profiler manages CPU, memory, and trace profiling for a single command run.
type Profiler struct {
	cpuFile   *os.File
	traceFile *os.File

	cpuProfile string
	memProfile string
	tracePath  string
}

// NewProfiler creates a new profiler with the specified profile paths.
// Empty paths disable the corresponding profile.
func NewProfiler(cpuProfile, memProfile, tracePath string) *Profiler {
	return &Profiler{
		cpuProfile: cpuProfile,
		memProfile: memProfile,
		tracePath:  tracePath,
	}
}

// Start begins CPU profiling and execution tracing if configured.
func (p *Profiler) Start() error {
	if p.cpuProfile != "" {
		f, err := os.Create(p.cpuProfile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			closeProfile(f, "CPU profile")
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		p.cpuFile = f
	}

	if p.tracePath != "" {
		f, err := os.Create(p.tracePath)
		if err != nil {
			p.stopCPU()
			return fmt.Errorf("could not create trace: %w", err)
		}
		if err := trace.Start(f); err != nil {
			closeProfile(f, "trace")
			p.stopCPU()
			return fmt.Errorf("could not start trace: %w", err)
		}
		p.traceFile = f
	}

	return nil
}

// Stop ends all profiling and writes the memory profile if configured.
// It is safe to call more than once.
func (p *Profiler) Stop() {
	if p.traceFile != nil {
		trace.Stop()
		closeProfile(p.traceFile, "trace")
		p.traceFile = nil
	}

	p.stopCPU()

	if p.memProfile != "" {
		p.writeHeap()
		p.memProfile = ""
	}
}

func (p *Profiler) stopCPU() {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		closeProfile(p.cpuFile, "CPU profile")
		p.cpuFile = nil
	}
}

func (p *Profiler) writeHeap() {
	f, err := os.Create(p.memProfile)
	if err != nil {
		log.Warn("could not create memory profile", "path", p.memProfile, "error", err)
		return
	}
	defer closeProfile(f, "memory profile")

	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Warn("could not write memory profile", "path", p.memProfile, "error", err)
	}
}

func closeProfile(f *os.File, what string) {
	if err := f.Close(); err != nil {
		log.Warn("could not close "+what+" file", "path", f.Name(), "error", err)
	}
}
