/*
PURPOSE:
  Background resource sampler: polls GPU (or host memory) counters at a
  fixed interval for the duration of one run and reduces the samples to
  peak/mean figures.

REQUIREMENTS:
  User-specified:
  - One independent sampler per active run; never shared across runs.
  - Default 250ms interval.
  - Degrade to host-memory-only when no GPU facility exists; mark GPU
    fields "not measured" instead of failing the run.

  Implementation-discovered:
  - nvidia-smi is the only portable counter source across the fleet;
    probe via `--query-gpu=... --format=csv,noheader,nounits`.
  - A probe read can fail transiently; a failed tick is skipped, not fatal.

ARCHITECTURE INTEGRATION:
  - Called by: internal/runner
  - Uses: internal/model

ERROR HANDLING:
  - Probe construction never fails; Detect() falls back host-side.
  - Stop() always returns a summary, possibly with zero samples.

IMPLEMENTATION RULES:
  - Ticker + stop channel lifecycle; Stop() blocks until the goroutine
    has exited so no sample lands after summarization.

USAGE:
  s := sampler.Start(ctx, probe, 250*time.Millisecond)
  ...
  summary := s.Stop()

SELF-HEALING INSTRUCTIONS:
  - If rocm-smi support is needed, add a probe and extend Detect().

RELATED FILES:
  - internal/runner/runner.go

MAINTENANCE:
  - Update parsing if the nvidia-smi query set changes.
*/

package sampler

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cruiserlab/voicegrid/internal/model"
	"github.com/cruiserlab/voicegrid/internal/output"
)

// Probe reads one resource sample. Implementations must be safe for
// repeated calls; they are polled from a single goroutine per run.
type Probe interface {
	// Sample returns a point-in-time reading.
	Sample(ctx context.Context) (model.ResourceSample, error)
	// GPU reports whether the readings cover GPU counters.
	GPU() bool
}

// Detect picks the best available probe for this host. When nvidia-smi is
// not on PATH the harness degrades to host memory and says so once.
func Detect() Probe {
	if _, err := exec.LookPath("nvidia-smi"); err == nil {
		return &GPUProbe{Device: 0}
	}
	output.Logger.Warn("nvidia-smi not found; GPU fields will be marked not measured")
	return &HostMemProbe{}
}

// GPUProbe shells out to nvidia-smi for memory and utilization counters.
type GPUProbe struct {
	Device int
}

func (p *GPUProbe) GPU() bool { return true }

func (p *GPUProbe) Sample(ctx context.Context) (model.ResourceSample, error) {
	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=memory.used,memory.total,utilization.gpu",
		"--format=csv,noheader,nounits",
		"-i", strconv.Itoa(p.Device))
	out, err := cmd.Output()
	if err != nil {
		return model.ResourceSample{}, fmt.Errorf("nvidia-smi: %w", err)
	}

	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return model.ResourceSample{}, fmt.Errorf("unexpected nvidia-smi output: %q", line)
	}

	used, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return model.ResourceSample{}, fmt.Errorf("parse memory.used: %w", err)
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return model.ResourceSample{}, fmt.Errorf("parse memory.total: %w", err)
	}
	util, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return model.ResourceSample{}, fmt.Errorf("parse utilization.gpu: %w", err)
	}

	return model.ResourceSample{
		At:             time.Now(),
		MemoryUsedMB:   used,
		MemoryTotalMB:  total,
		UtilizationPct: util,
	}, nil
}

// HostMemProbe reads /proc/meminfo as the degraded, GPU-less fallback.
type HostMemProbe struct{}

func (p *HostMemProbe) GPU() bool { return false }

func (p *HostMemProbe) Sample(ctx context.Context) (model.ResourceSample, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return model.ResourceSample{}, err
	}
	defer f.Close()

	var totalKB, availKB float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			totalKB = parseMeminfoKB(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			availKB = parseMeminfoKB(line)
		}
	}
	if err := sc.Err(); err != nil {
		return model.ResourceSample{}, err
	}
	if totalKB == 0 {
		return model.ResourceSample{}, fmt.Errorf("meminfo: no MemTotal")
	}

	return model.ResourceSample{
		At:            time.Now(),
		MemoryUsedMB:  (totalKB - availKB) / 1024.0,
		MemoryTotalMB: totalKB / 1024.0,
	}, nil
}

func parseMeminfoKB(line string) float64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// Sampler collects samples for one run until stopped.
type Sampler struct {
	probe   Probe
	samples []model.ResourceSample
	stop    chan struct{}
	done    chan struct{}
}

// Start launches the sampling goroutine. The context bounds individual
// probe reads; closing it stops the sampler as well.
func Start(ctx context.Context, probe Probe, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	s := &Sampler{
		probe: probe,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				sample, err := probe.Sample(ctx)
				if err != nil {
					// Transient read failure; skip this tick.
					continue
				}
				s.samples = append(s.samples, sample)
			}
		}
	}()

	return s
}

// Stop terminates sampling and reduces the collected sequence. Safe to
// call once per sampler; blocks until the goroutine has exited.
func (s *Sampler) Stop() model.ResourceSummary {
	close(s.stop)
	<-s.done
	return summarize(s.probe.GPU(), s.samples)
}

func summarize(gpu bool, samples []model.ResourceSample) model.ResourceSummary {
	sum := model.ResourceSummary{
		GPUMeasured: gpu && len(samples) > 0,
		Samples:     len(samples),
	}
	if len(samples) == 0 {
		return sum
	}

	var memSum, utilSum float64
	for _, sm := range samples {
		memSum += sm.MemoryUsedMB
		utilSum += sm.UtilizationPct
		if sm.MemoryUsedMB > sum.PeakMemoryMB {
			sum.PeakMemoryMB = sm.MemoryUsedMB
		}
		if sm.UtilizationPct > sum.PeakUtilizationPct {
			sum.PeakUtilizationPct = sm.UtilizationPct
		}
		if sm.MemoryTotalMB > sum.TotalMemoryMB {
			sum.TotalMemoryMB = sm.MemoryTotalMB
		}
	}
	sum.MeanMemoryMB = memSum / float64(len(samples))
	sum.MeanUtilizationPct = utilSum / float64(len(samples))
	return sum
}
