// Package supervisor implements the Master process's child-worker
// lifecycle: enumerate countries, create per-worker FIFOs, spawn worker
// processes, round-robin assign countries, and respawn on death,
// grounded on original_source/master.c's parent-side logic. Go's
// os/exec + goroutine-per-child Wait() replaces the original's
// fork()+SIGCHLD+waitpid() reaping: the idiomatic Go way to observe a
// child's exit is to block on cmd.Wait() in its own goroutine, not to
// multiplex on a signal.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/pantach/patientdb/internal/fifoipc"
	"github.com/pantach/patientdb/internal/obslog"
)

// Supervisor owns the set of worker slots and their FIFOs.
type Supervisor struct {
	cfg       CLA
	countries []string
	workers   int // W, after min(requested, len(countries))
	slots     []*slot
}

type slot struct {
	idx       int
	pipePath  string
	cmd       *exec.Cmd
	countries []string
}

type deathEvent struct {
	slot int
	err  error
}

// New discovers the countries under cfg.InputDir (one subdirectory per
// country) and computes W = min(WorkersRequested, len(countries)).
func New(cfg CLA) (*Supervisor, error) {
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("supervisor: buffer size must be positive, got %d", cfg.BufferSize)
	}

	entries, err := os.ReadDir(cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("supervisor: read input dir: %w", err)
	}

	var countries []string
	for _, e := range entries {
		if e.IsDir() {
			countries = append(countries, e.Name())
		}
	}
	sort.Strings(countries)

	w := cfg.WorkersRequested
	if len(countries) < w {
		w = len(countries)
	}
	if w <= 0 {
		return nil, fmt.Errorf("supervisor: no workers to spawn (requested=%d, countries=%d)", cfg.WorkersRequested, len(countries))
	}

	return &Supervisor{cfg: cfg, countries: countries, workers: w}, nil
}

// countriesForSlot returns the round-robin subset assigned to slot i:
// countries[j] where j%W==i.
func (s *Supervisor) countriesForSlot(i int) []string {
	var out []string
	for j, c := range s.countries {
		if j%s.workers == i {
			out = append(out, c)
		}
	}
	return out
}

// Run spawns all W workers, assigns their countries, then blocks handling
// SIGINT/SIGQUIT (terminate all children) and child death (respawn into
// the same slot). It returns when told to shut down.
func (s *Supervisor) Run(ctx context.Context) error {
	log := obslog.WithComponent("master")

	s.slots = make([]*slot, s.workers)
	deaths := make(chan deathEvent, s.workers)

	for i := 0; i < s.workers; i++ {
		if err := s.spawnSlot(i, deaths); err != nil {
			return err
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			s.terminateAll(log)
			return ctx.Err()

		case sig := <-sigCh:
			s.terminateAll(log)
			if sig == syscall.SIGQUIT {
				log.Warn().Msg("SIGQUIT received, aborting")
				_ = unix.Kill(os.Getpid(), unix.SIGABRT)
			}
			return nil

		case d := <-deaths:
			log.Warn().Int("slot", d.slot).Err(d.err).Msg("worker died, respawning")
			if err := s.respawnSlot(d.slot, deaths); err != nil {
				log.Error().Err(err).Int("slot", d.slot).Msg("respawn failed")
			}
		}
	}
}

func (s *Supervisor) spawnSlot(i int, deaths chan<- deathEvent) error {
	path := fifoipc.Path(i)
	if err := fifoipc.Create(path); err != nil {
		return err
	}

	countries := s.countriesForSlot(i)
	cmd := exec.Command(s.cfg.WorkerBinary, "--pipe", path, "--input-dir", s.cfg.InputDir, "--buffer-size", strconv.Itoa(s.cfg.BufferSize))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: spawn worker slot %d: %w", i, err)
	}

	s.slots[i] = &slot{idx: i, pipePath: path, cmd: cmd, countries: countries}

	go func(sl *slot) {
		err := sl.cmd.Wait()
		deaths <- deathEvent{slot: sl.idx, err: err}
	}(s.slots[i])

	w, err := fifoipc.OpenWriter(path)
	if err != nil {
		return err
	}
	defer w.Close()

	bw := fifoipc.BufferedWriter(w, s.cfg.BufferSize)
	if err := fifoipc.WriteCountries(bw, countries); err != nil {
		return err
	}
	if err := fifoipc.WriteAggregatorAddr(bw, s.cfg.AggregatorAddr); err != nil {
		return err
	}
	return bw.Flush()
}

// respawnSlot replaces a dead worker's process, reusing the same FIFO
// path and re-delivering exactly the countries originally assigned to
// that slot index: a respawned worker inherits the same assignment slot,
// never a rebalanced one. Unlike the original source, the Aggregator
// address is resent here too (see DESIGN.md's respawn note), since a
// respawned worker starts from a fresh index regardless of what it had
// before.
func (s *Supervisor) respawnSlot(i int, deaths chan<- deathEvent) error {
	old := s.slots[i]

	cmd := exec.Command(s.cfg.WorkerBinary, "--pipe", old.pipePath, "--input-dir", s.cfg.InputDir, "--buffer-size", strconv.Itoa(s.cfg.BufferSize))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: respawn worker slot %d: %w", i, err)
	}

	s.slots[i] = &slot{idx: i, pipePath: old.pipePath, cmd: cmd, countries: old.countries}

	go func(sl *slot) {
		err := sl.cmd.Wait()
		deaths <- deathEvent{slot: sl.idx, err: err}
	}(s.slots[i])

	w, err := fifoipc.OpenWriter(old.pipePath)
	if err != nil {
		return err
	}
	defer w.Close()

	bw := fifoipc.BufferedWriter(w, s.cfg.BufferSize)
	if err := fifoipc.WriteCountries(bw, old.countries); err != nil {
		return err
	}
	if err := fifoipc.WriteAggregatorAddr(bw, s.cfg.AggregatorAddr); err != nil {
		return err
	}
	return bw.Flush()
}

func (s *Supervisor) terminateAll(log zerolog.Logger) {
	for _, sl := range s.slots {
		if sl == nil || sl.cmd.Process == nil {
			continue
		}
		if err := sl.cmd.Process.Kill(); err != nil {
			log.Warn().Err(err).Int("slot", sl.idx).Msg("kill worker failed")
		}
	}
	for _, sl := range s.slots {
		if sl == nil {
			continue
		}
		_ = fifoipc.Remove(sl.pipePath)
	}
}
