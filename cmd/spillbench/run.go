package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/grailbio/base/log"
	"github.com/pavanmanishd/streamarena"
	"github.com/pavanmanishd/streamarena/internal/mmap"
	"github.com/spf13/cobra"
)

type workload struct {
	streams   int
	ops       int
	maxString int
	seed      int64
	workers   int
}

func run() *cobra.Command {
	var (
		w          workload
		capacity   int64
		quantum    int
		maxBlock   int
		useMmap    bool
		keepChains bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "append random rows to many streams, flush them into chains and print statistics",
		Run: func(cmd *cobra.Command, args []string) {
			if w.streams < 1 || w.workers < 1 || w.maxString < 1 {
				log.Fatal(`streams, workers and max-string must be positive`)
			}
			poolOpts := []streamarena.PoolOption{streamarena.PoolCapacity(capacity)}
			if useMmap {
				poolOpts = append(poolOpts, streamarena.PoolAllocator(mmap.New()))
			}
			pool := streamarena.NewPool(poolOpts...)
			arenaOpts := []streamarena.ArenaOption{
				streamarena.ArenaBlockQuantum(quantum),
				streamarena.ArenaMaxBlockSize(maxBlock),
			}

			var (
				alloc   streamarena.RangeAllocator
				metrics func() streamarena.ArenaMetrics
				release func()
			)
			if w.workers > 1 {
				sa := streamarena.NewSafeArena(pool, arenaOpts...)
				alloc, metrics, release = sa, sa.Metrics, sa.Release
			} else {
				a := streamarena.NewArena(pool, arenaOpts...)
				alloc, metrics, release = a, a.Metrics, a.Release
			}

			start := time.Now()
			chains, written, err := w.execute(alloc)
			if err != nil {
				release()
				log.Fatal(err)
			}
			elapsed := time.Since(start)

			var flushed int64
			for _, c := range chains {
				n, err := c.WriteTo(io.Discard)
				if err != nil {
					log.Fatal(err)
				}
				flushed += n
			}
			m := metrics()
			release()

			printStats(cmd.OutOrStdout(), `after arena release`, pool.Stats())
			if !keepChains {
				for _, c := range chains {
					c.Release()
				}
				printStats(cmd.OutOrStdout(), `after chain release`, pool.Stats())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "arena: %d blocks, %d ranges, %d/%d bytes (%.1f%%)\n",
				m.NumBlocks, m.NumRanges, m.SizeInUse, m.Capacity, m.Utilization*100)
			fmt.Fprintf(cmd.OutOrStdout(), "streams: %d, ops: %d, written: %d, flushed: %d, elapsed: %v\n",
				w.streams, w.ops, written, flushed, elapsed)
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&w.streams, `streams`, `s`, 10, `number of streams`)
	flags.IntVarP(&w.ops, `ops`, `n`, 1000, `number of appends across all streams`)
	flags.IntVar(&w.maxString, `max-string`, 8192, `maximum length of a variable-width append`)
	flags.Int64Var(&w.seed, `seed`, 124, `random seed`)
	flags.IntVarP(&w.workers, `workers`, `w`, 1, `goroutines sharing one arena; more than one uses a locked arena`)
	flags.Int64VarP(&capacity, `capacity`, `c`, 0, `pool capacity in bytes, 0 for unlimited`)
	flags.IntVar(&quantum, `quantum`, streamarena.DefaultBlockQuantum, `size of the first arena block`)
	flags.IntVar(&maxBlock, `max-block`, streamarena.DefaultMaxBlockSize, `cap on doubling arena block sizes`)
	flags.BoolVar(&useMmap, `mmap`, false, `back the pool with anonymous memory mappings`)
	flags.BoolVar(&keepChains, `keep-chains`, false, `do not release chains before exiting`)
	return cmd
}

// execute runs the workload, splitting the streams evenly between workers,
// and flushes every stream into a chain.
func (w workload) execute(alloc streamarena.RangeAllocator) ([]*streamarena.Chain, int64, error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		chains  []*streamarena.Chain
		written int64
		first   error
	)
	for worker := 0; worker < w.workers; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			var mine []*streamarena.Stream
			for i := worker; i < w.streams; i += w.workers {
				mine = append(mine, streamarena.NewStream(alloc))
			}
			ops := w.ops / w.workers
			if worker < w.ops%w.workers {
				ops++
			}
			n, err := w.fill(mine, ops, rand.New(rand.NewSource(w.seed+int64(worker))))

			mu.Lock()
			defer mu.Unlock()
			written += n
			if err != nil {
				if first == nil {
					first = err
				}
				return
			}
			for _, s := range mine {
				c, err := streamarena.Flush(s)
				if err != nil {
					if first == nil {
						first = err
					}
					return
				}
				chains = append(chains, c)
			}
		}(worker)
	}
	wg.Wait()
	if first != nil {
		for _, c := range chains {
			c.Release()
		}
		return nil, written, first
	}
	return chains, written, nil
}

func (w workload) fill(streams []*streamarena.Stream, ops int, rng *rand.Rand) (int64, error) {
	if len(streams) == 0 {
		return 0, nil
	}
	for _, s := range streams {
		if err := s.StartWrite(0); err != nil {
			return 0, err
		}
	}
	var written int64
	for i := 0; i < ops; i++ {
		s := streams[rng.Intn(len(streams))]
		var err error
		switch rng.Intn(3) {
		case 0:
			err = streamarena.AppendFixed(s, int64(i))
			written += 8
		case 1:
			err = streamarena.AppendFixed(s, int32(i))
			written += 4
		default:
			n := rng.Intn(w.maxString) + 1
			err = s.AppendBytes(bytes.Repeat([]byte{'a' + byte(i%26)}, n))
			written += int64(n)
		}
		if err != nil {
			return written, fmt.Errorf("append %d: %w", i, err)
		}
	}
	log.Debug.Printf("filled %d streams with %d appends", len(streams), ops)
	return written, nil
}

func printStats(out io.Writer, label string, stats streamarena.PoolStats) {
	fmt.Fprintf(out, "pool %s: %d allocs, %d frees, %d outstanding (%d bytes), capacity %d\n",
		label, stats.NumAllocs, stats.NumFrees, stats.OutstandingAllocs, stats.OutstandingBytes, stats.Capacity)
}
