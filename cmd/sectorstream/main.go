// Command sectorstream streams sector files through the loading pipeline without a window:
// it parses them on an in-process worker, binds them as instanced geometry and prints the
// merged culling boxes.
//
//	sectorstream -config stream.yaml -gen 16 -ids 0,1,2,3
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-stream/engine/box_merger"
	"github.com/Carmen-Shannon/oxy-stream/engine/camera"
	"github.com/Carmen-Shannon/oxy-stream/engine/config"
	"github.com/Carmen-Shannon/oxy-stream/engine/node_transform"
	"github.com/Carmen-Shannon/oxy-stream/engine/profiler"
	"github.com/Carmen-Shannon/oxy-stream/engine/sector"
	"github.com/Carmen-Shannon/oxy-stream/engine/sector_cache"
	"github.com/Carmen-Shannon/oxy-stream/engine/worker_rpc"

	"github.com/jmalloc/twelf/src/twelf"
)

// instancesPerSector is the size of every generated sector.
const instancesPerSector = 256

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	idList := flag.String("ids", "", "comma separated sector ids to load (default: every generated sector)")
	gen := flag.Int("gen", 0, "generate this many synthetic sectors into the source directory first")
	flag.Parse()

	logger := &twelf.StandardLogger{}
	if err := run(*configPath, *idList, *gen, logger); err != nil {
		logger.Log("[SectorStream] %v", err)
		os.Exit(1)
	}
}

func run(configPath, idList string, gen int, logger twelf.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// ── Configuration ───────────────────────────────────────────────
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	ids, err := parseIDs(idList, gen)
	if err != nil {
		return err
	}

	// ── Synthetic sectors ───────────────────────────────────────────
	if gen > 0 {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		sectors := make([]*sector.Sector, gen)
		for i := range sectors {
			sectors[i] = sector.Generate(uint32(i), instancesPerSector, i*instancesPerSector, rng)
		}
		if err := sector.WriteDir(cfg.Source.Dir, sectors...); err != nil {
			return err
		}
		logger.Log("[SectorStream] wrote %d sectors to %s", gen, cfg.Source.Dir)
	}

	// ── Parse worker ────────────────────────────────────────────────
	parse := sector.LocalParser()
	var client worker_rpc.Client
	if cfg.Worker.Remote {
		callerPort, workerPort := worker_rpc.NewMessageChannel()
		defer callerPort.Close()

		dispatcher := worker_rpc.NewDispatcher(workerPort, sector.RegisterWorkerMethods(nil),
			worker_rpc.WithDispatcherContext(ctx),
			worker_rpc.WithWorkers(cfg.Worker.Workers),
			worker_rpc.WithQueueSize(cfg.Worker.QueueSize),
			worker_rpc.WithIdleTimeout(cfg.Worker.IdleTimeout),
			worker_rpc.WithDispatcherLogger(logger),
		)
		if err := dispatcher.Start(); err != nil {
			return err
		}
		defer dispatcher.Close()

		client = worker_rpc.NewClient(callerPort, worker_rpc.WithClientLogger(logger))
		defer client.Close()
		parse = sector.RemoteParser(client)
	}

	// ── Node transforms ─────────────────────────────────────────────
	transforms := node_transform.NewNodeTransformProvider(node_transform.WithLogger(logger))
	if err := transforms.SetCdfToWorldTransform(cfg.Transforms.Matrix()); err != nil {
		return err
	}

	// ── Loader ──────────────────────────────────────────────────────
	loader := sector.NewLoader(sector.DirSource{Dir: cfg.Source.Dir}, parse,
		sector.WithConcurrency(cfg.Loader.Concurrency),
		sector.WithFirstShaderLocation(cfg.Loader.FirstShaderLocation),
		sector.WithMerger(box_merger.NewBoxMerger(box_merger.WithIoUThreshold(cfg.Loader.IoUThreshold))),
		sector.WithNodeTransforms(transforms),
		sector.WithLogger(logger),
	)
	defer loader.Close()

	// ── Profiler ────────────────────────────────────────────────────
	profOpts := []profiler.ProfilerBuilderOption{
		profiler.WithInterval(cfg.Profiler.Interval),
		profiler.WithLogger(logger),
		profiler.WithReporter("loader", func() string { return formatLoaderStats(loader.Stats()) }),
	}
	if client != nil {
		profOpts = append(profOpts, profiler.WithReporter("rpc", func() string {
			s := client.Stats()
			return fmt.Sprintf("calls=%d failures=%d pending=%d", s.Calls, s.Failures, s.Pending)
		}))
	}
	prof := profiler.NewProfiler(profOpts...)
	if cfg.Profiler.Enabled {
		profCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go prof.Run(profCtx)
	}

	// ── Stream ──────────────────────────────────────────────────────
	start := time.Now()
	loaded, err := loader.Load(ctx, ids)
	for _, s := range loaded {
		if s != nil {
			prof.Add(1)
		}
	}
	if err != nil {
		logger.Log("[SectorStream] load finished with errors: %v", err)
	}

	boxes := loader.CullingBoxes()
	logger.Log("[SectorStream] %d sectors visible in %s, %d culling boxes",
		len(loader.Visible()), time.Since(start).Round(time.Millisecond), len(boxes))
	for i, b := range boxes {
		fmt.Printf("box %d: min=%v max=%v\n", i, b.Min, b.Max)
	}

	// ── Culling ─────────────────────────────────────────────────────
	if len(boxes) > 0 {
		bounds := boxes[0]
		for _, b := range boxes[1:] {
			bounds = bounds.Union(b)
		}
		cam := camera.NewCamera(camera.WithOrbit(1, 0.3, 0.6))
		cam.Frame(bounds)
		logger.Log("[SectorStream] %d of %d boxes visible from %v",
			len(loader.VisibleBoxes(cam.Frustum())), len(boxes), cam.Position())
	}
	logger.Log("[SectorStream] %s", formatLoaderStats(loader.Stats()))
	prof.Tick()
	return err
}

// parseIDs reads a comma separated id list. An empty list selects the first gen ids.
func parseIDs(list string, gen int) ([]uint32, error) {
	if strings.TrimSpace(list) == "" {
		ids := make([]uint32, gen)
		for i := range ids {
			ids[i] = uint32(i)
		}
		return ids, nil
	}

	var ids []uint32
	for _, field := range strings.Split(list, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(field), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid sector id %q: %w", field, err)
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}

func formatLoaderStats(s sector.LoaderStats) string {
	return fmt.Sprintf("requested=%d loaded=%d failed=%d visible=%d %s",
		s.Requested, s.Loaded, s.Failed, s.Visible, formatCacheStats(s.Cache))
}

func formatCacheStats(s sector_cache.Stats) string {
	return fmt.Sprintf("fetch=%d/%d parse=%d/%d released=%d",
		s.FetchHits, s.FetchHits+s.FetchMisses, s.ParseHits, s.ParseHits+s.ParseMisses, s.Released)
}
