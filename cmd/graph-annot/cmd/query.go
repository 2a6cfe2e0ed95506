package cmd

import (
	"fmt"
	"strconv"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/graphannot/annotation"
	"github.com/grailbio/graphannot/bedmap"
	"github.com/grailbio/graphannot/encoding/bbi"
	"github.com/grailbio/graphannot/feature"
	"github.com/grailbio/graphannot/nodeindex"
	"github.com/grailbio/graphannot/region"
	"v.io/x/lib/cmdline"
)

func newCmdRegion() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "region",
		Short:    "List the track features overlapping one or more regions",
		ArgsName: "region...",
	}
	tracksPath := cmd.Flags.String("tracks", "", "Track list (name, url, chr_prefix per line)")
	chrPrefix := cmd.Flags.String("chr-prefix", "", "Chromosome prefix used to normalize region expressions")
	trackType := cmd.Flags.String("type", string(annotation.TypeBED), `Track type to query: "bed" or "wig"`)
	bins := cmd.Flags.Int("bins", 0, fmt.Sprintf("If positive, report this many mean-value bins per bigWig track (at most %d)", bbi.MaxBins))
	asMap := cmd.Flags.Bool("map", false, "Key results by track url instead of track position")
	parallelism := cmd.Flags.Int("parallelism", annotation.DefaultOpts.Parallelism, "Tracks queried concurrently; 0 = runtime.NumCPU()")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("region takes at least one region argument")
		}
		typ, ok := annotation.ParseTrackType(*trackType)
		if !ok {
			return fmt.Errorf("unknown track type %q", *trackType)
		}
		if *bins < 0 || *bins > bbi.MaxBins {
			return fmt.Errorf("-bins %d out of range [0, %d]", *bins, bbi.MaxBins)
		}
		regions := make([]region.Region, len(argv))
		for i, arg := range argv {
			r, err := region.Parse(arg, *chrPrefix)
			if err != nil {
				return err
			}
			regions[i] = r
		}
		ctx := background()
		tracks, err := readTracks(ctx, *tracksPath)
		if err != nil {
			return err
		}
		opts := annotation.DefaultOpts
		opts.Parallelism = *parallelism
		e := annotation.New(tracks, nil, opts)
		switch {
		case len(regions) == 1 && *asMap:
			return printJSON(e.RegionToFeatureMap(ctx, regions[0], typ, *bins))
		case len(regions) == 1:
			return printJSON(e.RegionToFeature(ctx, regions[0], typ, *bins))
		case *asMap:
			return printJSON(e.RegionsToFeatureMap(ctx, regions, typ, *bins))
		}
		return printJSON(e.RegionsToFeature(ctx, regions, typ, *bins))
	})
	return cmd
}

type nodeResult struct {
	ID        uint64              `json:"id"`
	Region    *region.Region      `json:"region"`
	Features  [][]feature.Feature `json:"features"`
	Projected [][]feature.Feature `json:"projected,omitempty"`
}

func newCmdNode() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "node",
		Short:    "Show the region and overlapping features of graph nodes",
		ArgsName: "node-id...",
	}
	idxFlags := newIndexFlags(&cmd.Flags)
	tracksPath := cmd.Flags.String("tracks", "", "Track list (name, url, chr_prefix per line)")
	parallelism := cmd.Flags.Int("parallelism", annotation.DefaultOpts.Parallelism, "Tracks queried concurrently; 0 = runtime.NumCPU()")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("node takes at least one node id")
		}
		ids := make([]uint64, len(argv))
		for i, arg := range argv {
			id, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("node: bad node id %q: %v", arg, err)
			}
			ids[i] = id
		}
		ctx := background()
		opts := idxFlags.opts()
		idx, err := nodeindex.Open(opts.Path)
		if err != nil {
			return err
		}
		defer func() {
			if err := idx.Close(); err != nil {
				log.Error.Print(err)
			}
		}()
		tracks, err := readTracks(ctx, *tracksPath)
		if err != nil {
			return err
		}
		// With layouts available, BED tracks are also answered by projection.
		var db *bedmap.DB
		if opts.LayoutPattern != "" {
			db = bedmap.Build(ctx, tracks, nodeindex.LoadLayouts(ctx, opts))
		}
		engineOpts := annotation.DefaultOpts
		engineOpts.Parallelism = *parallelism
		e := annotation.New(tracks, idx, engineOpts)
		results := make([]nodeResult, len(ids))
		for i, id := range ids {
			results[i].ID = id
			if r, ok := idx.Region(id); ok {
				results[i].Region = &r
			}
			results[i].Features = e.NodeIDToFeature(ctx, id)
			if db != nil {
				results[i].Projected = db.Features(id)
			}
		}
		return printJSON(results)
	})
	return cmd
}
