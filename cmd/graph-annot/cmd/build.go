package cmd

import (
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/graphannot/bedmap"
	"github.com/grailbio/graphannot/nodeindex"
	"v.io/x/lib/cmdline"
)

type buildSummary struct {
	Index       string         `json:"index"`
	Chromosomes []string       `json:"chromosomes"`
	Nodes       int            `json:"nodes"`
	Annotated   map[string]int `json:"annotated_nodes,omitempty"`
}

func newCmdBuild() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "build",
		Short: "Build the node index and project BED tracks onto it",
	}
	idxFlags := newIndexFlags(&cmd.Flags)
	reinit := cmd.Flags.Bool("reinit", nodeindex.DefaultOpts.Reinit, "Rebuild the index even if it exists")
	tracksPath := cmd.Flags.String("tracks", "", "Track list (name, url, chr_prefix per line); BED tracks are projected onto nodes")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("build takes no arguments, but got %v", argv)
		}
		opts := idxFlags.opts()
		opts.Reinit = *reinit
		if opts.LayoutPattern == "" {
			return fmt.Errorf("build: -layout is required")
		}
		ctx := background()
		idx, coords, err := nodeindex.Ensure(ctx, opts)
		if err != nil {
			return err
		}
		defer func() {
			if err := idx.Close(); err != nil {
				log.Error.Print(err)
			}
		}()
		summary := buildSummary{Index: opts.Path, Chromosomes: coords.Chroms(), Nodes: coords.NumNodes()}
		tracks, err := readTracks(ctx, *tracksPath)
		if err != nil {
			return err
		}
		if len(tracks) > 0 {
			db := bedmap.Build(ctx, tracks, coords)
			summary.Annotated = map[string]int{}
			for i, t := range db.Tracks() {
				summary.Annotated[t.Name] = db.NumNodes(i)
			}
		}
		return printJSON(summary)
	})
	return cmd
}
