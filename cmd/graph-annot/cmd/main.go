package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/graphannot/feature"
	"github.com/grailbio/graphannot/nodeindex"
	"v.io/x/lib/cmdline"
)

// indexFlags are shared by the commands that build or read the node index.
type indexFlags struct {
	path      *string
	layout    *string
	chrPrefix *string
	chroms    *string
}

func newIndexFlags(fs *flag.FlagSet) indexFlags {
	return indexFlags{
		path:      fs.String("index", nodeindex.DefaultOpts.Path, "Node index directory"),
		layout:    fs.String("layout", "", "Graph layout path pattern; '{}' is replaced by the prefixed chromosome name"),
		chrPrefix: fs.String("chr-prefix", "", "Chromosome prefix used in layout file names and region expressions"),
		chroms:    fs.String("chroms", strings.Join(nodeindex.DefaultChroms, ","), "Comma-separated chromosomes to index"),
	}
}

func (f indexFlags) opts() nodeindex.Opts {
	opts := nodeindex.DefaultOpts
	opts.Path = *f.path
	opts.LayoutPattern = *f.layout
	opts.ChrPrefix = *f.chrPrefix
	opts.Chroms = splitList(*f.chroms)
	return opts
}

func splitList(s string) []string {
	var list []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}

func readTracks(ctx context.Context, path string) ([]feature.Track, error) {
	if path == "" {
		return nil, nil
	}
	return feature.ReadTracksFile(ctx, path)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func background() context.Context { return vcontext.Background() }

// Run parses the command line and runs the selected command.
func Run() {
	shutdown := grail.Init()
	cmdline.HideGlobalFlagsExcept()
	err := cmdline.ParseAndRun(&cmdline.Command{
		Name:     "graph-annot",
		Short:    "Variation graph coordinate index and annotation queries",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdBuild(),
			newCmdRegion(),
			newCmdNode(),
			newCmdGenes(),
		},
	}, cmdline.EnvFromOS(), os.Args[1:])
	shutdown()
	os.Exit(cmdline.ExitCode(err, os.Stderr))
}
