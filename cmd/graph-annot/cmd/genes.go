package cmd

import (
	"fmt"
	"strconv"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/graphannot/geneindex"
	"github.com/grailbio/graphannot/nodeindex"
	"v.io/x/lib/cmdline"
)

type geneMatch struct {
	Name        string          `json:"name"`
	Gene        *geneindex.Gene `json:"gene,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

func newCmdGenes() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "genes",
		Short: "Look up genes by name",
		Long: `
With -starts-with, list the gene names with the given prefix.  With -equals,
print the gene with exactly that name, or the closest names when there is
none.  A numeric -equals value is looked up as a node id in -index instead.`,
	}
	gffPaths := cmd.Flags.String("gff", "", "Comma-separated GTF/GFF3 files")
	startsWith := cmd.Flags.String("starts-with", "", "Name prefix to list")
	equals := cmd.Flags.String("equals", "", "Exact gene name, or a node id")
	indexPath := cmd.Flags.String("index", nodeindex.DefaultOpts.Path, "Node index directory, for numeric -equals values")
	maxSuggestions := cmd.Flags.Int("suggestions", 5, "Maximum number of suggestions for an unknown name")
	maxDist := cmd.Flags.Int("max-distance", 2, "Maximum edit distance of a suggestion")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("genes takes no arguments, but got %v", argv)
		}
		if (*startsWith == "") == (*equals == "") {
			return fmt.Errorf("genes: exactly one of -starts-with and -equals is required")
		}
		if id, err := strconv.ParseUint(*equals, 10, 64); err == nil {
			idx, err := nodeindex.Open(*indexPath)
			if err != nil {
				return err
			}
			defer func() {
				if err := idx.Close(); err != nil {
					log.Error.Print(err)
				}
			}()
			r, ok := idx.Region(id)
			if !ok {
				return printJSON(nil)
			}
			return printJSON(r)
		}
		idx := geneindex.Build(background(), splitList(*gffPaths))
		if *startsWith != "" {
			names := idx.StartsWith(*startsWith)
			if names == nil {
				names = []string{}
			}
			return printJSON(names)
		}
		match := geneMatch{Name: *equals}
		if g, ok := idx.Equals(*equals); ok {
			match.Gene = &g
		} else {
			match.Suggestions = idx.Suggest(*equals, *maxSuggestions, *maxDist)
		}
		return printJSON(match)
	})
	return cmd
}
