/*
graph-annot builds a node-id to genomic-region index for a variation graph
and answers annotation queries against BED, bigBed and bigWig tracks.

  graph-annot build -index=graph.idx -layout='layout/{}.txt' -tracks=tracks.tsv
  graph-annot region -tracks=tracks.tsv -type=wig -bins=10 chr1:1000-2000
  graph-annot node -index=graph.idx -tracks=tracks.tsv 42 43
  graph-annot genes -gff=gencode.gtf.gz -starts-with=BRCA

Results are printed to stdout as JSON.
*/
package main

import "github.com/grailbio/graphannot/cmd/graph-annot/cmd"

func main() {
	cmd.Run()
}
