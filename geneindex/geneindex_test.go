package geneindex

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/graphannot/encoding/bed"
	"github.com/grailbio/graphannot/region"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const testGTF = `#!genome-build GRCh38
chr17	HAVANA	gene	7661779	7687538	.	-	.	gene_id "ENSG00000141510"; gene_name "TP53";
chr17	HAVANA	transcript	7661779	7687538	.	-	.	gene_id "ENSG00000141510"; gene_name "TP53";
chr13	HAVANA	gene	32315508	32400268	.	+	.	gene_id "ENSG00000139618"; gene_name "BRCA2";
chr17	HAVANA	gene	43044295	43170245	.	-	.	gene_id "ENSG00000012048"; gene_name "BRCA1";
chr1	HAVANA	gene	11869	14409	.	+	.	gene_id "ENSG00000223972";
`

const testGFF3 = `##gff-version 3
1	ensembl	gene	100	200	.	+	.	ID=gene:1;gene_name=TP63
1	ensembl	mRNA	100	200	.	+	.	ID=tx:1;Parent=gene:1;gene_name=TP63
`

func TestRead(t *testing.T) {
	genes, err := Read(strings.NewReader(testGTF), GTF)
	assert.NoError(t, err)
	assert.EQ(t, len(genes), 3)
	expect.EQ(t, genes[0].Name, "TP53")
	expect.EQ(t, genes[0].Region, region.Region{Chrom: "17", Start: 7661779, Stop: 7687538})
	expect.EQ(t, genes[0].Strand, bed.Reverse)
	expect.EQ(t, genes[1].Strand, bed.Forward)

	genes, err = Read(strings.NewReader(testGFF3), GFF3)
	assert.NoError(t, err)
	assert.EQ(t, len(genes), 1)
	expect.EQ(t, genes[0].Name, "TP63")
	expect.EQ(t, genes[0].Region, region.Region{Chrom: "1", Start: 100, Stop: 200})
}

func TestFormatOf(t *testing.T) {
	expect.EQ(t, FormatOf("a/gencode.v30.gtf.gz"), GTF)
	expect.EQ(t, FormatOf("Homo_sapiens.GRCh38.gff3.gz"), GFF3)
	expect.EQ(t, FormatOf("x.GFF"), GFF3)
}

func TestIndex(t *testing.T) {
	genes, err := Read(strings.NewReader(testGTF), GTF)
	assert.NoError(t, err)
	idx := New(genes)
	expect.EQ(t, idx.Len(), 3)

	g, ok := idx.Equals("BRCA2")
	expect.True(t, ok)
	expect.EQ(t, g.Region.Chrom, "13")
	_, ok = idx.Equals("brca2")
	expect.False(t, ok)

	expect.EQ(t, idx.StartsWith("BRCA"), []string{"BRCA1", "BRCA2"})
	expect.EQ(t, idx.StartsWith("TP"), []string{"TP53"})
	expect.EQ(t, len(idx.StartsWith("X")), 0)

	expect.EQ(t, idx.Suggest("BRCA3", 5, 1), []string{"BRCA1", "BRCA2"})
	expect.EQ(t, idx.Suggest("BRCA3", 1, 1), []string{"BRCA1"})
	expect.EQ(t, idx.Suggest("TP35", 5, 2), []string{"TP53"})
	expect.EQ(t, len(idx.Suggest("KRAS", 5, 1)), 0)
}

func TestBuild(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	gtf := filepath.Join(tempDir, "genes.gtf")
	gff := filepath.Join(tempDir, "genes.gff3")
	assert.NoError(t, ioutil.WriteFile(gtf, []byte(testGTF), 0644))
	assert.NoError(t, ioutil.WriteFile(gff, []byte(testGFF3), 0644))

	idx := Build(context.Background(), []string{gtf, filepath.Join(tempDir, "missing.gtf"), gff})
	expect.EQ(t, idx.Len(), 4)
	expect.EQ(t, idx.StartsWith("TP"), []string{"TP53", "TP63"})
}
