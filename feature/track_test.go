package feature

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestFormatOf(t *testing.T) {
	tests := []struct {
		url  string
		want Format
	}{
		{"genes.bed", BED},
		{"/data/genes.bed.gz", BED},
		{"s3://bucket/ensGene.bb", BigBed},
		{"ensGene.bigBed", BigBed},
		{"signal.bw", BigWig},
		{"signal.bigwig", BigWig},
		{"genes.gff3", Unsupported},
		{"noext", Unsupported},
	}
	for _, test := range tests {
		expect.EQ(t, FormatOf(test.url), test.want, test.url)
	}
}

func TestReadTracks(t *testing.T) {
	tracks, err := ReadTracks(strings.NewReader(
		"# name\turl\tprefix\n" +
			"genes\t/data/ensGene.bb\tchr\n" +
			"signal\t/data/cov.bw\t.\n" +
			"raw\t/data/peaks.bed\t.\n"))
	assert.NoError(t, err)
	expect.EQ(t, tracks, []Track{
		{Name: "genes", URL: "/data/ensGene.bb", ChrPrefix: "chr", Format: BigBed},
		{Name: "signal", URL: "/data/cov.bw", Format: BigWig},
		{Name: "raw", URL: "/data/peaks.bed", Format: BED},
	})
	expect.EQ(t, tracks[0].QueryChrom("1"), "chr1")
	expect.EQ(t, tracks[1].QueryChrom("1"), "1")
}

func TestFeatureJSON(t *testing.T) {
	data, err := json.Marshal(Feature{StartOffset: 1, StopOffset: 2, ID: 3, Name: "x", Value: Float32(0.5)})
	assert.NoError(t, err)
	expect.EQ(t, string(data),
		`{"start_offset":1,"stop_offset":2,"id":3,"name":"x","is_reverse":null,"attributes":null,"value":0.5}`)
}
