// Package stats aggregates descriptive statistics over an index scan.
package stats

import (
	"context"
	"math"
	"sort"

	"github.com/mtrtrdev/localQA/internal/index"
)

// Distribution summarizes a list of integer observations.
type Distribution struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	Median int     `json:"median"`
	Values []int   `json:"values"`
}

// FileStats describes one ingested file.
type FileStats struct {
	ChunkCount  int    `json:"chunk_count"`
	TotalLength int    `json:"total_length"`
	FileType    string `json:"file_type"`
}

// Report is the full picture of one database's contents.
type Report struct {
	TotalChunks       int                  `json:"total_chunks"`
	TotalFiles        int                  `json:"total_files"`
	TotalLength       int                  `json:"total_length"`
	AvgChunksPerFile  float64              `json:"avg_chunks_per_file"`
	AvgLengthPerChunk float64              `json:"avg_length_per_chunk"`
	FileTypes         map[string]int       `json:"file_types"`
	FileStats         map[string]FileStats `json:"file_stats"`
	ChunkLengths      Distribution         `json:"chunk_lengths"`
	FileChunkCounts   Distribution         `json:"file_chunk_counts"`
}

// Analyze scans every entry of the index and aggregates the report.
// An empty database yields a zero report, not an error.
func Analyze(ctx context.Context, idx index.Index) (*Report, error) {
	entries, err := idx.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{
		FileTypes: make(map[string]int),
		FileStats: make(map[string]FileStats),
	}
	chunkLengths := make([]int, 0, len(entries))
	for _, e := range entries {
		length := e.CharLength
		chunkLengths = append(chunkLengths, length)
		fs := report.FileStats[e.Filename]
		fs.ChunkCount++
		fs.TotalLength += length
		fs.FileType = string(e.FileType)
		report.FileStats[e.Filename] = fs
	}
	fileChunkCounts := make([]int, 0, len(report.FileStats))
	for _, fs := range report.FileStats {
		report.TotalLength += fs.TotalLength
		report.FileTypes[fs.FileType]++
		fileChunkCounts = append(fileChunkCounts, fs.ChunkCount)
	}
	sort.Ints(fileChunkCounts)

	report.TotalChunks = len(entries)
	report.TotalFiles = len(report.FileStats)
	if report.TotalFiles > 0 {
		report.AvgChunksPerFile = round2(float64(report.TotalChunks) / float64(report.TotalFiles))
	}
	if report.TotalChunks > 0 {
		report.AvgLengthPerChunk = round2(float64(report.TotalLength) / float64(report.TotalChunks))
	}
	report.ChunkLengths = summarize(chunkLengths)
	report.FileChunkCounts = summarize(fileChunkCounts)
	return report, nil
}

func summarize(values []int) Distribution {
	d := Distribution{Values: values}
	if len(values) == 0 {
		d.Values = []int{}
		return d
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	d.Min = sorted[0]
	d.Max = sorted[len(sorted)-1]
	var sum int
	for _, v := range sorted {
		sum += v
	}
	d.Mean = round2(float64(sum) / float64(len(sorted)))
	d.Median = sorted[len(sorted)/2]
	return d
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
