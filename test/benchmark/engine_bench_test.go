// Package benchmark contains Go benchmarks for the retrieval engine: corpus
// statistics builds, query scoring, and snapshot serialization.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/builder"
	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/model"
	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/rank"
	"github.com/arvind-menon/passage-retrieval-platform/internal/snapshot"
)

func syntheticCorpus(n int) []model.Passage {
	templates := []string{
		"aspirin reduced the recurrence of colorectal adenomas in group %d",
		"participants in cohort %d received a daily placebo tablet",
		"adverse events were reported by %d patients during followup",
		"colonoscopy at year %d detected one or more recurrent polyps",
		"the randomized trial enrolled site %d across three regions",
	}
	passages := make([]model.Passage, n)
	for i := range passages {
		passages[i] = model.Passage{
			ID:       fmt.Sprintf("p-%d", i),
			SourceID: fmt.Sprintf("src-%d", i%50),
			Text:     fmt.Sprintf(templates[i%len(templates)], i),
		}
	}
	return passages
}

// BenchmarkBuild measures full-corpus statistics build throughput.
func BenchmarkBuild(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		passages := syntheticCorpus(n)
		b.Run(fmt.Sprintf("passages_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				m := builder.Build(passages)
				_ = m
			}
		})
	}
}

// BenchmarkSearch measures query scoring latency over a 10 000 passage model.
func BenchmarkSearch(b *testing.B) {
	m := builder.Build(syntheticCorpus(10000))
	queries := []string{
		"aspirin recurrence",
		"placebo tablet daily",
		"adverse events followup colonoscopy",
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results := rank.Search(m, queries[i%len(queries)], 10)
		_ = results
	}
}

// BenchmarkSearchParallel measures concurrent scoring throughput over one
// shared model.
func BenchmarkSearchParallel(b *testing.B) {
	m := builder.Build(syntheticCorpus(10000))
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			results := rank.Search(m, "aspirin recurrence polyps", 10)
			_ = results
		}
	})
}

// BenchmarkSnapshotWrite measures model serialization to disk.
func BenchmarkSnapshotWrite(b *testing.B) {
	m := builder.Build(syntheticCorpus(1000))
	dir := b.TempDir()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := snapshot.Write(dir, m); err != nil {
			b.Fatalf("Write: %v", err)
		}
	}
}

// BenchmarkSnapshotRead measures model load latency.
func BenchmarkSnapshotRead(b *testing.B) {
	m := builder.Build(syntheticCorpus(1000))
	dir := b.TempDir()
	path, err := snapshot.Write(dir, m)
	if err != nil {
		b.Fatalf("Write: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := snapshot.Read(path); err != nil {
			b.Fatalf("Read: %v", err)
		}
	}
}
