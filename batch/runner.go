// Package batch fans a set of documents out over one pipeline with bounded
// concurrency.
package batch

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"fieldveil"
)

// Document is one report to process
type Document struct {
	Name string
	Text string
}

// Result pairs a document with what processing produced. A failed document
// carries its error here; the rest of the batch is unaffected.
type Result struct {
	Name   string
	Report fieldveil.ProcessResult
	Err    error
}

// Options tunes a batch run
type Options struct {
	// Concurrency caps simultaneous documents; 0 or less means one per CPU
	Concurrency int
}

// Run processes docs through p, at most opts.Concurrency at a time.
// Results hold position: the result at index i belongs to docs[i]. Each
// document gets its own synthesizer inside the pipeline, so batch output
// is identical to processing the documents one by one. Only context
// cancellation stops a batch early; per-document failures do not.
func Run(ctx context.Context, p *fieldveil.Pipeline, docs []Document, opts Options) ([]Result, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make([]Result, len(docs))

	for i, doc := range docs {
		results[i].Name = doc.Name

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return err
			}

			report, err := p.Process(doc.Name, doc.Text, nil)
			if err != nil {
				// Recorded against the document, not the batch
				results[i].Err = err
				return nil
			}

			results[i].Report = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
