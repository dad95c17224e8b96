package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/rostermap/pkg/dataset"
	"github.com/matzehuels/rostermap/pkg/observability"
)

// Loaded is a dataset together with the digest of its source files.
type Loaded struct {
	Dataset *dataset.Dataset
	Hash    string
}

// Load reads and projects the dataset named by opts.Data.
func Load(ctx context.Context, opts Options) (*Loaded, error) {
	start := time.Now()
	hash, err := opts.Data.Hash()
	if err != nil {
		observability.Engine().OnLoad(ctx, 0, 0, 0, time.Since(start), err)
		return nil, err
	}
	ds, err := dataset.Load(opts.Data, opts.LoadOptions())
	if err != nil {
		observability.Engine().OnLoad(ctx, 0, 0, 0, time.Since(start), err)
		return nil, err
	}
	observability.Engine().OnLoad(ctx, len(ds.Members), len(ds.Territories), len(ds.Steps), time.Since(start), nil)
	return &Loaded{Dataset: ds, Hash: hash}, nil
}
