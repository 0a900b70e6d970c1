// Package pipeline runs one complete harvest: read manifests, write the
// datasources and lineage tables, and record the result as a state run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
	"github.com/leapstack-labs/leaplineage/internal/state"
	"github.com/leapstack-labs/leaplineage/internal/tabular"
)

// Observer is told about every finished run.
type Observer interface {
	ObserveRun(status state.RunStatus, elapsed time.Duration, res *harvest.Result)
}

// Pipeline wires a harvester to its outputs.
type Pipeline struct {
	Harvester       *harvest.Harvester
	Fs              afero.Fs
	ReposDir        string
	DatasourcesPath string
	LineagePath     string
	// WriteJSON also writes the sibling .json file of each table.
	WriteJSON bool
	// Store is optional. Without it no run is recorded.
	Store    state.Store
	Observer Observer
	Logger   *slog.Logger
}

// Outcome is the result of Run.
type Outcome struct {
	Result  *harvest.Result
	Run     *state.Run
	Elapsed time.Duration
}

// Run harvests once. A failed harvest is still recorded as a failed run.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fsys := p.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	start := time.Now()
	var run *state.Run
	if p.Store != nil {
		var err error
		run, err = p.Store.CreateRun(p.ReposDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
		logger.Debug("created run", "run_id", run.ID)
	}

	res, err := p.harvest(ctx, fsys, run)
	elapsed := time.Since(start)

	status := state.RunStatusCompleted
	if err != nil {
		status = state.RunStatusFailed
	}
	if p.Observer != nil {
		p.Observer.ObserveRun(status, elapsed, res)
	}

	if run != nil {
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		if cerr := p.Store.CompleteRun(run.ID, status, errMsg); cerr != nil {
			logger.Error("failed to complete run", "run_id", run.ID, "error", cerr)
		}
		if latest, gerr := p.Store.GetRun(run.ID); gerr == nil {
			run = latest
		}
	}

	if err != nil {
		logger.Error("harvest failed", "error", err)
		return &Outcome{Run: run, Elapsed: elapsed}, err
	}
	logger.Info("harvest recorded",
		"datasources_path", p.DatasourcesPath,
		"lineage_path", p.LineagePath,
		"elapsed", elapsed.Round(time.Millisecond),
	)
	return &Outcome{Result: res, Run: run, Elapsed: elapsed}, nil
}

func (p *Pipeline) harvest(ctx context.Context, fsys afero.Fs, run *state.Run) (*harvest.Result, error) {
	res, err := p.Harvester.Run(ctx)
	if err != nil {
		return nil, err
	}

	dsJSON, lnJSON := "", ""
	if p.WriteJSON {
		dsJSON = tabular.JSONPath(p.DatasourcesPath)
		lnJSON = tabular.JSONPath(p.LineagePath)
	}
	if err := tabular.WriteDatasources(fsys, p.DatasourcesPath, dsJSON, res.Datasources); err != nil {
		return nil, err
	}
	if err := tabular.WriteLineage(fsys, p.LineagePath, lnJSON, res.Lineage); err != nil {
		return nil, err
	}

	if run != nil {
		if err := p.Store.SaveSnapshot(run.ID, res); err != nil {
			return nil, fmt.Errorf("failed to save snapshot: %w", err)
		}
	}
	return res, nil
}
