// Package fetch sequences per-repository item retrieval and drives the item
// processor under the shared rate budget.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/triagestats/triagestats/internal/analyze"
	"github.com/triagestats/triagestats/internal/githubapi"
	"go.uber.org/zap"
)

// State is the per-repository fetch progression.
type State string

const (
	// StateIdle is the initial per-repository state.
	StateIdle State = "idle"
	// StateFetchingIssues covers the issue search and processing phase.
	StateFetchingIssues State = "fetching_issues"
	// StateFetchingPRs covers the pull request search and batch phase.
	StateFetchingPRs State = "fetching_prs"
	// StateDone marks a completed repository.
	StateDone State = "done"
)

// SearchClient is the search/list service surface the orchestrator consumes.
type SearchClient interface {
	SearchItems(ctx context.Context, owner, repo string, kind githubapi.ItemKind, from, to time.Time) (githubapi.SearchResult, error)
}

// Config configures one orchestrator run.
type Config struct {
	Owner      string
	Repos      []string
	WindowFrom time.Time
	WindowTo   time.Time
	// PRBatchSize bounds in-flight per-item lookups: batches run with
	// intra-batch concurrency and inter-batch sequencing.
	PRBatchSize int
}

// Orchestrator fetches raw items and turns them into records. Repositories
// are processed strictly in input order because date-scoped search draws from
// a separate, much tighter quota than bulk reads.
type Orchestrator struct {
	search    SearchClient
	processor *analyze.Processor
	cfg       Config
	logger    *zap.Logger
}

// New creates a fetch orchestrator.
func New(search SearchClient, processor *analyze.Processor, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	if search == nil {
		return nil, fmt.Errorf("search client is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if cfg.Owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if len(cfg.Repos) == 0 {
		return nil, fmt.Errorf("at least one repository is required")
	}
	if cfg.PRBatchSize <= 0 {
		return nil, fmt.Errorf("pr batch size must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		search:    search,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Run fetches and processes every configured repository. A fatal error
// (quota exhaustion, auth failure, repository fetch failure) unwinds the
// whole run; there is no partial-success report.
func (o *Orchestrator) Run(ctx context.Context) ([]*analyze.Record, error) {
	var records []*analyze.Record
	for _, repo := range o.cfg.Repos {
		repoRecords, err := o.runRepo(ctx, repo)
		if err != nil {
			return nil, fmt.Errorf("repository %s/%s: %w", o.cfg.Owner, repo, err)
		}
		records = append(records, repoRecords...)
	}
	return records, nil
}

func (o *Orchestrator) runRepo(ctx context.Context, repo string) ([]*analyze.Record, error) {
	state := StateIdle
	var records []*analyze.Record

	state = StateFetchingIssues
	o.logger.Debug("repository fetch state change", zap.String("repo", repo), zap.String("state", string(state)))

	issues, err := o.searchKind(ctx, repo, githubapi.KindIssue)
	if err != nil {
		return nil, err
	}
	for _, item := range issues {
		record, err := o.processor.Process(ctx, rawItem(repo, analyze.TypeIssue, item))
		if err != nil {
			return nil, err
		}
		if record != nil {
			records = append(records, record)
		}
	}
	issueRecords := len(records)

	state = StateFetchingPRs
	o.logger.Debug("repository fetch state change", zap.String("repo", repo), zap.String("state", string(state)))

	pulls, err := o.searchKind(ctx, repo, githubapi.KindPull)
	if err != nil {
		return nil, err
	}
	pullRecords, err := o.processPullBatches(ctx, repo, pulls)
	if err != nil {
		return nil, err
	}
	records = append(records, pullRecords...)

	state = StateDone
	o.logger.Info("repository fetch completed",
		zap.String("repo", repo),
		zap.String("state", string(state)),
		zap.Int("issues_fetched", len(issues)),
		zap.Int("pulls_fetched", len(pulls)),
		zap.Int("issue_records", issueRecords),
		zap.Int("pull_records", len(pullRecords)),
	)
	return records, nil
}

func (o *Orchestrator) searchKind(ctx context.Context, repo string, kind githubapi.ItemKind) ([]githubapi.SearchItem, error) {
	result, err := o.search.SearchItems(ctx, o.cfg.Owner, repo, kind, o.cfg.WindowFrom, o.cfg.WindowTo)
	if err != nil {
		return nil, fmt.Errorf("search %s items: %w", kind, err)
	}
	if result.Status != githubapi.EndpointStatusOK {
		return nil, fmt.Errorf("search %s items: unexpected status %s", kind, result.Status)
	}
	return result.Items, nil
}

// processPullBatches runs per-item lookups in fixed-width batches. Goroutines
// within one batch write to disjoint output slots, so no locking is needed;
// batches are sequenced to bound peak in-flight requests.
func (o *Orchestrator) processPullBatches(ctx context.Context, repo string, pulls []githubapi.SearchItem) ([]*analyze.Record, error) {
	var records []*analyze.Record
	for start := 0; start < len(pulls); start += o.cfg.PRBatchSize {
		end := start + o.cfg.PRBatchSize
		if end > len(pulls) {
			end = len(pulls)
		}
		batch := pulls[start:end]

		slots := make([]*analyze.Record, len(batch))
		errs := make([]error, len(batch))
		var wg sync.WaitGroup
		for i, item := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				slots[i], errs[i] = o.processor.Process(ctx, rawItem(repo, analyze.TypePull, item))
			}()
		}
		wg.Wait()

		for i := range batch {
			if errs[i] != nil {
				return nil, errs[i]
			}
			if slots[i] != nil {
				records = append(records, slots[i])
			}
		}
	}
	return records, nil
}

func rawItem(repo string, itemType analyze.ItemType, item githubapi.SearchItem) analyze.RawItem {
	return analyze.RawItem{
		Repo:      repo,
		Type:      itemType,
		Number:    item.Number,
		Title:     item.Title,
		Author:    item.Author,
		CreatedAt: item.CreatedAt,
		URL:       item.URL,
		State:     item.State,
	}
}
