package notionsync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/finance-agent/internal/analysis"
	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/logger"
)

// GoalSource loads goals from a Notion database. It supplies only the goals
// part of a snapshot and is meant to be merged with another source.
type GoalSource struct {
	svc        Service
	databaseID string
}

// NewGoalSource creates a source over databaseID.
func NewGoalSource(svc Service, databaseID string) *GoalSource {
	return &GoalSource{svc: svc, databaseID: databaseID}
}

// Load returns a snapshot holding the database's goals ordered by id. Pages
// without a goal id are skipped.
func (s *GoalSource) Load(ctx context.Context) (*domain.Snapshot, error) {
	pages, err := queryAllPages(ctx, s.svc, s.databaseID)
	if err != nil {
		return nil, fmt.Errorf("GoalSource.Load: %w", err)
	}

	goals := make([]domain.Goal, 0, len(pages))
	for _, p := range pages {
		if g, ok := GoalFromPage(p); ok {
			goals = append(goals, g)
		}
	}
	sort.Slice(goals, func(i, j int) bool { return goals[i].ID < goals[j].ID })

	log := logger.FromContext(ctx)
	log.Debug().Int("pages", len(pages)).Int("goals", len(goals)).Msg("goals loaded from Notion")
	return &domain.Snapshot{Goals: goals}, nil
}

// PublishStats counts the outcome of one publish run.
type PublishStats struct {
	Created int
	Updated int
	Failed  int
}

// ProgressPublisher writes goal progress to a Notion database, one page per
// goal keyed by the goal id.
type ProgressPublisher struct {
	svc        Service
	databaseID string
	clock      func() time.Time
}

// NewProgressPublisher creates a publisher over databaseID.
func NewProgressPublisher(svc Service, databaseID string) *ProgressPublisher {
	return &ProgressPublisher{svc: svc, databaseID: databaseID, clock: time.Now}
}

// Publish upserts a progress page for every goal. Failures on single pages are
// logged and counted; the run continues. In dry-run mode nothing is written.
func (p *ProgressPublisher) Publish(ctx context.Context, goals []domain.Goal, dryRun bool) (PublishStats, error) {
	log := logger.FromContext(ctx)
	var stats PublishStats

	pages, err := queryAllPages(ctx, p.svc, p.databaseID)
	if err != nil {
		return stats, fmt.Errorf("Publish: %w", err)
	}
	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		if id := GoalIDFromPage(page); id != "" {
			existing[id] = string(page.ID)
		}
	}

	now := p.clock()
	for _, g := range goals {
		props := ProgressProperties(g.ID, analysis.AnalyzeGoal(g, now), now)
		pageID, found := existing[g.ID]

		if dryRun {
			log.Info().Str("goal_id", g.ID).Bool("exists", found).Msg("[DRY RUN] Would publish goal progress")
			if found {
				stats.Updated++
			} else {
				stats.Created++
			}
			continue
		}

		if found {
			if _, err := p.svc.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("goal_id", g.ID).Str("page_id", pageID).Msg("Failed to update goal page")
				stats.Failed++
				continue
			}
			stats.Updated++
			continue
		}

		page, err := p.svc.CreatePage(ctx, p.databaseID, props)
		if err != nil {
			log.Warn().Err(err).Str("goal_id", g.ID).Msg("Failed to create goal page")
			stats.Failed++
			continue
		}
		log.Debug().Str("goal_id", g.ID).Str("page_id", string(page.ID)).Msg("Created goal page")
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("failed", stats.Failed).
		Bool("dry_run", dryRun).
		Msg("Goal progress publish completed")
	return stats, nil
}
