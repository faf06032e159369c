package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danthegoodman1/icemor/datastore"
	"github.com/danthegoodman1/icemor/metastore"
	"github.com/danthegoodman1/icemor/metrics"
	"github.com/danthegoodman1/icemor/model"
	"github.com/danthegoodman1/icemor/plan"
	"github.com/danthegoodman1/icemor/planner"
	"github.com/danthegoodman1/icemor/utils"
	"github.com/rs/zerolog"
)

// InstantFormat is the layout of instant times, second precision
const InstantFormat = "20060102150405"

type (
	Scheduler struct {
		View      datastore.FileSystemView
		Plans     plan.Store
		MetaStore metastore.MetaStore
		Planner   *planner.Planner

		mu          sync.Mutex
		lastInstant time.Time
		now         func() time.Time
	}
)

func New(view datastore.FileSystemView, plans plan.Store, ms metastore.MetaStore, p *planner.Planner) *Scheduler {
	return &Scheduler{
		View:      view,
		Plans:     plans,
		MetaStore: ms,
		Planner:   p,
		now:       time.Now,
	}
}

// NewInstant returns an instant time strictly after every instant this scheduler handed out before
func (s *Scheduler) NewInstant() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now().UTC().Truncate(time.Second)
	if !t.After(s.lastInstant) {
		t = s.lastInstant.Add(time.Second)
	}
	s.lastInstant = t
	return t.Format(InstantFormat)
}

// Schedule plans a compaction over the given partitions of table, or every
// partition when none are given. It returns a nil plan when there is nothing
// to compact. File groups are recorded as pending before the plan is written,
// so two schedulers racing on a table cannot both claim one file group.
func (s *Scheduler) Schedule(ctx context.Context, table string, partitions []string) (*plan.Plan, error) {
	// every log line of one scheduling attempt carries the same k-sorted id
	attemptID := utils.GenKSortedID("sch_")
	l := zerolog.Ctx(ctx).With().Str("attemptID", attemptID).Logger()
	logger := &l
	ctx = logger.WithContext(ctx)

	var err error
	if len(partitions) == 0 {
		partitions, err = s.View.ListPartitions(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("error in ListPartitions: %w", err)
		}
	}

	slices := make(map[string][]model.FileSlice, len(partitions))
	for _, part := range partitions {
		st := time.Now()
		partSlices, err := s.View.ListFileSlices(ctx, table, part)
		if errors.Is(err, datastore.ErrPartitionNotFound) {
			logger.Warn().Str("partition", part).Msg("partition not found, skipping")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error in ListFileSlices for %s: %w", part, err)
		}
		logger.Debug().Str("partition", part).Int("fileGroups", len(partSlices)).Msgf("listed file slices in %s", time.Since(st))
		slices[part] = partSlices
	}

	pending, err := s.MetaStore.ListPendingFileGroups(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("error in ListPendingFileGroups: %w", err)
	}

	ops, err := s.Planner.Plan(ctx, slices, pending)
	if err != nil {
		return nil, fmt.Errorf("error in Plan: %w", err)
	}
	if len(ops) == 0 {
		logger.Debug().Str("table", table).Msg("nothing to compact")
		return nil, nil
	}

	p := &plan.Plan{InstantTime: s.NewInstant(), Operations: ops}
	ids := make([]model.FileGroupID, len(ops))
	for i, op := range ops {
		ids[i] = op.FileGroupID()
	}

	if err = s.MetaStore.AddPendingPlan(ctx, table, p.InstantTime, ids); err != nil {
		return nil, fmt.Errorf("error in AddPendingPlan: %w", err)
	}
	if err = s.Plans.Save(ctx, table, p); err != nil {
		if rbErr := s.MetaStore.CompletePlan(ctx, table, p.InstantTime); rbErr != nil {
			logger.Error().Err(rbErr).Str("instant", p.InstantTime).Msg("failed to release pending file groups after plan write failure")
		}
		return nil, fmt.Errorf("error saving plan: %w", err)
	}

	metrics.PlansScheduledTotal.WithLabelValues(table).Inc()
	logger.Info().Str("table", table).Str("instant", p.InstantTime).Int("operations", len(ops)).Msg("scheduled compaction")
	return p, nil
}

func (s *Scheduler) GetPlan(ctx context.Context, table, instant string) (*plan.Plan, error) {
	p, err := s.Plans.Load(ctx, table, instant)
	if err != nil {
		return nil, fmt.Errorf("error in Plans.Load: %w", err)
	}
	return p, nil
}

func (s *Scheduler) ListPlans(ctx context.Context, table string) ([]string, error) {
	instants, err := s.Plans.List(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("error in Plans.List: %w", err)
	}
	return instants, nil
}

// CompletePlan releases the plan's file groups for future planning. The plan
// file itself is kept.
func (s *Scheduler) CompletePlan(ctx context.Context, table, instant string) error {
	if err := s.MetaStore.CompletePlan(ctx, table, instant); err != nil {
		return fmt.Errorf("error in MetaStore.CompletePlan: %w", err)
	}
	metrics.PendingCompactionsCompletedTotal.Inc()
	zerolog.Ctx(ctx).Info().Str("table", table).Str("instant", instant).Msg("completed compaction")
	return nil
}

// AbortPlan drops a scheduled plan that will not be executed. Its file groups
// are released before the plan file is removed.
func (s *Scheduler) AbortPlan(ctx context.Context, table, instant string) error {
	if err := s.MetaStore.CompletePlan(ctx, table, instant); err != nil && !errors.Is(err, metastore.ErrPlanNotPending) {
		return fmt.Errorf("error in MetaStore.CompletePlan: %w", err)
	}
	if err := s.Plans.Delete(ctx, table, instant); err != nil {
		return fmt.Errorf("error in Plans.Delete: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("table", table).Str("instant", instant).Msg("aborted compaction")
	return nil
}
