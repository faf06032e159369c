package metastore

import (
	"context"
	"errors"

	"github.com/danthegoodman1/icemor/gologger"
	"github.com/danthegoodman1/icemor/model"
)

var (
	logger = gologger.Component("metastore")

	// ErrFileGroupPending means a file group is already part of a scheduled compaction
	ErrFileGroupPending = errors.New("file group already has a pending compaction")
	ErrPlanNotPending   = errors.New("no pending compaction at instant")
)

type (
	// MetaStore tracks which file groups belong to a scheduled but not yet
	// completed compaction, so the planner never schedules a file group twice.
	MetaStore interface {
		// AddPendingPlan records ids as pending under instant. It fails with
		// ErrFileGroupPending, recording nothing, if any id is already pending.
		AddPendingPlan(ctx context.Context, table, instant string, ids []model.FileGroupID) error
		// ListPendingFileGroups maps each pending file group to its plan instant
		ListPendingFileGroups(ctx context.Context, table string) (map[model.FileGroupID]string, error)
		// CompletePlan drops every pending entry of instant
		CompletePlan(ctx context.Context, table, instant string) error

		Shutdown(ctx context.Context) error
	}
)
