package analytics

import (
	"context"
	"sort"
	"time"

	"sentinel-nlmod/internal/storage"
)

const reportLimit = 5000

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

type ActionCount struct {
	Action    string
	Succeeded int
	Failed    int
}

type Report struct {
	Total     int
	Succeeded int
	Failed    int
	ByAction  []ActionCount
	Actors    int
}

// Report counts the audited moderation attempts of a guild since the given
// time, grouped by action.
func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	actions, err := s.store.ListModerationActions(ctx, guildID, since, reportLimit)
	if err != nil {
		return Report{}, err
	}

	counts := make(map[string]*ActionCount)
	actors := make(map[string]struct{})
	report := Report{}
	for _, action := range actions {
		report.Total++
		actors[action.ActorID] = struct{}{}
		count := counts[action.Action]
		if count == nil {
			count = &ActionCount{Action: action.Action}
			counts[action.Action] = count
		}
		if action.Success {
			report.Succeeded++
			count.Succeeded++
		} else {
			report.Failed++
			count.Failed++
		}
	}
	for _, count := range counts {
		report.ByAction = append(report.ByAction, *count)
	}
	sort.Slice(report.ByAction, func(i, j int) bool {
		return report.ByAction[i].Action < report.ByAction[j].Action
	})
	report.Actors = len(actors)
	return report, nil
}
