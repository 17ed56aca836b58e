package analytics

import (
	"context"
	"testing"
	"time"

	"sentinel-nlmod/internal/storage"
)

func TestReportGroupsByAction(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	now := time.Now()
	for _, action := range []storage.ModerationAction{
		{GuildID: "g1", ActorID: "a", Action: "mute", TargetID: "1", Success: true, CreatedAt: now},
		{GuildID: "g1", ActorID: "a", Action: "mute", TargetID: "2", Success: false, CreatedAt: now},
		{GuildID: "g1", ActorID: "b", Action: "ban", TargetID: "3", Success: true, CreatedAt: now},
		{GuildID: "g2", ActorID: "c", Action: "ban", TargetID: "4", Success: true, CreatedAt: now},
		{GuildID: "g1", ActorID: "a", Action: "kick", TargetID: "5", Success: true, CreatedAt: now.Add(-48 * time.Hour)},
	} {
		if err := store.AddModerationAction(ctx, action); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	report, err := New(store).Report(ctx, "g1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Total != 3 || report.Succeeded != 2 || report.Failed != 1 || report.Actors != 2 {
		t.Fatalf("unexpected totals %+v", report)
	}
	if len(report.ByAction) != 2 || report.ByAction[0].Action != "ban" || report.ByAction[1].Failed != 1 {
		t.Fatalf("unexpected breakdown %+v", report.ByAction)
	}
}
