package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// GTFSReloadInput is the input for the static-data reload workflow.
type GTFSReloadInput struct {
	AgencySlug string
	FeedURL    string
}

// GTFSReloadWorkflow orchestrates a full static-timetable reload as a saga:
// fetch the feed, rebuild a shadow transit-data facade from it, and swap it
// in atomically. If the swap-in fails, the shadow facade is discarded
// rather than left half-applied (the compensating activity).
func GTFSReloadWorkflow(ctx workflow.Context, input GTFSReloadInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting GTFS reload workflow", "agency", input.AgencySlug, "feed", input.FeedURL)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: fetch and stage the feed.
	var feedPath string
	if err := workflow.ExecuteActivity(ctx, "FetchGTFSFeed", input.FeedURL).Get(ctx, &feedPath); err != nil {
		return err
	}

	// Step 2: build a shadow facade from the staged feed.
	var shadowID string
	if err := workflow.ExecuteActivity(ctx, "BuildShadowFacade", input.AgencySlug, feedPath).Get(ctx, &shadowID); err != nil {
		return err
	}

	// Step 3: swap the shadow facade in as the live one.
	if err := workflow.ExecuteActivity(ctx, "SwapInFacade", shadowID).Get(ctx, nil); err != nil {
		logger.Warn("swap-in failed, discarding shadow facade", "error", err)
		_ = workflow.ExecuteActivity(ctx, "DiscardShadowFacade", shadowID).Get(ctx, nil)
		return err
	}

	logger.Info("GTFS reload complete", "agency", input.AgencySlug, "shadow", shadowID)
	return nil
}
