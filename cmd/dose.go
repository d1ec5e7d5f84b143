package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/labkit/microdoser/app"
	"github.com/labkit/microdoser/core/plan"
	"github.com/labkit/microdoser/infra/logger"
)

var doseCmd = &cobra.Command{
	Use:   "dose <plan.yaml>",
	Short: "Execute a dosing plan against a loaded plate",
	Args:  cobra.ExactArgs(1),
	RunE:  dosePlan,
}

func init() {
	rootCmd.AddCommand(doseCmd)
}

func dosePlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	logg := logger.New("dose-command")
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	if err := svc.Station.LoadPlate(); err != nil {
		return err
	}
	verify := p.VerifyOrDefault(cfg.Workflow.VerifyMassAfterDose)
	batch, err := svc.Station.DosePlate(ctx, p.Targets, verify)
	if err != nil {
		logg.Errorf("batch %s aborted at well %s: %v", batch.BatchID, batch.FailedWell, err)
		return err
	}
	logg.Infof("batch %s complete: %d wells dosed", batch.BatchID, len(batch.Results))
	return svc.Station.UnloadPlate()
}
