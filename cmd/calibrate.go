package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/labkit/microdoser/app"
	"github.com/labkit/microdoser/infra/logger"
)

var calibrateSeconds int

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Run a timed feed over the balance and update the flow rate",
	RunE:  calibrate,
}

func init() {
	calibrateCmd.Flags().IntVar(&calibrateSeconds, "seconds", 10, "feed duration in seconds")
	rootCmd.AddCommand(calibrateCmd)
}

func calibrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logg := logger.New("calibrate-command")
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
	d := time.Duration(calibrateSeconds) * time.Second
	rate, err := svc.Station.AutoCalibrate(d, svc.Doser)
	if err != nil {
		return err
	}
	logg.Infof("flow rate calibrated to %.3f mg/s over %s", rate, d)
	return svc.Station.UnloadPlate()
}
