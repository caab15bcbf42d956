package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var reconfigureAll bool // Run a forced full reconfigure after the evaluation

// evalCmd evaluates the likelihood once at the card's starting dials
var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate the likelihood of a fit card at one dial vector",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		s := loadSession()

		x := s.Start()
		if err := applyDialFlags(s.Dials, x, dialFlags); err != nil {
			logrus.Fatalf("%v", err)
		}
		if _, err := s.Engine.Evaluate(x); err != nil {
			logrus.Fatalf("evaluation failed: %v", err)
		}
		b := s.Engine.Breakdown()
		if reconfigureAll {
			var err error
			if b, err = s.Engine.ReconfigureAllEvents(); err != nil {
				logrus.Fatalf("reconfiguring all events: %v", err)
			}
		}
		printBreakdown(os.Stdout, b)
		logMetrics(s.Engine.Metrics())
		if err := writeIterations(s.Engine.Recorder(), iterationsPath); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func init() {
	evalCmd.Flags().BoolVar(&reconfigureAll, "reconfigure-all", false, "Force every backend to reconfigure and rerun a full pass")
}
