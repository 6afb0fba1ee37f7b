// Command vesselseg trains and evaluates a U-Net that segments blood
// vessels in DRIVE retinal fundus photographs.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/vesselseg-ml/vesselseg/internal/config"
	"github.com/vesselseg-ml/vesselseg/internal/drive"
	"github.com/vesselseg-ml/vesselseg/internal/trainer"
)

func main() {
	app := &cli.App{
		Name:  "vesselseg",
		Usage: "retinal blood vessel segmentation on the DRIVE dataset",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "dataset root, overrides data.root from the config",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "train",
				Usage: "train a model from scratch or resume from a checkpoint",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "epochs",
						Usage: "override train.epochs from the config",
					},
					&cli.StringFlag{
						Name:  "resume",
						Usage: "checkpoint to resume from",
					},
				},
				Action: runTrain,
			},
			{
				Name:  "eval",
				Usage: "score a trained model on the test split",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "checkpoint",
						Usage:    "trained model checkpoint",
						Required: true,
					},
				},
				Action: runEval,
			},
			{
				Name:  "predict",
				Usage: "write vessel probability maps for the test split",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "checkpoint",
						Usage:    "trained model checkpoint",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "output directory, overrides output.predictions_dir",
					},
				},
				Action: runPredict,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if root := c.String("data"); root != "" {
		cfg.Data.Root = root
	}
	if c.IsSet("epochs") {
		cfg.Train.Epochs = c.Int("epochs")
	}
	return cfg, cfg.Validate()
}

func runTrain(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	trainSamples, err := drive.LoadSplit(cfg.Data.Root, drive.TrainingSplit)
	if err != nil {
		return fmt.Errorf("load training split: %w", err)
	}
	valSamples, err := drive.LoadSplit(cfg.Data.Root, drive.TestSplit)
	if err != nil {
		return fmt.Errorf("load test split: %w", err)
	}
	log.Printf("loaded %d training and %d test subjects from %s",
		len(trainSamples), len(valSamples), cfg.Data.Root)

	tr, err := trainer.New(cfg)
	if err != nil {
		return err
	}
	if resume := c.String("resume"); resume != "" {
		if err := tr.LoadCheckpoint(resume); err != nil {
			return err
		}
	}
	return tr.Train(trainSamples, valSamples)
}

func runEval(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	samples, err := drive.LoadSplit(cfg.Data.Root, drive.TestSplit)
	if err != nil {
		return fmt.Errorf("load test split: %w", err)
	}

	tr, err := trainer.New(cfg)
	if err != nil {
		return err
	}
	if err := tr.LoadCheckpoint(c.String("checkpoint")); err != nil {
		return err
	}

	result, err := tr.Evaluate(samples)
	if err != nil {
		return err
	}
	fmt.Printf("test split (%d subjects): %s\n", len(samples), result)
	return nil
}

func runPredict(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	outDir := cfg.Output.PredictionsDir
	if dir := c.String("out"); dir != "" {
		outDir = dir
	}

	samples, err := drive.LoadSplit(cfg.Data.Root, drive.TestSplit)
	if err != nil {
		return fmt.Errorf("load test split: %w", err)
	}

	tr, err := trainer.New(cfg)
	if err != nil {
		return err
	}
	if err := tr.LoadCheckpoint(c.String("checkpoint")); err != nil {
		return err
	}
	return tr.Predict(samples, outDir)
}
