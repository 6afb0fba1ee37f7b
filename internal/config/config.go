// Package config loads training configuration from YAML files. Every field
// has a usable default, so a config file only needs to state what differs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full training configuration.
type Config struct {
	Data   DataConfig   `yaml:"data"`
	Model  ModelConfig  `yaml:"model"`
	Train  TrainConfig  `yaml:"train"`
	Output OutputConfig `yaml:"output"`
}

// DataConfig locates the dataset and tunes augmentation.
type DataConfig struct {
	// Root is the DRIVE dataset directory containing training/ and test/.
	Root string `yaml:"root"`
	// NoiseSigma is the Gaussian noise level added to training patches.
	// Zero disables the augmentation.
	NoiseSigma float64 `yaml:"noise_sigma"`
}

// ModelConfig sizes the network.
type ModelConfig struct {
	InChannels   int `yaml:"in_channels"`
	OutChannels  int `yaml:"out_channels"`
	BaseFeatures int `yaml:"base_features"`
}

// TrainConfig controls the optimization loop.
type TrainConfig struct {
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	PatchSize       int     `yaml:"patch_size"`
	PatchesPerEpoch int     `yaml:"patches_per_epoch"`
	Optimizer       string  `yaml:"optimizer"`
	LearningRate    float64 `yaml:"learning_rate"`
	Momentum        float64 `yaml:"momentum"`
	WeightDecay     float64 `yaml:"weight_decay"`
	DiceWeight      float64 `yaml:"dice_weight"`
	LRStepSize      int     `yaml:"lr_step_size"`
	LRGamma         float64 `yaml:"lr_gamma"`
	Seed            int64   `yaml:"seed"`
	EvalInterval    int     `yaml:"eval_interval"`
	Threshold       float64 `yaml:"threshold"`
}

// OutputConfig locates artifacts written during training.
type OutputConfig struct {
	CheckpointDir  string `yaml:"checkpoint_dir"`
	PredictionsDir string `yaml:"predictions_dir"`
}

// Default returns the configuration used when a field is absent.
func Default() Config {
	return Config{
		Data: DataConfig{
			Root:       "data/DRIVE",
			NoiseSigma: 0.05,
		},
		Model: ModelConfig{
			InChannels:   3,
			OutChannels:  1,
			BaseFeatures: 16,
		},
		Train: TrainConfig{
			Epochs:          50,
			BatchSize:       4,
			PatchSize:       96,
			PatchesPerEpoch: 200,
			Optimizer:       "adam",
			LearningRate:    1e-3,
			Momentum:        0.9,
			WeightDecay:     1e-4,
			DiceWeight:      0.5,
			LRStepSize:      20,
			LRGamma:         0.5,
			Seed:            42,
			EvalInterval:    5,
			Threshold:       0.5,
		},
		Output: OutputConfig{
			CheckpointDir:  "checkpoints",
			PredictionsDir: "predictions",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.Data.Root == "" {
		return fmt.Errorf("data.root must be set")
	}
	if c.Model.InChannels <= 0 || c.Model.OutChannels <= 0 || c.Model.BaseFeatures <= 0 {
		return fmt.Errorf("model dimensions must be positive")
	}
	if c.Train.Epochs <= 0 {
		return fmt.Errorf("train.epochs must be positive, got %d", c.Train.Epochs)
	}
	if c.Train.BatchSize <= 0 {
		return fmt.Errorf("train.batch_size must be positive, got %d", c.Train.BatchSize)
	}
	if c.Train.PatchSize <= 0 || c.Train.PatchSize%16 != 0 {
		return fmt.Errorf("train.patch_size must be a positive multiple of 16, got %d", c.Train.PatchSize)
	}
	if c.Train.PatchesPerEpoch <= 0 {
		return fmt.Errorf("train.patches_per_epoch must be positive, got %d", c.Train.PatchesPerEpoch)
	}
	switch c.Train.Optimizer {
	case "sgd", "adam":
	default:
		return fmt.Errorf("train.optimizer must be sgd or adam, got %q", c.Train.Optimizer)
	}
	if c.Train.LearningRate <= 0 {
		return fmt.Errorf("train.learning_rate must be positive, got %g", c.Train.LearningRate)
	}
	if c.Train.DiceWeight < 0 {
		return fmt.Errorf("train.dice_weight must be non-negative, got %g", c.Train.DiceWeight)
	}
	if c.Train.Threshold <= 0 || c.Train.Threshold >= 1 {
		return fmt.Errorf("train.threshold must be in (0,1), got %g", c.Train.Threshold)
	}
	return nil
}
