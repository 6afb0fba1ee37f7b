// Package trainer runs the segmentation training loop: augmented patch
// batches through the network, fused loss on the logits, reverse-mode
// gradients from the tape, and an optimizer step per batch. Evaluation runs
// on full images with batch statistics frozen.
package trainer

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/vesselseg-ml/vesselseg/internal/autodiff"
	"github.com/vesselseg-ml/vesselseg/internal/backend/cpu"
	"github.com/vesselseg-ml/vesselseg/internal/config"
	"github.com/vesselseg-ml/vesselseg/internal/drive"
	"github.com/vesselseg-ml/vesselseg/internal/imageio"
	"github.com/vesselseg-ml/vesselseg/internal/metrics"
	"github.com/vesselseg-ml/vesselseg/internal/nn"
	"github.com/vesselseg-ml/vesselseg/internal/optim"
	"github.com/vesselseg-ml/vesselseg/internal/serialization"
	"github.com/vesselseg-ml/vesselseg/internal/tensor"
	"github.com/vesselseg-ml/vesselseg/internal/unet"
)

// Backend is the compute stack used for training: reverse-mode autodiff
// over the CPU kernels.
type Backend = *autodiff.Backend[*cpu.Backend]

// The network halves resolution four times, so dimensions entering the
// model must be divisible by 16.
const sizeMultiple = 16

// Trainer owns the model, optimizer and training state.
type Trainer struct {
	cfg     config.Config
	backend Backend
	model   *unet.UNet[Backend]
	opt     optim.Optimizer
	sched   *optim.StepLR

	startEpoch int
	step       int
	bestDice   float64
}

// New builds a trainer from the configuration.
func New(cfg config.Config) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	backend := autodiff.New(cpu.New())
	model, err := unet.New(unet.Config{
		InChannels:   cfg.Model.InChannels,
		OutChannels:  cfg.Model.OutChannels,
		BaseFeatures: cfg.Model.BaseFeatures,
	}, rand.New(rand.NewSource(cfg.Train.Seed)), backend)
	if err != nil {
		return nil, err
	}

	params := make([]*tensor.RawTensor, 0)
	for _, p := range model.Parameters() {
		params = append(params, p.Raw())
	}

	var opt optim.Optimizer
	switch cfg.Train.Optimizer {
	case "sgd":
		opt = optim.NewSGD(params, cfg.Train.LearningRate, cfg.Train.Momentum, cfg.Train.WeightDecay)
	case "adam":
		opt = optim.NewAdam(params, cfg.Train.LearningRate, cfg.Train.WeightDecay)
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Train.Optimizer)
	}

	return &Trainer{
		cfg:     cfg,
		backend: backend,
		model:   model,
		opt:     opt,
		sched:   optim.NewStepLR(opt, cfg.Train.LRStepSize, cfg.Train.LRGamma),
	}, nil
}

// Model returns the network, mainly for tests.
func (t *Trainer) Model() *unet.UNet[Backend] { return t.model }

// Backend returns the compute backend.
func (t *Trainer) Backend() Backend { return t.backend }

// BestDice returns the best validation Dice seen so far.
func (t *Trainer) BestDice() float64 { return t.bestDice }

// Train runs the full loop over trainSamples, validating on valSamples
// every eval interval and checkpointing the best and latest weights.
func (t *Trainer) Train(trainSamples, valSamples []*drive.Sample) error {
	if err := os.MkdirAll(t.cfg.Output.CheckpointDir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	sampler := drive.NewPatchSampler(trainSamples, t.cfg.Train.PatchSize, t.cfg.Data.NoiseSigma, t.cfg.Train.Seed)
	batchesPerEpoch := t.cfg.Train.PatchesPerEpoch / t.cfg.Train.BatchSize
	if batchesPerEpoch == 0 {
		batchesPerEpoch = 1
	}

	log.Printf("training: %d epochs, %d batches/epoch, batch size %d, patch %dpx, optimizer %s lr %g",
		t.cfg.Train.Epochs, batchesPerEpoch, t.cfg.Train.BatchSize,
		t.cfg.Train.PatchSize, t.cfg.Train.Optimizer, t.opt.LR())

	// Resuming continues the epoch count, so the learning rate schedule
	// picks up where the checkpoint left off.
	for epoch := t.startEpoch; epoch < t.cfg.Train.Epochs; epoch++ {
		t.sched.Apply(t.opt, epoch)
		meter := metrics.NewMeter()
		bar := progressbar.Default(int64(batchesPerEpoch), fmt.Sprintf("epoch %d/%d", epoch+1, t.cfg.Train.Epochs))

		for b := 0; b < batchesPerEpoch; b++ {
			loss, err := t.trainStep(sampler)
			if err != nil {
				return fmt.Errorf("epoch %d batch %d: %w", epoch+1, b+1, err)
			}
			meter.Add(loss, t.cfg.Train.BatchSize)
			bar.Add(1)
		}
		bar.Finish()
		log.Printf("epoch %d/%d: loss=%.4f lr=%.2g throughput=%.1f samples/s",
			epoch+1, t.cfg.Train.Epochs, meter.AvgLoss(), t.opt.LR(), meter.Throughput())

		last := epoch == t.cfg.Train.Epochs-1
		if len(valSamples) > 0 && (last || (epoch+1)%t.cfg.Train.EvalInterval == 0) {
			result, err := t.Evaluate(valSamples)
			if err != nil {
				return fmt.Errorf("evaluation after epoch %d: %w", epoch+1, err)
			}
			log.Printf("epoch %d/%d validation: %s", epoch+1, t.cfg.Train.Epochs, result)

			if result.Dice > t.bestDice {
				t.bestDice = result.Dice
				best := filepath.Join(t.cfg.Output.CheckpointDir, "best.ckpt")
				if err := t.SaveCheckpoint(best, epoch+1); err != nil {
					return err
				}
				log.Printf("saved %s (dice %.4f)", best, t.bestDice)
			}
		}

		latest := filepath.Join(t.cfg.Output.CheckpointDir, "latest.ckpt")
		if err := t.SaveCheckpoint(latest, epoch+1); err != nil {
			return err
		}
	}
	return nil
}

// trainStep runs one batch: forward, loss, backward, update.
func (t *Trainer) trainStep(sampler *drive.PatchSampler) (float64, error) {
	images, labels, err := drive.Batch(sampler.SampleBatch(t.cfg.Train.BatchSize), t.backend)
	if err != nil {
		return 0, err
	}

	t.backend.Tape().StartRecording()
	logits := t.model.Forward(images)
	loss := nn.CombinedLoss(logits, labels, t.cfg.Train.DiceWeight)
	t.backend.Tape().StopRecording()

	seed := tensor.Ones[float32](tensor.Shape{1}, t.backend)
	grads := t.backend.Backward(loss.Raw(), seed.Raw())
	t.opt.Step(grads)
	t.backend.Tape().Clear()
	t.step++

	return float64(loss.Item()), nil
}

// Evaluate scores the model on full images. Batch statistics are frozen and
// nothing is recorded on the tape.
func (t *Trainer) Evaluate(samples []*drive.Sample) (metrics.Result, error) {
	t.model.SetTraining(false)
	defer t.model.SetTraining(true)

	var results []metrics.Result
	for _, s := range samples {
		probs, err := t.predictSample(s)
		if err != nil {
			return metrics.Result{}, err
		}
		r, err := metrics.Evaluate(probs, s.Label, s.FOV, t.cfg.Train.Threshold)
		if err != nil {
			return metrics.Result{}, fmt.Errorf("sample %s: %w", s.Name, err)
		}
		results = append(results, r)
	}
	return metrics.Average(results), nil
}

// Predict writes a probability map PNG per sample into outDir.
func (t *Trainer) Predict(samples []*drive.Sample, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create predictions dir: %w", err)
	}
	t.model.SetTraining(false)
	defer t.model.SetTraining(true)

	for _, s := range samples {
		probs, err := t.predictSample(s)
		if err != nil {
			return err
		}
		path := filepath.Join(outDir, s.Name+"_prob.png")
		if err := imageio.EncodeGrayPNG(path, probs, s.Height, s.Width); err != nil {
			return fmt.Errorf("sample %s: %w", s.Name, err)
		}
		log.Printf("wrote %s", path)
	}
	return nil
}

// predictSample runs full-image inference, returning vessel probabilities
// at the sample's original resolution.
func (t *Trainer) predictSample(s *drive.Sample) ([]float32, error) {
	padded := drive.PadToMultiple(s, sizeMultiple)
	images, _, err := drive.Batch([]*drive.Sample{padded}, t.backend)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", s.Name, err)
	}

	logits := t.model.Forward(images)
	probs := logits.Sigmoid().Data()

	// Crop the padding back off.
	out := make([]float32, s.Height*s.Width)
	for y := 0; y < s.Height; y++ {
		copy(out[y*s.Width:(y+1)*s.Width], probs[y*padded.Width:y*padded.Width+s.Width])
	}
	return out, nil
}

// SaveCheckpoint writes parameters, running statistics and training
// progress to path.
func (t *Trainer) SaveCheckpoint(path string, epoch int) error {
	state := t.model.State()
	named := make([]serialization.NamedTensor, len(state))
	for i, p := range state {
		named[i] = serialization.NamedTensor{Name: p.Name, Tensor: p.Raw()}
	}
	header := serialization.Header{
		Epoch:        epoch,
		Step:         t.step,
		BestDice:     t.bestDice,
		LearningRate: t.opt.LR(),
	}
	if err := serialization.Save(path, header, named); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores model weights and training progress from path.
// Every tensor in the model must be present with a matching shape.
func (t *Trainer) LoadCheckpoint(path string) error {
	ckpt, err := serialization.Load(path)
	if err != nil {
		return err
	}
	for _, p := range t.model.State() {
		saved, ok := ckpt.Tensors[p.Name]
		if !ok {
			return fmt.Errorf("checkpoint is missing tensor %s", p.Name)
		}
		if !saved.Shape().Equal(p.Tensor.Shape()) {
			return fmt.Errorf("tensor %s: checkpoint shape %v does not match model shape %v",
				p.Name, saved.Shape(), p.Tensor.Shape())
		}
		copy(p.Raw().Data(), saved.Data())
	}
	t.startEpoch = ckpt.Header.Epoch
	t.step = ckpt.Header.Step
	t.bestDice = ckpt.Header.BestDice
	t.opt.SetLR(ckpt.Header.LearningRate)
	if adam, ok := t.opt.(*optim.Adam); ok {
		adam.SetStepCount(ckpt.Header.Step)
	}
	log.Printf("loaded checkpoint %s (epoch %d, step %d)", path, ckpt.Header.Epoch, ckpt.Header.Step)
	return nil
}
