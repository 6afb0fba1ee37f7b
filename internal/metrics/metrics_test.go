package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselseg-ml/vesselseg/internal/metrics"
)

func TestEvaluatePerfectPrediction(t *testing.T) {
	labels := []float32{1, 0, 1, 0}
	probs := []float32{0.9, 0.1, 0.8, 0.2}
	fov := []float32{1, 1, 1, 1}

	r, err := metrics.Evaluate(probs, labels, fov, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 2, r.TP)
	assert.Equal(t, 2, r.TN)
	assert.InDelta(t, 1.0, r.Accuracy, 1e-9)
	assert.InDelta(t, 1.0, r.Dice, 1e-9)
	assert.InDelta(t, 1.0, r.IoU, 1e-9)
	assert.InDelta(t, 1.0, r.Sensitivity, 1e-9)
	assert.InDelta(t, 1.0, r.Specificity, 1e-9)
	assert.InDelta(t, 1.0, r.AUC, 1e-9)
}

func TestEvaluateCountsConfusion(t *testing.T) {
	labels := []float32{1, 1, 0, 0}
	probs := []float32{0.9, 0.2, 0.7, 0.1}
	fov := []float32{1, 1, 1, 1}

	r, err := metrics.Evaluate(probs, labels, fov, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, r.TP)
	assert.Equal(t, 1, r.FN)
	assert.Equal(t, 1, r.FP)
	assert.Equal(t, 1, r.TN)
	assert.InDelta(t, 0.5, r.Accuracy, 1e-9)
	// Dice = 2*1 / (2*1 + 1 + 1) = 0.5.
	assert.InDelta(t, 0.5, r.Dice, 1e-9)
	// IoU = 1 / 3.
	assert.InDelta(t, 1.0/3.0, r.IoU, 1e-9)
}

func TestEvaluateIgnoresOutsideFOV(t *testing.T) {
	labels := []float32{1, 1}
	probs := []float32{0.9, 0.0}
	fov := []float32{1, 0}

	r, err := metrics.Evaluate(probs, labels, fov, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, r.TP+r.FP+r.TN+r.FN)
	assert.InDelta(t, 1.0, r.Accuracy, 1e-9)
}

func TestEvaluateEmptyFOV(t *testing.T) {
	_, err := metrics.Evaluate([]float32{0.5}, []float32{1}, []float32{0}, 0.5)
	assert.Error(t, err)
}

func TestEvaluateSizeMismatch(t *testing.T) {
	_, err := metrics.Evaluate([]float32{0.5}, []float32{1, 0}, []float32{1, 1}, 0.5)
	assert.Error(t, err)
}

func TestAUCRandomScoresNearHalf(t *testing.T) {
	// Alternating labels with symmetric scores give AUC 0.5.
	labels := []float32{1, 0, 1, 0}
	probs := []float32{0.6, 0.6, 0.4, 0.4}
	fov := []float32{1, 1, 1, 1}

	r, err := metrics.Evaluate(probs, labels, fov, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.AUC, 1e-9)
}

func TestAverage(t *testing.T) {
	a := metrics.Result{Accuracy: 0.8, Dice: 0.6, TP: 10}
	b := metrics.Result{Accuracy: 0.9, Dice: 0.8, TP: 20}

	avg := metrics.Average([]metrics.Result{a, b})
	assert.InDelta(t, 0.85, avg.Accuracy, 1e-9)
	assert.InDelta(t, 0.7, avg.Dice, 1e-9)
	assert.Equal(t, 30, avg.TP)

	assert.Equal(t, metrics.Result{}, metrics.Average(nil))
}

func TestMeter(t *testing.T) {
	m := metrics.NewMeter()
	m.Add(1.0, 4)
	m.Add(3.0, 4)

	assert.Equal(t, 2, m.Batches())
	assert.InDelta(t, 2.0, m.AvgLoss(), 1e-9)
	assert.Greater(t, m.Throughput(), 0.0)

	m.Reset()
	assert.Equal(t, 0, m.Batches())
	assert.InDelta(t, 0.0, m.AvgLoss(), 1e-9)
}
