package metrics

import "time"

// Meter accumulates loss and throughput over a stretch of training, such as
// one epoch.
type Meter struct {
	start   time.Time
	lossSum float64
	batches int
	samples int
}

// NewMeter starts a fresh meter.
func NewMeter() *Meter {
	return &Meter{start: time.Now()}
}

// Add records one batch.
func (m *Meter) Add(loss float64, batchSize int) {
	m.lossSum += loss
	m.batches++
	m.samples += batchSize
}

// Batches returns the number of batches recorded.
func (m *Meter) Batches() int { return m.batches }

// AvgLoss returns the mean loss per batch.
func (m *Meter) AvgLoss() float64 {
	if m.batches == 0 {
		return 0
	}
	return m.lossSum / float64(m.batches)
}

// Throughput returns samples processed per second.
func (m *Meter) Throughput() float64 {
	elapsed := time.Since(m.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.samples) / elapsed
}

// Reset clears the meter and restarts its clock.
func (m *Meter) Reset() {
	m.start = time.Now()
	m.lossSum = 0
	m.batches = 0
	m.samples = 0
}
