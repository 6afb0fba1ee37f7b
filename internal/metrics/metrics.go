// Package metrics scores vessel probability maps against manual
// annotations. All pixel counts are restricted to the field of view, since
// the black region outside the retina is trivially classified.
package metrics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Result holds the segmentation scores of one evaluation.
type Result struct {
	Accuracy    float64
	Dice        float64
	IoU         float64
	Sensitivity float64
	Specificity float64
	AUC         float64

	// Pixel counts inside the field of view.
	TP, FP, TN, FN int
}

// String formats the result for log lines.
func (r Result) String() string {
	return fmt.Sprintf("acc=%.4f dice=%.4f iou=%.4f sens=%.4f spec=%.4f auc=%.4f",
		r.Accuracy, r.Dice, r.IoU, r.Sensitivity, r.Specificity, r.AUC)
}

// Evaluate scores a probability map against a 0/1 annotation, counting only
// pixels where fov > 0.5. Pixels with probability >= threshold are
// predicted as vessel.
func Evaluate(probs, labels, fov []float32, threshold float64) (Result, error) {
	if len(probs) != len(labels) || len(probs) != len(fov) {
		return Result{}, fmt.Errorf("plane sizes differ: probs=%d labels=%d fov=%d",
			len(probs), len(labels), len(fov))
	}

	var r Result
	var scores []float64
	var classes []bool
	for i := range probs {
		if fov[i] <= 0.5 {
			continue
		}
		positive := labels[i] > 0.5
		predicted := float64(probs[i]) >= threshold
		switch {
		case positive && predicted:
			r.TP++
		case positive && !predicted:
			r.FN++
		case !positive && predicted:
			r.FP++
		default:
			r.TN++
		}
		scores = append(scores, float64(probs[i]))
		classes = append(classes, positive)
	}
	if len(scores) == 0 {
		return Result{}, fmt.Errorf("field of view is empty")
	}

	total := r.TP + r.FP + r.TN + r.FN
	r.Accuracy = float64(r.TP+r.TN) / float64(total)
	r.Dice = safeDiv(2*float64(r.TP), 2*float64(r.TP)+float64(r.FP)+float64(r.FN))
	r.IoU = safeDiv(float64(r.TP), float64(r.TP)+float64(r.FP)+float64(r.FN))
	r.Sensitivity = safeDiv(float64(r.TP), float64(r.TP)+float64(r.FN))
	r.Specificity = safeDiv(float64(r.TN), float64(r.TN)+float64(r.FP))
	r.AUC = rocAUC(scores, classes)
	return r, nil
}

// Average returns the field-wise mean of several results. Pixel counts are
// summed.
func Average(results []Result) Result {
	if len(results) == 0 {
		return Result{}
	}
	var avg Result
	for _, r := range results {
		avg.Accuracy += r.Accuracy
		avg.Dice += r.Dice
		avg.IoU += r.IoU
		avg.Sensitivity += r.Sensitivity
		avg.Specificity += r.Specificity
		avg.AUC += r.AUC
		avg.TP += r.TP
		avg.FP += r.FP
		avg.TN += r.TN
		avg.FN += r.FN
	}
	n := float64(len(results))
	avg.Accuracy /= n
	avg.Dice /= n
	avg.IoU /= n
	avg.Sensitivity /= n
	avg.Specificity /= n
	avg.AUC /= n
	return avg
}

// rocAUC integrates the ROC curve over all thresholds.
func rocAUC(scores []float64, classes []bool) float64 {
	// stat.ROC wants scores ascending with classes aligned.
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	y := make([]float64, len(scores))
	cls := make([]bool, len(classes))
	for i, j := range idx {
		y[i] = scores[j]
		cls[i] = classes[j]
	}

	tpr, fpr, _ := stat.ROC(nil, y, cls, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
