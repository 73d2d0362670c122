package errors

import (
	"strings"
	"testing"
)

func TestDataError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "with column",
			err:  NewColumnDataError("RobustScaler.Fit", "BRCA1", "zero variance"),
			want: "histoml: RobustScaler.Fit: column BRCA1: zero variance",
		},
		{
			name: "without column",
			err:  NewDataError("StratifiedSplitter.Split", "validation partition has no minority samples"),
			want: "histoml: StratifiedSplitter.Split: validation partition has no minority samples",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			var de *DataError
			if !As(tt.err, &de) {
				t.Errorf("As() failed to unwrap DataError from %v", tt.err)
			}
		})
	}
}

func TestConvergenceError(t *testing.T) {
	err := NewConvergenceError("IRLS", 25, "deviance oscillating")
	if !IsConvergenceError(err) {
		t.Fatalf("IsConvergenceError() = false for %v", err)
	}
	if !strings.Contains(err.Error(), "after 25 iterations") {
		t.Errorf("Error() = %q, want iteration count in message", err.Error())
	}

	wrapped := Wrap(err, "kNN sweep candidate k=3")
	if !IsConvergenceError(wrapped) {
		t.Errorf("IsConvergenceError() = false for wrapped error %v", wrapped)
	}

	if IsConvergenceError(NewDataError("op", "reason")) {
		t.Error("IsConvergenceError() = true for a DataError")
	}
}

func TestEvaluationError(t *testing.T) {
	err := NewEvaluationError("ConfusionMatrix", "length mismatch: 10 vs 12")
	var ee *EvaluationError
	if !As(err, &ee) {
		t.Fatalf("As() failed to unwrap EvaluationError from %v", err)
	}
	if ee.Op != "ConfusionMatrix" {
		t.Errorf("Op = %q, want %q", ee.Op, "ConfusionMatrix")
	}
}

func TestNotFittedError(t *testing.T) {
	err := NewNotFittedError("SVC", "Predict")
	want := "histoml: SVC: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
