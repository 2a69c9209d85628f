package domain

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Score es la métrica de precisión de un run (MAPE, >= 0, menor es mejor).
type Score float64

// Evaluation agrupa las métricas de un forecast contra su ground truth.
// Solo MAPE participa en el ranking; RMSE y MAE son informativas.
type Evaluation struct {
	MAPE      Score
	RMSE      float64
	MAE       float64
	AbsErrors []float64 // |predicho - real| por paso
}

// Align comprueba correspondencia posicional estricta entre forecast y truth:
// mismo largo (> 0) y mismos timestamps en el mismo orden. No re-alinea por tiempo.
func Align(path ForecastPath, truth Series) error {
	if path.Len() != truth.Len() || path.Len() == 0 {
		return &AlignmentError{ForecastLen: path.Len(), TruthLen: truth.Len(), Index: -1}
	}
	for i, pt := range path.Points {
		if !pt.Time.Equal(truth.At(i).Time) {
			return &AlignmentError{
				ForecastLen: path.Len(),
				TruthLen:    truth.Len(),
				Index:       i,
				Forecast:    pt.Time,
				Truth:       truth.At(i).Time,
			}
		}
	}
	return nil
}

// MAPE calcula mean(|p - a| / |a|) sobre los pares alineados.
//
// Igual que sklearn, el denominador es max(|a|, epsilon) para que un real de 0
// no produzca Inf.
func MAPE(path ForecastPath, truth Series, target Field) (Score, error) {
	actual, err := alignedActuals(path, truth, target)
	if err != nil {
		return 0, err
	}
	pct := make([]float64, len(actual))
	for i, a := range actual {
		pct[i] = math.Abs(path.Points[i].Value-a) / math.Max(math.Abs(a), epsilon)
	}
	return Score(stat.Mean(pct, nil)), nil
}

// Evaluate calcula MAPE, RMSE, MAE y la curva de error absoluto.
func Evaluate(path ForecastPath, truth Series, target Field) (Evaluation, error) {
	actual, err := alignedActuals(path, truth, target)
	if err != nil {
		return Evaluation{}, err
	}

	pred := path.Values()
	abs := make([]float64, len(actual))
	sq := make([]float64, len(actual))
	pct := make([]float64, len(actual))
	for i, a := range actual {
		d := pred[i] - a
		abs[i] = math.Abs(d)
		sq[i] = d * d
		pct[i] = abs[i] / math.Max(math.Abs(a), epsilon)
	}

	return Evaluation{
		MAPE:      Score(stat.Mean(pct, nil)),
		RMSE:      math.Sqrt(floats.Sum(sq) / float64(len(sq))),
		MAE:       stat.Mean(abs, nil),
		AbsErrors: abs,
	}, nil
}

// epsilon es el float64 eps de numpy, usado por sklearn en el denominador del MAPE.
const epsilon = 2.220446049250313e-16

func alignedActuals(path ForecastPath, truth Series, target Field) ([]float64, error) {
	if err := Align(path, truth); err != nil {
		return nil, err
	}
	return truth.Column(target)
}
