package utility

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MinMaxScale maps values onto [0, 1]. Constant input scales to all zeros.
func MinMaxScale(values []float64) []float64 {
	result := make([]float64, len(values))
	copy(result, values)
	if len(result) == 0 {
		return result
	}

	lo := floats.Min(result)
	hi := floats.Max(result)

	if hi != lo {
		floats.AddConst(-lo, result)
		floats.Scale(1.0/(hi-lo), result)
	} else {
		floats.Scale(0, result)
	}

	return result
}

// Matrix lays the voter vectors of inst out as rows, with column j holding
// alternative j+1.
func Matrix(inst Instance, m int) *mat.Dense {
	rows := inst.Voters()
	if rows == 0 || m <= 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(rows, m, nil)
	r := 0
	for _, bu := range inst {
		for _, v := range bu.Vectors {
			for a, u := range v {
				if int(a) >= 1 && int(a) <= m {
					out.Set(r, int(a)-1, u)
				}
			}
			r++
		}
	}
	return out
}

// MinMaxScaleOnMatrix scales every row of values independently.
func MinMaxScaleOnMatrix(values *mat.Dense) *mat.Dense {
	if values.IsEmpty() {
		return &mat.Dense{}
	}
	rows, cols := values.Dims()
	scaled := mat.NewDense(rows, cols, nil)
	for rowIdx := range rows {
		scaled.SetRow(rowIdx, MinMaxScale(mat.Row(nil, rowIdx, values)))
	}
	return scaled
}

// MinMaxNormalize rescales each vector so its lowest-ranked alternative gets
// 0 and its top-ranked alternative gets 1. The input is not modified.
func MinMaxNormalize(inst Instance) Instance {
	m := 0
	for _, bu := range inst {
		for _, v := range bu.Vectors {
			for a := range v {
				m = max(m, int(a))
			}
		}
	}
	scaled := MinMaxScaleOnMatrix(Matrix(inst, m))

	out := make(Instance, len(inst))
	r := 0
	for i, bu := range inst {
		vectors := make([]Vector, len(bu.Vectors))
		for j, v := range bu.Vectors {
			row := make(Vector, len(v))
			for a := range v {
				row[a] = scaled.At(r, int(a)-1)
			}
			vectors[j] = row
			r++
		}
		out[i] = BallotUtilities{Key: bu.Key, Ballot: bu.Ballot, Vectors: vectors}
	}
	return out
}
