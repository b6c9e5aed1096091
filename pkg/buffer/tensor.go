package buffer

import (
	"gonum.org/v1/gonum/mat"
)

// Device places sampled matrices where a learner wants to compute on them.
type Device interface {
	Name() string
	Place(m mat.Matrix) mat.Matrix
}

type cpu struct{}

func (cpu) Name() string                  { return "cpu" }
func (cpu) Place(m mat.Matrix) mat.Matrix { return m }

// CPU keeps matrices in host memory.
var CPU Device = cpu{}

// DenseBatch is a sampled batch in matrix form: one row per transition.
type DenseBatch struct {
	Device     Device
	States     mat.Matrix
	Actions    mat.Matrix
	Rewards    mat.Matrix
	NextStates mat.Matrix
	Dones      mat.Matrix
}

// SampleDense samples like Sample and converts every array into a gonum matrix
// placed on dev. A nil dev means CPU.
func (b *ReplayBuffer) SampleDense(batchSize int, dev Device) (*DenseBatch, error) {
	batch, err := b.Sample(batchSize)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		dev = CPU
	}

	return &DenseBatch{
		Device:     dev,
		States:     dev.Place(rows(batch.States, b.stateSize)),
		Actions:    dev.Place(rows(batch.Actions, b.actionWidth)),
		Rewards:    dev.Place(mat.NewVecDense(len(batch.Rewards), batch.Rewards)),
		NextStates: dev.Place(rows(batch.NextStates, b.stateSize)),
		Dones:      dev.Place(mat.NewVecDense(len(batch.Dones), batch.Dones)),
	}, nil
}

func rows(data [][]float64, width int) *mat.Dense {
	flat := make([]float64, 0, len(data)*width)
	for _, r := range data {
		flat = append(flat, r...)
	}
	return mat.NewDense(len(data), width, flat)
}
