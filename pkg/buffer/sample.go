package buffer

// Batch is a set of transitions drawn from the buffer. Row k of every slice
// belongs to the same transition, the one stored at Indices[k].
type Batch struct {
	Indices    []int
	States     [][]float64
	Actions    [][]float64
	Rewards    []float64
	NextStates [][]float64
	Dones      []float64
}

func (b *Batch) Size() int {
	return len(b.Indices)
}

type SARSABatch struct {
	Batch
	NextActions [][]float64
}

// Sample draws batchSize slots uniformly at random, with replacement, from the
// written part of the buffer. Duplicates within a batch are possible.
func (b *ReplayBuffer) Sample(batchSize int) (*Batch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	indices, err := b.draw(batchSize)
	if err != nil {
		return nil, err
	}
	return b.gather(indices), nil
}

// SampleSARSA is Sample including the stored next actions.
func (b *ReplayBuffer) SampleSARSA(batchSize int) (*SARSABatch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	indices, err := b.draw(batchSize)
	if err != nil {
		return nil, err
	}
	batch := &SARSABatch{
		Batch:       *b.gather(indices),
		NextActions: make([][]float64, len(indices)),
	}
	for k, i := range indices {
		batch.NextActions[k] = b.actionRow(b.nextActions, i)
	}
	return batch, nil
}

func (b *ReplayBuffer) draw(batchSize int) ([]int, error) {
	if batchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	size := b.size()
	if size == 0 {
		return nil, ErrBufferEmpty
	}
	indices := make([]int, batchSize)
	for k := range indices {
		indices[k] = b.rng.Intn(size)
	}
	return indices, nil
}

func (b *ReplayBuffer) gather(indices []int) *Batch {
	batch := &Batch{
		Indices:    indices,
		States:     make([][]float64, len(indices)),
		Actions:    make([][]float64, len(indices)),
		Rewards:    make([]float64, len(indices)),
		NextStates: make([][]float64, len(indices)),
		Dones:      make([]float64, len(indices)),
	}
	for k, i := range indices {
		batch.States[k] = b.stateRow(b.states, i)
		batch.Actions[k] = b.actionRow(b.actions, i)
		batch.Rewards[k] = b.rewards[i]
		batch.NextStates[k] = b.stateRow(b.nextStates, i)
		batch.Dones[k] = b.dones[i]
	}
	return batch
}
