package buffer

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	ErrBufferEmpty      = errors.New("buffer is empty")
	ErrInvalidBatchSize = errors.New("batch size must be greater than zero")
	ErrShapeMismatch    = errors.New("transition shape does not match buffer")
)

// continuousActionWidth is the width of an action row when the action space is continuous.
const continuousActionWidth = 2

// DoneConvention selects what ends up in the done slot of a transition.
// Learners multiply the stored value into their bootstrap targets, so they must
// agree with the buffer on which convention is active.
type DoneConvention int

const (
	// StoreDone stores 1 for a terminal transition and 0 otherwise.
	StoreDone DoneConvention = iota
	// InvertDone stores 1-done, i.e. a "not done" mask.
	InvertDone
)

func (c DoneConvention) String() string {
	switch c {
	case StoreDone:
		return "store"
	case InvertDone:
		return "invert"
	default:
		return "unknown"
	}
}

// Value returns the number written into the done slot for done.
func (c DoneConvention) Value(done bool) float64 {
	d := 0.0
	if done {
		d = 1.0
	}
	if c == InvertDone {
		return 1 - d
	}
	return d
}

// Mask converts a stored done value into a bootstrap mask: 1 when the next state
// should be bootstrapped from, 0 when the transition was terminal.
func (c DoneConvention) Mask(stored float64) float64 {
	if c == InvertDone {
		return stored
	}
	return 1 - stored
}

// Transition is one environment step as stored for learning.
type Transition struct {
	State     []float64
	Action    []float64
	Reward    float64
	NextState []float64
	Done      bool
	// DoneValue is the raw value held by the done slot. Only set by At.
	DoneValue float64
}

// SARSATransition additionally carries the action taken in NextState.
type SARSATransition struct {
	Transition
	NextAction []float64
}

// ReplayBuffer is a fixed-capacity circular store of transitions. Rows live in
// preallocated flat arrays and the write cursor is cnt mod capacity; once the
// buffer is full the oldest row is silently overwritten.
type ReplayBuffer struct {
	mu sync.Mutex

	capacity    int
	stateShape  []int
	stateSize   int
	actionWidth int
	continuous  bool

	states      []float64
	nextStates  []float64
	actions     []float64
	nextActions []float64
	rewards     []float64
	dones       []float64

	cnt int
	rng *rand.Rand
}

type Option func(*ReplayBuffer)

// WithRand sets the random source used for sampling.
func WithRand(rng *rand.Rand) Option {
	return func(b *ReplayBuffer) {
		b.rng = rng
	}
}

// WithSeed seeds a private random source used for sampling.
func WithSeed(seed int64) Option {
	return func(b *ReplayBuffer) {
		b.rng = rand.New(rand.NewSource(seed))
	}
}

// NewReplayBuffer allocates a buffer holding capacity transitions whose states have
// the given shape. Continuous action spaces store a vector of width 2 per action,
// discrete ones a single scalar.
func NewReplayBuffer(capacity int, stateShape []int, continuous bool, opts ...Option) (*ReplayBuffer, error) {
	if capacity <= 0 {
		return nil, errors.New("capacity must be greater than zero")
	}
	if len(stateShape) == 0 {
		return nil, errors.New("state shape must have at least one dimension")
	}
	stateSize := 1
	for _, d := range stateShape {
		if d <= 0 {
			return nil, fmt.Errorf("invalid state dimension %d in shape %v", d, stateShape)
		}
		stateSize *= d
	}

	actionWidth := 1
	if continuous {
		actionWidth = continuousActionWidth
	}

	b := &ReplayBuffer{
		capacity:    capacity,
		stateShape:  append([]int(nil), stateShape...),
		stateSize:   stateSize,
		actionWidth: actionWidth,
		continuous:  continuous,
		states:      make([]float64, capacity*stateSize),
		nextStates:  make([]float64, capacity*stateSize),
		actions:     make([]float64, capacity*actionWidth),
		nextActions: make([]float64, capacity*actionWidth),
		rewards:     make([]float64, capacity),
		dones:       make([]float64, capacity),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return b, nil
}

// Add writes t into slot cnt mod capacity and advances the write counter.
func (b *ReplayBuffer) Add(t Transition, conv DoneConvention) error {
	if err := b.checkShape(t); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.write(t, conv)
	b.cnt++
	return nil
}

// AddSARSA is Add for transitions that also carry the next action. States must
// already be flat vectors of StateSize elements.
func (b *ReplayBuffer) AddSARSA(t SARSATransition, conv DoneConvention) error {
	if err := b.checkShape(t.Transition); err != nil {
		return err
	}
	if len(t.NextAction) != b.actionWidth {
		return fmt.Errorf("%w: next action has %d values, want %d", ErrShapeMismatch, len(t.NextAction), b.actionWidth)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	index := b.write(t.Transition, conv)
	copy(b.nextActions[index*b.actionWidth:(index+1)*b.actionWidth], t.NextAction)
	b.cnt++
	return nil
}

func (b *ReplayBuffer) write(t Transition, conv DoneConvention) int {
	index := b.cnt % b.capacity
	copy(b.states[index*b.stateSize:(index+1)*b.stateSize], t.State)
	copy(b.nextStates[index*b.stateSize:(index+1)*b.stateSize], t.NextState)
	copy(b.actions[index*b.actionWidth:(index+1)*b.actionWidth], t.Action)
	b.rewards[index] = t.Reward
	b.dones[index] = conv.Value(t.Done)
	return index
}

func (b *ReplayBuffer) checkShape(t Transition) error {
	if len(t.State) != b.stateSize {
		return fmt.Errorf("%w: state has %d values, want %d", ErrShapeMismatch, len(t.State), b.stateSize)
	}
	if len(t.NextState) != b.stateSize {
		return fmt.Errorf("%w: next state has %d values, want %d", ErrShapeMismatch, len(t.NextState), b.stateSize)
	}
	if len(t.Action) != b.actionWidth {
		return fmt.Errorf("%w: action has %d values, want %d", ErrShapeMismatch, len(t.Action), b.actionWidth)
	}
	return nil
}

// At returns a copy of the transition held by slot i.
func (b *ReplayBuffer) At(i int) (Transition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i < 0 || i >= b.capacity {
		return Transition{}, fmt.Errorf("slot %d out of range [0, %d)", i, b.capacity)
	}
	return b.row(i), nil
}

func (b *ReplayBuffer) row(i int) Transition {
	return Transition{
		State:     b.stateRow(b.states, i),
		Action:    b.actionRow(b.actions, i),
		Reward:    b.rewards[i],
		NextState: b.stateRow(b.nextStates, i),
		Done:      b.dones[i] != 0,
		DoneValue: b.dones[i],
	}
}

func (b *ReplayBuffer) stateRow(src []float64, i int) []float64 {
	return append([]float64(nil), src[i*b.stateSize:(i+1)*b.stateSize]...)
}

func (b *ReplayBuffer) actionRow(src []float64, i int) []float64 {
	return append([]float64(nil), src[i*b.actionWidth:(i+1)*b.actionWidth]...)
}

// Len returns the number of sampleable slots, min(Count, Capacity).
func (b *ReplayBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.size()
}

func (b *ReplayBuffer) size() int {
	return min(b.cnt, b.capacity)
}

// Count returns the total number of writes since creation.
func (b *ReplayBuffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.cnt
}

func (b *ReplayBuffer) Capacity() int {
	return b.capacity
}

func (b *ReplayBuffer) StateShape() []int {
	return append([]int(nil), b.stateShape...)
}

func (b *ReplayBuffer) StateSize() int {
	return b.stateSize
}

func (b *ReplayBuffer) ActionWidth() int {
	return b.actionWidth
}

func (b *ReplayBuffer) Continuous() bool {
	return b.continuous
}

func (b *ReplayBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return fmt.Sprintf("ReplayBuffer{capacity: %d, count: %d, states: %v, next_states: %v, actions: %v, rewards: %v, dones: %v}",
		b.capacity, b.cnt, b.states, b.nextStates, b.actions, b.rewards, b.dones)
}
