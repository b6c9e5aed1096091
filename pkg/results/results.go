package results

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
)

// Timestep is what the aggregator keeps per step: the state reached, the action
// that led there and the reward received.
type Timestep struct {
	State  []float64
	Action []float64
	Reward float64
}

// Clone returns a deep copy of t.
func (t Timestep) Clone() Timestep {
	return Timestep{
		State:  append([]float64(nil), t.State...),
		Action: append([]float64(nil), t.Action...),
		Reward: t.Reward,
	}
}

func (t Timestep) String() string {
	return fmt.Sprintf("<s: %v, a: %v, r: %v>", t.State, t.Action, t.Reward)
}

// Summary is the outcome of one completed episode.
type Summary struct {
	Episode    int     `json:"episode"`
	Cumulative float64 `json:"cumulative"`
	Mean       float64 `json:"mean"`
	Steps      int     `json:"steps"`
}

func (s Summary) String() string {
	return fmt.Sprintf("(%v, %v, %d)", s.Cumulative, s.Mean, s.Steps)
}

// Results aggregates a stream of timesteps tagged with episode indices. An
// episode is finalized when the first timestep of a different episode arrives.
type Results struct {
	mu sync.RWMutex

	agentName string
	runID     string
	startedAt time.Time

	current        int
	archiveCurrent bool
	timesteps      []Timestep
	summaries      []Summary
	detailed       map[int][]Timestep
}

type Option func(*Results)

func WithRunID(id string) Option {
	return func(r *Results) {
		r.runID = id
	}
}

func New(agentName string, startedAt time.Time, opts ...Option) *Results {
	r := &Results{
		agentName: agentName,
		startedAt: startedAt,
		timesteps: make([]Timestep, 0),
		summaries: make([]Summary, 0),
		detailed:  make(map[int][]Timestep),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.New().String()
	}
	return r
}

// Record adds ts to the episode in progress. When episode differs from the
// episode in progress, that episode is finalized instead: its summary is
// appended and returned with ok set, and its timesteps are archived if archival
// was requested while it was running. The boundary timestep itself is not kept.
//
// An episode that finishes without any timesteps is summarized with zero mean.
func (r *Results) Record(episode int, ts Timestep, archive bool) (Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if episode == r.current {
		r.timesteps = append(r.timesteps, ts)
		r.archiveCurrent = r.archiveCurrent || archive
		return Summary{}, false
	}

	if r.archiveCurrent {
		stored := make([]Timestep, len(r.timesteps))
		for i, t := range r.timesteps {
			stored[i] = t.Clone()
		}
		r.detailed[r.current] = stored
	}

	summary := summarize(r.current, r.timesteps)
	r.summaries = append(r.summaries, summary)

	r.timesteps = make([]Timestep, 0)
	r.current = episode
	r.archiveCurrent = archive
	return summary, true
}

func summarize(episode int, timesteps []Timestep) Summary {
	if len(timesteps) == 0 {
		return Summary{Episode: episode}
	}
	rewards := make([]float64, len(timesteps))
	for i, t := range timesteps {
		rewards[i] = t.Reward
	}
	cumulative := floats.Sum(rewards)
	return Summary{
		Episode:    episode,
		Cumulative: cumulative,
		Mean:       cumulative / float64(len(rewards)),
		Steps:      len(rewards),
	}
}

// Summaries returns the finalized episodes in completion order.
func (r *Results) Summaries() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Summary, len(r.summaries))
	copy(out, r.summaries)
	return out
}

// Detailed returns the archived timesteps of episode, if it was archived.
func (r *Results) Detailed(episode int) ([]Timestep, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ts, ok := r.detailed[episode]
	return ts, ok
}

// ArchivedEpisodes lists the episode indices with archived timesteps.
func (r *Results) ArchivedEpisodes() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	episodes := make([]int, 0, len(r.detailed))
	for ep := range r.detailed {
		episodes = append(episodes, ep)
	}
	return episodes
}

func (r *Results) Current() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.current
}

// Pending returns the number of timesteps recorded for the episode in progress.
func (r *Results) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.timesteps)
}

func (r *Results) AgentName() string {
	return r.agentName
}

func (r *Results) RunID() string {
	return r.runID
}

func (r *Results) StartedAt() time.Time {
	return r.startedAt
}

func (r *Results) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parts := make([]string, len(r.summaries))
	for i, s := range r.summaries {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
