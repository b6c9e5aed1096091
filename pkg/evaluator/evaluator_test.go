package evaluator

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/dojo/pkg/results"
)

var runs = []results.Summary{
	{Episode: 0, Cumulative: 10, Mean: 1, Steps: 10},
	{Episode: 1, Cumulative: 30, Mean: 1, Steps: 30},
	{Episode: 2, Cumulative: 20, Mean: 1, Steps: 20},
}

func TestEvaluate(t *testing.T) {
	r := Evaluate(runs)
	assert.Equal(t, 3, r.Episodes)
	assert.Equal(t, 60.0, r.TotalReward)
	assert.InDelta(t, 20.0, r.MeanReturn, 1e-12)
	assert.InDelta(t, math.Sqrt(200.0/3.0), r.StdReturn, 1e-12)
	assert.Equal(t, 10.0, r.MinReturn)
	assert.Equal(t, 30.0, r.MaxReturn)
	assert.Equal(t, 20.0, r.Spread)
	assert.Equal(t, 1, r.BestEpisode)
	assert.InDelta(t, 20.0, r.MeanSteps, 1e-12)
}

func TestEvaluateEmpty(t *testing.T) {
	r := Evaluate(nil)
	assert.Equal(t, 0, r.Episodes)
	assert.Equal(t, -1, r.BestEpisode)
}

func TestMovingAverage(t *testing.T) {
	assert.Equal(t, []float64{10, 20, 25}, MovingAverage(runs, 2))
	assert.Equal(t, []float64{10, 30, 20}, MovingAverage(runs, 0))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, runs[:2]))
	want := "Episode,CumulativeReward,MeanReward,Steps\n0,10,1,10\n1,30,1,30\n"
	assert.Equal(t, want, buf.String())
}

func TestRender(t *testing.T) {
	out := Evaluate(runs).Render("linear_q")
	assert.Contains(t, out, "linear_q")
	assert.Contains(t, out, "20.00")
	assert.Contains(t, out, "Best episode")
}
