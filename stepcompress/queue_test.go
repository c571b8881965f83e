package stepcompress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStepQueueAppendAndAdvance(t *testing.T) {
	q := newStepQueue()
	require.True(t, q.Empty())

	for i := 0; i < 5; i++ {
		q.Append(uint64(i * 100))
	}
	require.Equal(t, 5, q.Len())
	require.Equal(t, uint64(0), q.At(0))
	require.Equal(t, uint64(400), q.At(4))

	q.Advance(3)
	require.Equal(t, 2, q.Len())
	require.Equal(t, uint64(300), q.At(0))

	q.Advance(2)
	require.True(t, q.Empty())
}

func TestStepQueueGrowsPastStartSize(t *testing.T) {
	q := newStepQueue()
	for i := 0; i < queueStartSize+10; i++ {
		q.Append(uint64(i))
	}
	require.Equal(t, queueStartSize+10, q.Len())
	require.Equal(t, uint64(queueStartSize+9), q.At(q.Len()-1))
}

func TestStepQueueShufflesInsteadOfReallocating(t *testing.T) {
	q := newStepQueue()
	for i := 0; i < queueStartSize; i++ {
		q.Append(uint64(i))
	}
	q.Advance(8)
	capBefore := len(q.buf)
	for i := 0; i < 8; i++ {
		q.Append(uint64(100000 + i))
	}
	require.Equal(t, capBefore, len(q.buf))
	require.Equal(t, queueStartSize, q.Len())
}
