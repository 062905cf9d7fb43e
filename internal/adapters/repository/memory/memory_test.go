package memory_test

import (
	"testing"

	"github.com/arxon-dev/topicperf/internal/adapters/repository"
	"github.com/arxon-dev/topicperf/internal/adapters/repository/memory"
	"github.com/arxon-dev/topicperf/internal/adapters/repository/repositorytest"
)

func TestMemoryStore(t *testing.T) {
	repositorytest.Run(t, func(_ *testing.T, clock repository.Clock) repository.Store {
		return memory.New(memory.WithClock(clock), memory.WithShardCount(4))
	})
}
