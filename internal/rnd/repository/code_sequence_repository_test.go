package repository

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solefab/rndtrack/internal/rnd/entity"
	"github.com/solefab/rndtrack/internal/rnd/testutil"
)

const testPrefix = "RND/25-26/03/"

func TestCodeSequenceStartsAfterBaseline(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seq := NewCodeSequenceRepository(db, zap.NewNop())
	ctx := context.Background()

	for want := 101; want <= 105; want++ {
		n, err := seq.Next(ctx, testPrefix)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	peek, err := seq.Peek(ctx, testPrefix)
	require.NoError(t, err)
	assert.Equal(t, 105, peek)

	_, err = seq.Peek(ctx, "RND/25-26/04/")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCodeSequenceSeedsFromExistingCodes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedProject(t, db, testPrefix+"117", entity.StageIdeaSubmitted)
	testutil.SeedProject(t, db, testPrefix+"abc", entity.StageIdeaSubmitted)
	testutil.SeedProject(t, db, "RND/25-26/04/400", entity.StageIdeaSubmitted)

	seq := NewCodeSequenceRepository(db, zap.NewNop())
	n, err := seq.Next(context.Background(), testPrefix)
	require.NoError(t, err)
	assert.Equal(t, 118, n)
}

func TestCodeSequencePrefixesAreIndependent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seq := NewCodeSequenceRepository(db, nil)
	ctx := context.Background()

	a, err := seq.Next(ctx, testPrefix)
	require.NoError(t, err)
	b, err := seq.Next(ctx, "RND/25-26/04/")
	require.NoError(t, err)
	c, err := seq.Next(ctx, testPrefix)
	require.NoError(t, err)

	assert.Equal(t, 101, a)
	assert.Equal(t, 101, b)
	assert.Equal(t, 102, c)
}

func TestCodeSequenceConcurrentNoDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seq := NewCodeSequenceRepository(db, zap.NewNop())
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan int, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := seq.Next(ctx, testPrefix)
			if err != nil {
				errs <- err
				return
			}
			results <- n
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("Next failed: %v", err)
	}
	seen := map[int]bool{}
	for n := range results {
		assert.False(t, seen[n], "duplicate sequence %d", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
	for n := 101; n < 101+workers; n++ {
		assert.True(t, seen[n])
	}
}

// 需要本地 Redis，设置 REDIS_ADDR 后运行
func TestRedisSequence(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	db := testutil.SetupTestDB(t)
	testutil.SeedProject(t, db, "RND/98-99/01/130", entity.StageIdeaSubmitted)

	seq := NewRedisSequence(rdb, NewProjectRepository(db), zap.NewNop())
	p := "RND/98-99/01/"
	require.NoError(t, seq.Reset(ctx, p))
	t.Cleanup(func() { seq.Reset(ctx, p) })

	n, err := seq.Next(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 131, n)
	n, err = seq.Next(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 132, n)
}
