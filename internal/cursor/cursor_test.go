package cursor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	seq, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, m.Save(ctx, 17))
	seq, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(17), seq)
}

// fakeRedis implements the two commands the store issues.
type fakeRedis struct {
	redis.Cmdable
	values map[string]string
	err    error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	switch {
	case f.err != nil:
		cmd.SetErr(f.err)
	case f.values[key] == "":
		cmd.SetErr(redis.Nil)
	default:
		cmd.SetVal(f.values[key])
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.values[key] = value.(string)
	cmd.SetVal("OK")
	return cmd
}

func TestRedis_LoadSave(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{values: map[string]string{}}
	r := NewRedis(fake, "")

	seq, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq, "missing key means start from zero")

	require.NoError(t, r.Save(ctx, 99))
	assert.Equal(t, "99", fake.values[DefaultKey])

	seq, err = r.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(99), seq)
}

func TestRedis_Errors(t *testing.T) {
	ctx := context.Background()

	down := &fakeRedis{values: map[string]string{}, err: errors.New("connection refused")}
	r := NewRedis(down, "k")
	_, err := r.Load(ctx)
	assert.ErrorContains(t, err, "connection refused")
	assert.ErrorContains(t, r.Save(ctx, 1), "save cursor k")

	garbage := &fakeRedis{values: map[string]string{"k": "abc"}}
	_, err = NewRedis(garbage, "k").Load(ctx)
	assert.ErrorContains(t, err, "parse cursor")
}
