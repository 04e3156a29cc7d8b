package flood

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// stateTTL bounds how long an idle user's document lives; it comfortably
// exceeds the longest suspension.
const stateTTL = 48 * time.Hour

// RedisStore keeps each user's flood document as a JSON value in Redis.
type RedisStore struct {
	client rueidis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client rueidis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func key(userID int64) string {
	return fmt.Sprintf("flood:%d", userID)
}

func (r *RedisStore) Load(ctx context.Context, userID int64) (*State, error) {
	cmd := r.client.B().Get().Key(key(userID)).Build()
	resp := r.client.Do(ctx, cmd)
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return &State{}, nil
		}
		return nil, err
	}
	raw, err := resp.AsBytes()
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *RedisStore) Save(ctx context.Context, userID int64, st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	cmd := r.client.B().Set().Key(key(userID)).Value(string(raw)).
		Ex(stateTTL).Build()
	return r.client.Do(ctx, cmd).Error()
}
