package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/popularity-service/domain"
)

const (
	KeyProjection     = "projection:item:%s"
	KeySortLikes      = "projection:sort:likes"
	KeySortLikesDay   = "projection:sort:likesDay"
	KeySortLikesWeek  = "projection:sort:likesWeek"
	fieldID           = "id"
	fieldOwnerID      = "userId"
	fieldTitle        = "title"
	fieldDescription  = "description"
	fieldLikes        = "likes"
	fieldLikesList    = "likesList"
	fieldLikesDay     = "likesDay"
	fieldLikesWeek    = "likesWeek"
	fieldCreatedAt    = "createdAt"
	unsetScriptArgVal = ""
)

// KEYS = {document, sort:likes, sort:likesDay, sort:likesWeek}
// ARGV = {item id, likes, likesDay, likesWeek, likesList}; "" leaves a field untouched
var updateFieldsScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -1 -- the document is never created here
	end

	local fields = {'likes', 'likesDay', 'likesWeek', 'likesList'}
	for i, field in ipairs(fields) do
		local v = ARGV[i + 1]
		if v ~= '' then
			redis.call('HSET', KEYS[1], field, v)
			if i <= 3 then
				redis.call('ZADD', KEYS[i + 1], tonumber(v), ARGV[1])
			end
		end
	end
	return 1
`)

type projectionStore struct {
	client *redis.Client
}

var _ domain.ProjectionStore = (*projectionStore)(nil)

// NewProjectionStore stores every projection as a hash and keeps one sorted set per
// sortable counter.
func NewProjectionStore(client *redis.Client) *projectionStore {
	return &projectionStore{client: client}
}

func sortKey(field domain.SortField) string {
	switch field {
	case domain.SortByLikesDay:
		return KeySortLikesDay
	case domain.SortByLikesWeek:
		return KeySortLikesWeek
	default:
		return KeySortLikes
	}
}

func (s *projectionStore) Get(ctx context.Context, id string) (domain.Projection, error) {
	data, err := s.client.HGetAll(ctx, fmt.Sprintf(KeyProjection, id)).Result()
	if err != nil {
		return domain.Projection{}, err
	}
	if len(data) == 0 {
		return domain.Projection{}, domain.ErrProjectionNotFound
	}
	return decodeProjection(data)
}

func (s *projectionStore) UpdateFields(ctx context.Context, id string, u domain.ProjectionUpdate) error {
	if u.IsEmpty() {
		return nil
	}

	args := []any{id, unsetScriptArgVal, unsetScriptArgVal, unsetScriptArgVal, unsetScriptArgVal}
	if u.Likes != nil {
		args[1] = strconv.FormatInt(*u.Likes, 10)
	}
	if u.LikesDay != nil {
		args[2] = strconv.FormatInt(*u.LikesDay, 10)
	}
	if u.LikesWeek != nil {
		args[3] = strconv.FormatInt(*u.LikesWeek, 10)
	}
	if u.LikesList != nil {
		data, err := json.Marshal(u.LikesList)
		if err != nil {
			return err
		}
		args[4] = string(data)
	}

	keys := []string{fmt.Sprintf(KeyProjection, id), KeySortLikes, KeySortLikesDay, KeySortLikesWeek}
	res, err := updateFieldsScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return err
	}
	if res == -1 {
		return domain.ErrProjectionNotFound
	}
	return nil
}

func (s *projectionStore) Add(ctx context.Context, p domain.Projection) error {
	fields, err := encodeProjection(p)
	if err != nil {
		return err
	}

	key := fmt.Sprintf(KeyProjection, p.ID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.ZAdd(ctx, KeySortLikes, redis.Z{Score: float64(p.Likes), Member: p.ID})
		pipe.ZAdd(ctx, KeySortLikesDay, redis.Z{Score: float64(p.LikesDay), Member: p.ID})
		pipe.ZAdd(ctx, KeySortLikesWeek, redis.Z{Score: float64(p.LikesWeek), Member: p.ID})
		return nil
	})
	return err
}

func (s *projectionStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, fmt.Sprintf(KeyProjection, id))
		pipe.ZRem(ctx, KeySortLikes, id)
		pipe.ZRem(ctx, KeySortLikesDay, id)
		pipe.ZRem(ctx, KeySortLikesWeek, id)
		return nil
	})
	return err
}

func (s *projectionStore) Top(ctx context.Context, field domain.SortField, limit int64) ([]domain.Projection, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := s.client.ZRevRange(ctx, sortKey(field), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, fmt.Sprintf(KeyProjection, id))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	res := make([]domain.Projection, 0, len(ids))
	for i, cmd := range cmds {
		data := cmd.Val()
		if len(data) == 0 {
			logrus.Warnf("sort index references missing projection %s", ids[i])
			continue
		}
		p, err := decodeProjection(data)
		if err != nil {
			logrus.Errorf("failed to decode projection %s: %v", ids[i], err)
			continue
		}
		res = append(res, p)
	}
	return res, nil
}

func encodeProjection(p domain.Projection) (map[string]any, error) {
	list := p.LikesList
	if list == nil {
		list = []string{}
	}
	likesList, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		fieldID:          p.ID,
		fieldOwnerID:     p.OwnerID,
		fieldTitle:       p.Title,
		fieldDescription: p.Description,
		fieldLikes:       strconv.FormatInt(p.Likes, 10),
		fieldLikesList:   string(likesList),
		fieldLikesDay:    strconv.FormatInt(p.LikesDay, 10),
		fieldLikesWeek:   strconv.FormatInt(p.LikesWeek, 10),
		fieldCreatedAt:   strconv.FormatInt(p.CreatedAt.Unix(), 10),
	}, nil
}

func decodeProjection(data map[string]string) (domain.Projection, error) {
	p := domain.Projection{
		ID:          data[fieldID],
		OwnerID:     data[fieldOwnerID],
		Title:       data[fieldTitle],
		Description: data[fieldDescription],
		LikesList:   []string{},
	}

	var err error
	if p.Likes, err = parseCounter(data, fieldLikes); err != nil {
		return domain.Projection{}, err
	}
	if p.LikesDay, err = parseCounter(data, fieldLikesDay); err != nil {
		return domain.Projection{}, err
	}
	if p.LikesWeek, err = parseCounter(data, fieldLikesWeek); err != nil {
		return domain.Projection{}, err
	}
	if raw := data[fieldLikesList]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.LikesList); err != nil {
			return domain.Projection{}, fmt.Errorf("decode %s: %w", fieldLikesList, err)
		}
	}
	if raw := data[fieldCreatedAt]; raw != "" {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.Projection{}, fmt.Errorf("decode %s: %w", fieldCreatedAt, err)
		}
		p.CreatedAt = time.Unix(sec, 0).UTC()
	}
	return p, nil
}

// parseCounter treats an absent counter as zero, like a document written before the field existed.
func parseCounter(data map[string]string, field string) (int64, error) {
	raw, ok := data[field]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", field, err)
	}
	return n, nil
}
