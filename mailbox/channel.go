package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"supportmail/models"
	"supportmail/utils"
)

// ErrChannelNotFound means no channel is configured for any destination
// address of the message. The message cannot be attributed to a tenant, so
// this is a configuration error, not a skip.
var ErrChannelNotFound = errors.New("email channel/inbox not found")

const channelCacheTTL = 10 * time.Minute

// ChannelResolver maps the destination addresses of a message to the channel
// that owns them. Lookups are cached in redis when a client is provided;
// without one every lookup hits the database.
type ChannelResolver struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewChannelResolver(db *gorm.DB, rdb *redis.Client) *ChannelResolver {
	return &ChannelResolver{db: db, redis: rdb}
}

// Resolve tries each destination address in order and returns the first
// configured channel.
func (r *ChannelResolver) Resolve(to []string) (*models.Channel, error) {
	for _, addr := range to {
		addr = utils.NormalizeAddress(addr)
		if addr == "" {
			continue
		}

		if channel := r.fromCache(addr); channel != nil {
			return channel, nil
		}

		var channel models.Channel
		err := r.db.Where("email = ?", addr).First(&channel).Error
		if err == nil {
			r.cache(addr, channel.ID)
			return &channel, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("failed to look up channel for %s: %v", addr, err)
		}
	}
	return nil, ErrChannelNotFound
}

func (r *ChannelResolver) fromCache(addr string) *models.Channel {
	if r.redis == nil {
		return nil
	}
	val, err := r.redis.Get(context.Background(), channelCacheKey(addr)).Result()
	if err != nil {
		return nil
	}
	id, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return nil
	}
	var channel models.Channel
	if err := r.db.First(&channel, uint(id)).Error; err != nil {
		return nil
	}
	return &channel
}

func (r *ChannelResolver) cache(addr string, id uint) {
	if r.redis == nil {
		return
	}
	_ = r.redis.Set(context.Background(), channelCacheKey(addr), strconv.FormatUint(uint64(id), 10), channelCacheTTL).Err()
}

func channelCacheKey(addr string) string {
	return "channel:" + addr
}
