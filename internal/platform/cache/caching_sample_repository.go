// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"futures_dashboard/internal/feature/marketdata/domain/entity"
	"futures_dashboard/internal/feature/marketdata/usecase"
)

// SampleStore は価格系列の読み書きを行うリポジトリです。
type SampleStore interface {
	usecase.SampleRepository
	usecase.SampleWriter
}

// keyGranularity は下限時刻をキャッシュキーに丸める単位です。
// 丸めた下限で広めに取得し、読み出し時に本来の下限で切り詰めます。
const keyGranularity = time.Minute

// CachingSampleRepository は SampleStore を Redis キャッシュでデコレートします。
// 元のリポジトリを変更せずにキャッシュを透過的に追加します。
type CachingSampleRepository struct {
	inner     SampleStore
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ SampleStore = (*CachingSampleRepository)(nil)

// NewCachingSampleRepository は SampleStore を Redis キャッシュでデコレートします。
// ttl=0 の場合は 5秒にフォールバックします。namespace が空なら "series" を使います。
func NewCachingSampleRepository(rdb *redis.Client, ttl time.Duration, inner SampleStore, namespace string) *CachingSampleRepository {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if namespace == "" {
		namespace = "series"
	}
	return &CachingSampleRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Insert は本体へ書き込んだ後、影響する系列のキャッシュを無効化します。
func (c *CachingSampleRepository) Insert(ctx context.Context, kind entity.ChartKind, samples []entity.Sample) error {
	// まず本体（Postgres）へ
	if err := c.inner.Insert(ctx, kind, samples); err != nil {
		return err
	}

	// Redis 未設定なら終了
	if c.rdb == nil || len(samples) == 0 {
		return nil
	}

	// 影響範囲のキャッシュを無効化（kind+market ごとのキー）
	seen := map[string]struct{}{}
	for _, s := range samples {
		prefix := c.cacheKeyPrefix(kind, marketKey(kind, s.Market))
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		_ = c.deleteByPattern(ctx, prefix+"*") // ベストエフォート
	}
	return nil
}

// FindSeries はキャッシュを確認し、なければ本体から取得して保存します。
func (c *CachingSampleRepository) FindSeries(ctx context.Context, q entity.SeriesQuery) ([]entity.Sample, error) {
	// Redis 未設定なら素通し
	if c.rdb == nil {
		return c.inner.FindSeries(ctx, q)
	}

	wide := q
	wide.Market = marketKey(q.Kind, q.Market)
	if q.Bounded() {
		wide.Since = q.Since.UTC().Truncate(keyGranularity)
	}
	key := c.cacheKey(wide)

	// 1) キャッシュヒット確認
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []entity.Sample
		if err := json.Unmarshal(b, &out); err == nil {
			return trimBefore(out, q), nil
		}
		// 壊れていたら落とす
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) DB へフォールバック
	out, err := c.inner.FindSeries(ctx, wide)
	if err != nil {
		return nil, err
	}

	// 3) キャッシュ保存（ベストエフォート）
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return trimBefore(out, q), nil
}

// trimBefore は q.Since より前のサンプルを取り除きます。系列は昇順前提です。
func trimBefore(samples []entity.Sample, q entity.SeriesQuery) []entity.Sample {
	if !q.Bounded() {
		return samples
	}
	for i, s := range samples {
		if !s.Time.Before(q.Since) {
			return samples[i:]
		}
	}
	return samples[:0]
}

// marketKey は index 系列では銘柄を区別しないため空にします。
func marketKey(kind entity.ChartKind, market string) string {
	if kind == entity.ChartIndex {
		return ""
	}
	return market
}

// ---- 補助 ----

func (c *CachingSampleRepository) cacheKey(q entity.SeriesQuery) string {
	since := "all"
	if q.Bounded() {
		since = strconv.FormatInt(q.Since.Unix(), 10)
	}
	return c.cacheKeyPrefix(q.Kind, q.Market) + since
}

func (c *CachingSampleRepository) cacheKeyPrefix(kind entity.ChartKind, market string) string {
	return fmt.Sprintf("%s:%s:%s:",
		c.namespace,
		safe(string(kind)),
		safe(market),
	)
}

// deleteByPattern は SCAN でパターンに一致するキーを削除します。
func (c *CachingSampleRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

func safe(s string) string {
	// Redis キーに使いづらい記号の簡易エスケープ
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "*", "_")
	return s
}
