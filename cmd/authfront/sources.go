package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authfront/sampler"
	"github.com/MrEthical07/authfront/userstore"
)

const devUsers = 3

// openCountSource returns the configured user count source and a cleanup
// function. A nil source means no store is configured.
func openCountSource(ctx context.Context, opts options, logger log.Logger) (sampler.CountSource, func(), error) {
	switch {
	case opts.postgresDSN != "":
		db, err := sql.Open("postgres", opts.postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			level.Warn(logger).Log("msg", "postgres not reachable yet", "err", err)
		}
		src, err := userstore.NewSQLCounter(db, opts.postgresTable)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return src, func() { _ = db.Close() }, nil

	case opts.redisAddr != "":
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{opts.redisAddr}})
		src, err := redisSource(client, opts)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return src, func() { _ = client.Close() }, nil

	case opts.dev:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		for i := 1; i <= devUsers; i++ {
			if _, err := mr.SAdd(opts.redisKey, fmt.Sprintf("user-%d", i)); err != nil {
				mr.Close()
				return nil, nil, err
			}
		}
		level.Info(logger).Log("msg", "using miniredis", "addr", mr.Addr(), "users", devUsers)
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		src, err := redisSource(client, opts)
		if err != nil {
			_ = client.Close()
			mr.Close()
			return nil, nil, err
		}
		return src, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	return nil, func() {}, nil
}

func redisSource(client redis.UniversalClient, opts options) (*userstore.RedisCounter, error) {
	if opts.redisPattern != "" {
		return userstore.NewRedisKeyCounter(client, opts.redisPattern)
	}
	return userstore.NewRedisSetCounter(client, opts.redisKey)
}
