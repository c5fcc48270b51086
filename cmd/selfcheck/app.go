package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/pavelanni/selfcheck/internal/catalog"
	"github.com/pavelanni/selfcheck/internal/export"
	appI18n "github.com/pavelanni/selfcheck/internal/i18n"
	"github.com/pavelanni/selfcheck/internal/model"
	"github.com/pavelanni/selfcheck/internal/session"
	"github.com/pavelanni/selfcheck/internal/store"
)

// app is everything a command needs: the loaded catalog, the store, the
// session controller and the export capabilities.
type app struct {
	lang    string
	cat     *model.Catalog
	store   *store.Store
	ctrl    *session.Controller
	exports *export.Registry
	redis   *redis.Client

	// The redis backend closes the shared client itself.
	kvIsRedis bool
}

func openApp(ctx context.Context, v *viper.Viper) (*app, error) {
	a := &app{lang: v.GetString("lang")}
	if err := appI18n.Init(a.lang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}

	cat, err := catalog.Load(ctx, v.GetString("catalog"))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	a.cat = cat

	if addr := v.GetString("redis-addr"); addr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: addr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
		}
	}

	kv, err := openBackend(v, a.redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	_, a.kvIsRedis = kv.(*store.RedisBackend)
	a.store = store.New(kv)
	if err := a.store.Initialize(cat.AppID, cat.Version); err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	changed, err := a.store.RecordCatalog(cat.Fingerprint)
	if err != nil {
		slog.Warn("record catalog fingerprint", "error", err)
	} else if changed {
		slog.Warn("question bank changed since answers were stored, bump VERSION to start fresh",
			"app_id", cat.AppID, "version", cat.Version)
	}

	a.ctrl = session.New(cat, a.store, session.Config{MinPctForSubmit: v.GetInt("min-pct")})

	a.exports = export.NewRegistry()
	a.exports.RegisterRenderer("pdf", export.PDFRenderer{})
	a.exports.RegisterRenderer("json", export.JSONRenderer{})
	if a.redis != nil {
		a.exports.RegisterExporter(export.NewRedisShareExporter(a.redis, v.GetString("redis-prefix")+"inbox"))
	}

	slog.Debug("app ready", "app_id", cat.AppID, "version", cat.Version, "key", a.store.Key())
	return a, nil
}

func openBackend(v *viper.Viper, client *redis.Client) (store.Backend, error) {
	switch strings.ToLower(v.GetString("backend")) {
	case "sqlite", "":
		b, err := store.NewSQLite(v.GetString("db"))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return b, nil
	case "redis":
		if client == nil {
			return nil, errors.New("redis backend needs --redis-addr")
		}
		return store.NewRedis(client, v.GetString("redis-prefix")), nil
	case "memory":
		return store.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", v.GetString("backend"))
	}
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("close store", "error", err)
		}
		if a.kvIsRedis {
			return
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
