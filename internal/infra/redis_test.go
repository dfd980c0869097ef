package infra

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	opt := client.Options()
	if opt.MinIdleConns != redisMinIdleConns || opt.ReadTimeout != redisOpTimeout || opt.DialTimeout != redisDialTimeout {
		t.Fatalf("unexpected options %+v", opt)
	}
	if err := client.Set(context.Background(), "k", "v", time.Minute).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("value not written: %q", got)
	}
}

func TestNewRedisClientErrors(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := NewRedisClient(context.Background(), "postgres://nope"); err == nil {
		t.Fatalf("expected error for invalid scheme")
	}
}
