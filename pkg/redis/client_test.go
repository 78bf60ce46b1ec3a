package redis

import (
	"testing"

	"github.com/assetdeck/assetdeck-backend/pkg/config"
)

func TestKeyBuilders(t *testing.T) {
	c := &Client{}

	if got := c.IdempotencyKey("stripe_webhook", "evt_123"); got != "ad:idempotency:stripe_webhook:evt_123" {
		t.Fatalf("unexpected idempotency key: %s", got)
	}
	if got := c.DownloadTokenKey("jti-abc"); got != "ad:download:jti-abc" {
		t.Fatalf("unexpected download token key: %s", got)
	}
}

func TestBuildKeySkipsEmptyParts(t *testing.T) {
	c := &Client{}
	if got := c.buildKey("a", "", "b"); got != "ad:a:b" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error when neither url nor address set")
	}
}

func TestOptionsFromConfigAddress(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", PoolSize: 5})
	if err != nil {
		t.Fatalf("optionsFromConfig: %v", err)
	}
	if opts.Addr != "localhost:6379" {
		t.Fatalf("unexpected addr: %s", opts.Addr)
	}
	if opts.PoolSize != 5 {
		t.Fatalf("pool size not applied: %d", opts.PoolSize)
	}
}
