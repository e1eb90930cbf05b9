package cache

import (
	"context"
	"testing"
	"time"

	"github.com/choukwa/choukwa-backend/internal/config"
)

func TestNewRedis_UnreachableFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := NewRedis(ctx, config.RedisConfig{Addr: "127.0.0.1:1"})
	if err == nil || r != nil {
		t.Fatalf("expected ping failure, got r=%v err=%v", r, err)
	}
}
