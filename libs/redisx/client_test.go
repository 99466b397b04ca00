package redisx

import (
	"context"
	"testing"
)

func TestOpen_NoAddrDisablesRedis(t *testing.T) {
	client, err := Open(context.Background(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client without an address")
	}
	if err := ReadyCheck(nil)(context.Background()); err == nil {
		t.Fatal("expected ready check to fail without a client")
	}
}
