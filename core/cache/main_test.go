package cache

import (
	"context"
	"log"
	"testing"

	"github.com/siherrmann/wikigraph/helper"
	"github.com/testcontainers/testcontainers-go"
)

var redisEndpoint string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, redisEndpoint, err = helper.MustStartRedisContainer()
	if err != nil {
		log.Fatalf("error starting redis container: %v", err)
	}

	m.Run()

	if teardown != nil && teardown(context.Background()) != nil {
		log.Fatalf("error tearing down redis container: %v", err)
	}
}
