package router_test

import (
	"testing"

	"github.com/n9te9/subgraph-proxy/internal/health"
	"github.com/n9te9/subgraph-proxy/internal/router"
)

func TestShouldPassthroughRequiresGlobalEnable(t *testing.T) {
	state := health.State{IsHealthy: true}
	if router.ShouldPassthrough(false, true, state, true) {
		t.Error("expected passthrough disabled globally to win")
	}
}

func TestShouldPassthroughRequiresKnownSubgraph(t *testing.T) {
	state := health.State{IsHealthy: true}
	if router.ShouldPassthrough(true, false, state, true) {
		t.Error("expected unknown subgraph to never passthrough")
	}
}

func TestShouldPassthroughFalseWhenMocking(t *testing.T) {
	state := health.State{IsHealthy: true, IsMocking: true}
	if router.ShouldPassthrough(true, true, state, true) {
		t.Error("expected isMocking to force mock dispatch regardless of health")
	}
}

func TestShouldPassthroughTrueOnLiveProbe(t *testing.T) {
	state := health.State{IsHealthy: false}
	if !router.ShouldPassthrough(true, true, state, true) {
		t.Error("expected a successful live probe to allow passthrough even if cached state is stale")
	}
}

func TestShouldPassthroughTrueOnCachedHealthy(t *testing.T) {
	state := health.State{IsHealthy: true}
	if !router.ShouldPassthrough(true, true, state, false) {
		t.Error("expected cached isHealthy to allow passthrough without a fresh probe")
	}
}

func TestShouldPassthroughFalseWhenNeitherHealthy(t *testing.T) {
	state := health.State{IsHealthy: false}
	if router.ShouldPassthrough(true, true, state, false) {
		t.Error("expected no health signal to fall back to mock")
	}
}
