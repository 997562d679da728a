package cache

import (
	"testing"
	"time"

	"github.com/koopmanstack/koopman-verify/internal/models"
)

func testTrajectory(source string) models.Trajectory {
	return models.Trajectory{
		Source: source,
		Samples: []models.TrajectorySample{
			{Time: 0, Actual: models.Vec3{0, 0, 1}, Target: models.Vec3{0, 0, 1}},
		},
	}
}

func TestCacheSetGet(t *testing.T) {
	c := New(time.Minute)
	c.Set("a.json", testTrajectory("a.json"))

	got, ok := c.Get("a.json")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got.Source != "a.json" || len(got.Samples) != 1 {
		t.Fatalf("unexpected cached trajectory: %+v", got)
	}
}

func TestCacheMiss(t *testing.T) {
	c := New(time.Minute)
	if _, ok := c.Get("absent.json"); ok {
		t.Fatalf("expected miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New(time.Nanosecond)
	c.Set("a.json", testTrajectory("a.json"))
	time.Sleep(2 * time.Millisecond)

	if _, ok := c.Get("a.json"); ok {
		t.Fatalf("expected expired entry to miss")
	}
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("expected purge to drop expired entries, have %d", c.Len())
	}
}

func TestNilCacheIsAlwaysMiss(t *testing.T) {
	var c *TrajectoryCache
	if _, ok := c.Get("a.json"); ok {
		t.Fatalf("nil cache must miss")
	}
	c.Set("a.json", testTrajectory("a.json"))
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("nil cache must be empty")
	}
}

func TestNewNonPositiveTTL(t *testing.T) {
	if c := New(0); c != nil {
		t.Fatalf("zero ttl must disable the cache")
	}
}
