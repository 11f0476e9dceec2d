package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"reconx/internal/testutil"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRU_SetAndGet(t *testing.T) {
	t.Run("stores and retrieves value", func(t *testing.T) {
		c := New[string](10, 0)
		c.Set("key1", "value1")

		value, found := c.Get("key1")
		testutil.AssertTrue(t, found, "should find stored value")
		testutil.AssertEqual(t, value, "value1", "value should match")
	})

	t.Run("returns zero value for missing key", func(t *testing.T) {
		c := New[int](10, 0)
		value, found := c.Get("missing")

		testutil.AssertFalse(t, found, "should not find missing key")
		testutil.AssertEqual(t, value, 0, "zero value")
	})

	t.Run("updates existing key", func(t *testing.T) {
		c := New[string](10, 0)
		c.Set("key1", "value1")
		c.Set("key1", "value2")

		value, _ := c.Get("key1")
		testutil.AssertEqual(t, value, "value2", "should have updated value")
		testutil.AssertEqual(t, c.Len(), 1, "size should still be 1")
	})

	t.Run("default capacity for invalid values", func(t *testing.T) {
		c := New[string](0, 0)
		testutil.AssertEqual(t, c.capacity, 128, "default capacity")
	})
}

func TestLRU_Eviction(t *testing.T) {
	c := New[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)

	// "a" pasa a ser el más reciente
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, found := c.Get("b")
	testutil.AssertFalse(t, found, "least recently used evicted")
	_, found = c.Get("a")
	testutil.AssertTrue(t, found, "recently used kept")
	testutil.AssertEqual(t, c.Len(), 2, "capacity respected")
}

func TestLRU_Expiration(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string](10, time.Minute)
	c.now = clock.now

	c.Set("a", "x")
	clock.advance(30 * time.Second)
	c.Set("b", "y")

	_, found := c.Get("a")
	testutil.AssertTrue(t, found, "not yet expired")

	clock.advance(45 * time.Second)
	_, found = c.Get("a")
	testutil.AssertFalse(t, found, "expired entry dropped on access")

	clock.advance(time.Minute)
	testutil.AssertEqual(t, c.Purge(), 1, "purge removes remaining expired entry")
	testutil.AssertEqual(t, c.Len(), 0, "empty after purge")
}

func TestLRU_Delete(t *testing.T) {
	c := New[string](10, 0)
	c.Set("a", "x")
	c.Delete("a")
	c.Delete("missing")

	_, found := c.Get("a")
	testutil.AssertFalse(t, found, "deleted")
}

func TestLRU_Concurrent(t *testing.T) {
	c := New[int](64, time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (i*100+j)%80)
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	testutil.AssertTrue(t, c.Len() <= 64, "capacity never exceeded")
}
