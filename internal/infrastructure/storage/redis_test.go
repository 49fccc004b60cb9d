package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"ProSocialFlow/internal/domain"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "", 0), mr
}

func TestRedisStore(t *testing.T) {
	store, _ := setupRedisStore(t)
	exerciseBackend(t, store)
}

func TestRedisStoreDocumentLayout(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, "Vegan Living", "Mushroom leather goes mainstream"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	raw, err := mr.Get("topic_history:doc:Vegan Living")
	if err != nil {
		t.Fatalf("document missing: %v", err)
	}
	rec, err := decodeRecord([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Category != "Vegan Living" || rec.UpdatedAt.IsZero() {
		t.Fatalf("unexpected document: %+v", rec)
	}

	members, err := mr.Members("topic_history:categories")
	if err != nil || len(members) != 1 {
		t.Fatalf("unexpected index: %v %v", members, err)
	}
}

func TestRedisStoreConcurrentRecords(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, topic := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			if err := store.Record(ctx, "Politics", topic); err != nil {
				t.Errorf("Record(%s): %v", topic, err)
			}
		}(topic)
	}
	wg.Wait()

	got, err := store.Read(ctx, "Politics")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected no lost updates, got %v", got)
	}
}

func TestRedisStoreErrorsAreStoreErrors(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()

	_, err := store.Read(context.Background(), "STEM")
	if !domain.IsStore(err) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if err := store.Record(context.Background(), "STEM", "x"); !domain.IsStore(err) {
		t.Fatalf("expected StoreError from Record, got %v", err)
	}
	if _, err := store.ReadAll(context.Background()); !domain.IsStore(err) {
		t.Fatalf("expected StoreError from ReadAll, got %v", err)
	}
}
