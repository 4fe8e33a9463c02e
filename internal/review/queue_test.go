package review_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"showrunner/internal/review"
	"showrunner/internal/testsupport"
)

func newQueue(t *testing.T) *review.Queue {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	return review.New(db)
}

func add(t *testing.T, q *review.Queue, typ review.Type, pipelineID string) string {
	t.Helper()
	id, err := q.Add(context.Background(), review.AddInput{
		Type:       typ,
		PipelineID: pipelineID,
		Stage:      "script-gen",
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return id
}

func TestAddCreatesPendingItem(t *testing.T) {
	q := newQueue(t)
	id := add(t, q, review.TypePronunciation, "2026-01-20")

	item, err := q.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if item == nil {
		t.Fatal("expected stored item")
	}
	if item.Status != review.StatusPending {
		t.Fatalf("expected pending, got %s", item.Status)
	}
	if item.Resolution != "" || item.ResolvedAt != nil || item.ResolvedBy != "" {
		t.Fatalf("resolution fields must start null together: %#v", item)
	}
}

func TestResolveSetsAllResolutionFields(t *testing.T) {
	q := newQueue(t)
	id := add(t, q, review.TypeQuality, "2026-01-20")
	ctx := context.Background()

	if err := q.Resolve(ctx, id, "accepted after listen-through", "operator"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	item, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if item.Status != review.StatusResolved {
		t.Fatalf("expected resolved, got %s", item.Status)
	}
	if item.Resolution == "" || item.ResolvedAt == nil || item.ResolvedBy != "operator" {
		t.Fatalf("resolution fields must be set together: %#v", item)
	}
}

func TestResolveTwiceFails(t *testing.T) {
	q := newQueue(t)
	id := add(t, q, review.TypeQuality, "2026-01-20")
	ctx := context.Background()

	if err := q.Resolve(ctx, id, "first", "alice"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	err := q.Resolve(ctx, id, "second", "bob")
	if !errors.Is(err, review.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}

	item, _ := q.Get(ctx, id)
	if item.Resolution != "first" || item.ResolvedBy != "alice" {
		t.Fatalf("first resolution must never be overwritten: %#v", item)
	}
}

func TestDismissThenResolveFails(t *testing.T) {
	q := newQueue(t)
	id := add(t, q, review.TypeControversial, "2026-01-20")
	ctx := context.Background()

	if err := q.Dismiss(ctx, id, "not actionable", "operator"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if err := q.Resolve(ctx, id, "late", "operator"); !errors.Is(err, review.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

func TestHasPendingCriticalIgnoresNonCriticalTypes(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	add(t, q, review.TypeControversial, "2026-01-20")
	add(t, q, review.TypeTopic, "2026-01-20")

	blocked, err := q.HasPendingCritical(ctx)
	if err != nil {
		t.Fatalf("HasPendingCritical: %v", err)
	}
	if blocked {
		t.Fatal("controversial and topic items must not block publication")
	}

	id := add(t, q, review.TypePronunciation, "2026-01-20")
	blocked, err = q.HasPendingCritical(ctx)
	if err != nil {
		t.Fatalf("HasPendingCritical: %v", err)
	}
	if !blocked {
		t.Fatal("pending pronunciation item must block publication")
	}

	if err := q.Resolve(ctx, id, "fixed phonemes", "operator"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	blocked, err = q.HasPendingCritical(ctx)
	if err != nil {
		t.Fatalf("HasPendingCritical: %v", err)
	}
	if blocked {
		t.Fatal("resolved items must not block publication")
	}
}

func TestListFilters(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	add(t, q, review.TypeQuality, "2026-01-20")
	add(t, q, review.TypeQuality, "2026-01-21")
	id := add(t, q, review.TypePronunciation, "2026-01-21")
	if err := q.Resolve(ctx, id, "done", "operator"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	items, err := q.List(ctx, review.Filter{PipelineID: "2026-01-21"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items for pipeline, got %d", len(items))
	}

	items, err = q.List(ctx, review.Filter{Status: review.StatusPending, PipelineID: "2026-01-21"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Type != review.TypeQuality {
		t.Fatalf("unexpected filtered items: %#v", items)
	}
}

func TestRequeueTopicFromReviewRequiresTopicType(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	qualityID := add(t, q, review.TypeQuality, "2026-01-20")
	if err := q.RequeueTopicFromReview(ctx, qualityID, "2026-01-22", "operator"); err == nil {
		t.Fatal("requeue of a non-topic item must fail")
	}

	topicID := add(t, q, review.TypeTopicRequeue, "2026-01-20")
	if err := q.RequeueTopicFromReview(ctx, topicID, "2026-01-22", "operator"); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	item, _ := q.Get(ctx, topicID)
	if item.Status != review.StatusResolved || !strings.Contains(item.Resolution, "2026-01-22") {
		t.Fatalf("unexpected resolution: %#v", item)
	}
}
