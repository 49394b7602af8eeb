package memory

import (
	"context"
	"testing"

	"github.com/JakeFAU/product-scraper/internal/pipeline"
	"github.com/JakeFAU/product-scraper/internal/publisher"
)

var _ publisher.Publisher = (*Publisher)(nil)

func TestPublisherStoresEncodedMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "scrape-runs", pipeline.RunSummary{RunID: "a", Succeeded: 2, OutputSHA256: "abc"})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "scrape-audit", "payload")
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Topic != "scrape-runs" || msgs[1].Topic != "scrape-audit" {
		t.Fatalf("topics not recorded correctly: %+v", msgs)
	}
	if string(msgs[1].Data) != `"payload"` {
		t.Fatalf("expected JSON encoded payload, got %s", msgs[1].Data)
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}

	summaries, err := pub.Summaries("scrape-runs")
	if err != nil {
		t.Fatalf("Summaries() error = %v", err)
	}
	if len(summaries) != 1 || summaries[0].RunID != "a" || summaries[0].Succeeded != 2 || summaries[0].OutputSHA256 != "abc" {
		t.Fatalf("unexpected summaries %+v", summaries)
	}
}

func TestPublisherRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	pub := New()
	if _, err := pub.Publish(context.Background(), "scrape-runs", make(chan int)); err == nil {
		t.Fatal("expected encode error")
	}
	if len(pub.Messages()) != 0 {
		t.Fatal("failed publish must not be recorded")
	}
}

func TestSummariesDecodeError(t *testing.T) {
	t.Parallel()

	pub := New()
	if _, err := pub.Publish(context.Background(), "scrape-runs", "not a summary"); err != nil {
		t.Fatal(err)
	}
	if _, err := pub.Summaries("scrape-runs"); err == nil {
		t.Fatal("expected decode error")
	}
}
