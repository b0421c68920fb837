package bus

import "testing"

func TestTopicLatestEmptyBeforePublish(t *testing.T) {
	b := New()
	if _, ok := b.Topic("x").Latest(); ok {
		t.Fatalf("expected no value before any Publish")
	}
}

func TestTopicSameInstanceByName(t *testing.T) {
	b := New()
	if b.Topic("x") != b.Topic("x") {
		t.Fatalf("expected Topic to return the same instance for the same name")
	}
}

func TestPublishIncrementsGeneration(t *testing.T) {
	topic := New().Topic("x")
	g1 := topic.Publish(1)
	g2 := topic.Publish(2)
	if g1.Seq != 1 || g2.Seq != 2 {
		t.Fatalf("expected sequence 1 then 2, got %d then %d", g1.Seq, g2.Seq)
	}
}

func TestReaderFirstPollReportsChanged(t *testing.T) {
	topic := New().Topic("x")
	topic.Publish("a")
	r := topic.NewReader()
	v, changed, missed := r.Poll()
	if !changed || v != "a" || missed != 0 {
		t.Fatalf("got (%v, %v, %v)", v, changed, missed)
	}
}

func TestReaderPollUnchangedWhenNothingNewPublished(t *testing.T) {
	topic := New().Topic("x")
	topic.Publish("a")
	r := topic.NewReader()
	r.Poll()
	v, changed, _ := r.Poll()
	if changed || v != "a" {
		t.Fatalf("expected unchanged poll to still return the last value, got (%v, %v)", v, changed)
	}
}

func TestReaderDetectsMissedGenerations(t *testing.T) {
	topic := New().Topic("x")
	r := topic.NewReader()
	topic.Publish(1)
	r.Poll()
	topic.Publish(2)
	topic.Publish(3)
	topic.Publish(4)
	v, changed, missed := r.Poll()
	if !changed || v != 4 || missed != 2 {
		t.Fatalf("got (%v, %v, %v), want (4, true, 2)", v, changed, missed)
	}
}

func TestReaderOnEmptyTopicNeverChanges(t *testing.T) {
	topic := New().Topic("x")
	r := topic.NewReader()
	_, changed, _ := r.Poll()
	if changed {
		t.Fatalf("expected no change on a topic that was never published to")
	}
}

func TestIndependentReadersDoNotInterfere(t *testing.T) {
	topic := New().Topic("x")
	topic.Publish(1)
	r1 := topic.NewReader()
	r1.Poll()
	topic.Publish(2)

	r2 := topic.NewReader()
	v2, changed2, missed2 := r2.Poll()
	if !changed2 || v2 != 2 || missed2 != 0 {
		t.Fatalf("fresh reader should see generation 2 as new with no missed, got (%v, %v, %v)", v2, changed2, missed2)
	}

	v1, changed1, _ := r1.Poll()
	if !changed1 || v1 != 2 {
		t.Fatalf("r1 should independently observe the new generation, got (%v, %v)", v1, changed1)
	}
}
