package capture

import "testing"

func click(x int) ClickEvent {
	return ClickEvent{X: x, Button: ButtonLeft, Kind: KindClick}
}

func TestQueue_EmptyDrain(t *testing.T) {
	q := NewQueue(4)
	if events := q.Drain(); len(events) != 0 {
		t.Errorf("expected empty drain, got %d events", len(events))
	}
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(4)
	for i := 0; i < 3; i++ {
		if q.Push(click(i)) {
			t.Fatalf("push %d: unexpected drop", i)
		}
	}

	events := q.Drain()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.X != i {
			t.Errorf("event %d: expected x=%d, got %d", i, i, e.X)
		}
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue after drain, got %d", q.Len())
	}
}

func TestQueue_DropsOldest(t *testing.T) {
	q := NewQueue(3)
	drops := 0
	for i := 0; i < 7; i++ {
		if q.Push(click(i)) {
			drops++
		}
	}
	if drops != 4 || q.Dropped() != 4 {
		t.Errorf("expected 4 drops, got %d (counter %d)", drops, q.Dropped())
	}

	events := q.Drain()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.X != i+4 {
			t.Errorf("event %d: expected x=%d, got %d", i, i+4, e.X)
		}
	}
}

func TestQueue_WrapAfterDrain(t *testing.T) {
	q := NewQueue(3)
	q.Push(click(0))
	q.Push(click(1))
	q.Drain()
	for i := 2; i < 5; i++ {
		q.Push(click(i))
	}
	events := q.Drain()
	if len(events) != 3 || events[0].X != 2 || events[2].X != 4 {
		t.Errorf("unexpected events after wrap: %+v", events)
	}
}

func TestQueue_ReadySignal(t *testing.T) {
	q := NewQueue(2)
	select {
	case <-q.Ready():
		t.Fatal("ready fired on empty queue")
	default:
	}

	q.Push(click(1))
	q.Push(click(2))
	select {
	case <-q.Ready():
	default:
		t.Fatal("expected ready after push")
	}
	select {
	case <-q.Ready():
		t.Fatal("ready should coalesce pushes")
	default:
	}
}

func TestQueue_DefaultCapacity(t *testing.T) {
	q := NewQueue(0)
	for i := 0; i < DefaultQueueSize; i++ {
		q.Push(click(i))
	}
	if q.Dropped() != 0 || q.Len() != DefaultQueueSize {
		t.Errorf("expected %d buffered without drops, got len=%d dropped=%d", DefaultQueueSize, q.Len(), q.Dropped())
	}
}
