package shelly

import "testing"

func TestTopic_SubscribeUnsubscribe(t *testing.T) {
	topic := newTopic[int]("numbers")

	var a, b []int
	unsubA := topic.Subscribe(func(v int) { a = append(a, v) })
	topic.Subscribe(func(v int) { b = append(b, v) })

	if topic.Subscribers() != 2 {
		t.Fatalf("Subscribers() = %d, want 2", topic.Subscribers())
	}

	topic.emit(1, noopLogger{})
	unsubA()
	unsubA()
	topic.emit(2, noopLogger{})

	if len(a) != 1 || a[0] != 1 {
		t.Errorf("a = %v, want [1]", a)
	}
	if len(b) != 2 || b[0] != 1 || b[1] != 2 {
		t.Errorf("b = %v, want [1 2]", b)
	}
	if topic.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", topic.Subscribers())
	}
	if topic.Name() != "numbers" {
		t.Errorf("Name() = %q", topic.Name())
	}
}

func TestTopic_HandlersRunInSubscriptionOrder(t *testing.T) {
	topic := newTopic[string]("order")

	var got []string
	for _, name := range []string{"first", "second", "third"} {
		topic.Subscribe(func(string) { got = append(got, name) })
	}
	topic.emit("x", noopLogger{})

	equalEvents(t, got, []string{"first", "second", "third"})
}

func TestTopic_UnsubscribeDuringEmit(t *testing.T) {
	topic := newTopic[int]("reentrant")

	calls := 0
	var unsub func()
	unsub = topic.Subscribe(func(int) {
		calls++
		unsub()
	})
	topic.Subscribe(func(int) { calls++ })

	topic.emit(1, noopLogger{})
	topic.emit(2, noopLogger{})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestEvents_Names(t *testing.T) {
	ev := newEvents()
	names := []string{
		ev.Start.Name(), ev.Stop.Name(), ev.Discover.Name(), ev.UnknownDevice.Name(),
		ev.Add.Name(), ev.Remove.Name(), ev.Stale.Name(),
	}
	equalEvents(t, names, []string{"start", "stop", "discover", "unknownDevice", "add", "remove", "stale"})
}
