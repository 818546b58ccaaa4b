package roomstate

import "testing"

func TestValueGetSetSubscribe(t *testing.T) {
	v := NewValue("a")

	var got []string
	unsubscribe := v.Subscribe(func(s string) { got = append(got, s) })

	v.Set("b")
	v.Set("c")
	if v.Get() != "c" {
		t.Fatalf("expected c, got %q", v.Get())
	}

	unsubscribe()
	unsubscribe()
	v.Set("d")

	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestValueNotifiesInSubscriptionOrder(t *testing.T) {
	v := NewValue(0)

	var order []string
	unsubFirst := v.Subscribe(func(int) { order = append(order, "first") })
	defer unsubFirst()
	unsubSecond := v.Subscribe(func(int) { order = append(order, "second") })
	defer unsubSecond()

	order = nil
	v.Set(1)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected notification order %v", order)
	}
}

func TestValueUnsubscribeInsideCallback(t *testing.T) {
	v := NewValue(0)

	calls := 0
	var unsubscribe func()
	unsubscribe = v.Subscribe(func(n int) {
		calls++
		if n == 1 {
			unsubscribe()
		}
	})

	v.Set(1)
	v.Set(2)

	if calls != 2 {
		t.Fatalf("expected 2 calls (initial + first set), got %d", calls)
	}
}
