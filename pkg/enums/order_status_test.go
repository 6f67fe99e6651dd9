package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	t.Parallel()

	legal := []struct{ from, to OrderStatus }{
		{OrderStatusPlaced, OrderStatusAccepted},
		{OrderStatusPlaced, OrderStatusRejected},
		{OrderStatusAccepted, OrderStatusPreparing},
		{OrderStatusPreparing, OrderStatusOutForDelivery},
		{OrderStatusOutForDelivery, OrderStatusDelivered},
	}
	for _, tc := range legal {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	// Everything outside the table is illegal: skips, reversals, and moves
	// out of terminal states.
	for _, from := range validOrderStatuses {
		for _, to := range validOrderStatuses {
			allowed := false
			for _, tc := range legal {
				if tc.from == from && tc.to == to {
					allowed = true
				}
			}
			if from.CanTransitionTo(to) != allowed {
				t.Fatalf("transition %s -> %s: expected allowed=%v", from, to, allowed)
			}
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	t.Parallel()

	if !OrderStatusDelivered.IsTerminal() || !OrderStatusRejected.IsTerminal() {
		t.Fatal("delivered and rejected must be terminal")
	}
	for _, s := range []OrderStatus{OrderStatusPlaced, OrderStatusAccepted, OrderStatusPreparing, OrderStatusOutForDelivery} {
		if s.IsTerminal() {
			t.Fatalf("%s must not be terminal", s)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	t.Parallel()

	if got, err := ParseOrderStatus("out_for_delivery"); err != nil || got != OrderStatusOutForDelivery {
		t.Fatalf("unexpected parse result %q, %v", got, err)
	}
	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}
