package enums

import "testing"

func TestParseSaleStatusNormalizesInput(t *testing.T) {
	got, err := ParseSaleStatus("  Completed ")
	if err != nil {
		t.Fatalf("ParseSaleStatus: %v", err)
	}
	if got != SaleStatusCompleted {
		t.Fatalf("expected completed, got %q", got)
	}
	if !got.HoldsStock() {
		t.Fatal("completed sales must hold stock")
	}
	if SaleStatusPending.HoldsStock() || SaleStatusCancelled.HoldsStock() {
		t.Fatal("only completed sales hold stock")
	}
	if _, err := ParseSaleStatus("shipped"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestParsePaymentMethod(t *testing.T) {
	for _, raw := range []string{"cash", "TRANSFER", "card", "other"} {
		method, err := ParsePaymentMethod(raw)
		if err != nil {
			t.Fatalf("ParsePaymentMethod(%q): %v", raw, err)
		}
		if !method.IsValid() {
			t.Fatalf("expected %q to be valid", method)
		}
	}
	if _, err := ParsePaymentMethod("crypto"); err == nil {
		t.Fatal("expected crypto to be rejected")
	}
	if len(PaymentMethods()) != 4 {
		t.Fatalf("expected four payment methods, got %d", len(PaymentMethods()))
	}
}

func TestParseUserEnums(t *testing.T) {
	role, err := ParseUserRole("Admin")
	if err != nil || role != UserRoleAdmin {
		t.Fatalf("expected admin role, got %q (%v)", role, err)
	}
	status, err := ParseUserStatus("inactive")
	if err != nil || status != UserStatusInactive {
		t.Fatalf("expected inactive status, got %q (%v)", status, err)
	}
	if UserRole("owner").IsValid() {
		t.Fatal("owner is not a user role")
	}
}

func TestOutboxEnums(t *testing.T) {
	if _, err := ParseOutboxEventType("sale_created"); err != nil {
		t.Fatalf("ParseOutboxEventType: %v", err)
	}
	if _, err := ParseOutboxAggregateType("inventory"); err == nil {
		t.Fatal("expected unknown aggregate to fail")
	}
	if _, err := ParseOutboxEventType("Sale_Created"); err == nil {
		t.Fatal("expected wire values to match exactly")
	}
	if !EventSaleDeleted.IsSaleEvent() || EventProductStockLow.IsSaleEvent() {
		t.Fatal("unexpected sale event classification")
	}
	if !OutboxDLQReasonNonRetryable.IsValid() || OutboxDLQErrorReason("timeout").IsValid() {
		t.Fatal("unexpected dlq reason validation")
	}
}
