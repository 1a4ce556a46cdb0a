package logschema

import "testing"

func TestValidate(t *testing.T) {
	err := Validate("order_registered", map[string]interface{}{
		"orderId": "O-19700101-000000-001-001-1",
		"symbol":  "AUDUSD.FXCM",
		"side":    "BUY",
		"type":    "LIMIT",
		"qty":     "100000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = Validate("order_registered", map[string]interface{}{
		"orderId": "O-19700101-000000-001-001-1",
	})
	if err == nil {
		t.Fatalf("expected error for missing fields")
	}
}

func TestValidateUnknownEventPasses(t *testing.T) {
	err := Validate("startup", map[string]interface{}{})
	if err != nil {
		t.Fatalf("unknown events should not be validated: %v", err)
	}
}

func TestKnownEvents(t *testing.T) {
	names := Known()
	if len(names) == 0 {
		t.Fatalf("expected non-empty schema list")
	}
	found := false
	for _, n := range names {
		if n == "order_anomaly" {
			found = true
		}
	}
	if !found {
		t.Fatalf("order_anomaly not found in schemas")
	}
}
