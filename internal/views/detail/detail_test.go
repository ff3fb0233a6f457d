package detail

import (
	"strings"
	"testing"
	"time"

	"github.com/sheharzad-developer/daggys-cafe/internal/order"
)

func TestMarkdownIncludesItemsAndTotal(t *testing.T) {
	ev := &order.Event{
		ID:           "ORD-1",
		CustomerName: "Alex",
		Status:       order.StatusDelivered,
		Items: []order.Item{
			{Name: "Latte", Quantity: 2, Price: 4.5},
			{Name: "Pie | slice", Quantity: 1, Price: 3},
		},
	}
	md := New(ev, "relay", time.Time{}).Markdown()

	for _, want := range []string{
		"# Order #ORD-1",
		"**Customer:** Alex",
		"**Status:** Delivered",
		"**Seen via:** relay",
		"| Latte | 2 | $4.50 |",
		`| Pie \| slice | 1 | $3.00 |`,
		"**Total:** $12.00",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestMarkdownDefaults(t *testing.T) {
	md := New(&order.Event{ID: "ORD-2", Total: 5}, "", time.Time{}).Markdown()
	if !strings.Contains(md, "**Customer:** Guest") {
		t.Error("missing customer should read Guest")
	}
	if !strings.Contains(md, "**Status:** Pending") {
		t.Error("missing status should read Pending")
	}
	if strings.Contains(md, "| Item |") {
		t.Error("no items means no table")
	}
}

func TestViewEmptyWithoutOrder(t *testing.T) {
	if v := (Model{}).View(); v != "" {
		t.Errorf("expected empty view, got %q", v)
	}
}

func TestViewRendersOrder(t *testing.T) {
	m := New(&order.Event{ID: "ORD-3", CustomerName: "Kim", Total: 7.25}, "change feed", time.Now())
	m.Style = "notty"
	v := m.View()
	if !strings.Contains(v, "ORD-3") || !strings.Contains(v, "Kim") {
		t.Errorf("view missing order fields:\n%s", v)
	}
	if !strings.Contains(v, "esc") {
		t.Error("view should show the close hint")
	}
}
