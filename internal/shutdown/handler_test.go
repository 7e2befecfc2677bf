package shutdown

import (
	"reflect"
	"testing"
)

func TestShutdownRunsCleanupsInReverseOnce(t *testing.T) {
	h := New()
	var order []int
	h.AddCleanup(func() { order = append(order, 1) })
	h.AddCleanup(func() { order = append(order, 2) })

	h.Shutdown()
	h.Shutdown()

	if !reflect.DeepEqual(order, []int{2, 1}) {
		t.Errorf("cleanup order = %v, want [2 1]", order)
	}
	if h.Context().Err() == nil {
		t.Error("context should be cancelled after Shutdown")
	}
}
