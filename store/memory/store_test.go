package memory_test

import (
	"testing"

	"github.com/jitheshjr/hostel/store"
	"github.com/jitheshjr/hostel/store/memory"
	"github.com/jitheshjr/hostel/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}
