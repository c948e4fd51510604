package hostel

import "github.com/jitheshjr/hostel/types"

// Re-export common types so callers rarely need the types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	INR    = types.INR
	Rupees = types.Rupees
)

// Re-export date helpers
var (
	Date      = types.Date
	ParseDate = types.ParseDate
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
