package hostel

import "github.com/jitheshjr/hostel/id"

// ID is the primary identifier type for all hostel records.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
