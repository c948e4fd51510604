// Package hostel provides a mess-bill engine for student hostels.
//
// Hostel is designed as a library, not a service. Import it into your Go
// application, or mount its HTTP API through the Forge extension. It provides:
//
//   - A student roster with stipend (E-Grantz) flags and soft archival
//   - An append-only daily attendance ledger, one record per calendar day
//   - Monthly mess bills with a continuous-absence reduction rule
//   - Per-student bill rows traceable to the absences that reduced them
//   - Pluggable stores: memory, bbolt, PostgreSQL, SQLite and MongoDB
//
// # Quick Start
//
//	import (
//	    "github.com/jitheshjr/hostel"
//	    "github.com/jitheshjr/hostel/store/memory"
//	)
//
//	e := hostel.New(memory.New())
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// Add residents and take attendance every day:
//
//	a := &student.Student{AdmissionNo: "H-101", Name: "Anu"}
//	err := e.AddStudent(ctx, a)
//
//	_, err = e.MarkAttendance(ctx, day, []id.StudentID{a.ID})
//
// At the end of the month, generate the bill:
//
//	b, err := e.GenerateBill(ctx, hostel.Request{
//	    PeriodStart: types.Date(2024, time.March, 1),
//	    PeriodEnd:   types.Date(2024, time.March, 31),
//	    MessAmount:  types.Rupees(60000),
//	    RoomRent:    types.Rupees(500),
//	    StaffSalary: types.Rupees(10000),
//	    Electricity: types.Rupees(5000),
//	})
//
// # Billing Rule
//
// A student absent for at least seven consecutive days has those days taken
// off their mess charge. The mess amount is divided by the chargeable
// student-days that remain, and every student pays that rate for the days
// they are charged plus an equal share of room rent, staff salary and
// electricity. E-Grantz students never get the reduction; they pay a flat
// supplement on their share instead.
//
// Each student's amount is rounded to the paisa on its own, so the sum of
// student bills may differ from the bill total by up to one paisa per head.
//
// Amounts are stored as integer paise in types.Money. Intermediate values use
// shopspring/decimal and are only rounded when a row is written.
package hostel
