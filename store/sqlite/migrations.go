package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the hostel store (SQLite).
// Calendar dates are stored as YYYY-MM-DD text so range queries compare
// lexically.
var Migrations = migrate.NewGroup("hostel")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_hostel_students",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hostel_students (
    id           TEXT PRIMARY KEY,
    admission_no TEXT NOT NULL,
    name         TEXT NOT NULL DEFAULT '',
    e_grantz     INTEGER NOT NULL DEFAULT 0,
    status       TEXT NOT NULL DEFAULT 'active',
    joined_at    TEXT NOT NULL DEFAULT (datetime('now')),
    exited_at    TEXT,
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_hostel_students_admission ON hostel_students (admission_no);
CREATE INDEX IF NOT EXISTS idx_hostel_students_status ON hostel_students (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hostel_students`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hostel_attendance",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hostel_attendance_dates (
    id         TEXT PRIMARY KEY,
    date       TEXT NOT NULL,
    month      INTEGER NOT NULL,
    year       INTEGER NOT NULL,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_hostel_attendance_dates_date ON hostel_attendance_dates (date);
CREATE INDEX IF NOT EXISTS idx_hostel_attendance_dates_period ON hostel_attendance_dates (year, month);

CREATE TABLE IF NOT EXISTS hostel_attendances (
    id         TEXT PRIMARY KEY,
    date_id    TEXT NOT NULL,
    student_id TEXT NOT NULL,
    date       TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_hostel_attendances_date_student ON hostel_attendances (date_id, student_id);
CREATE INDEX IF NOT EXISTS idx_hostel_attendances_student_date ON hostel_attendances (student_id, date);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS hostel_attendances;
DROP TABLE IF EXISTS hostel_attendance_dates;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hostel_mess_bills",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hostel_mess_bills (
    id              TEXT PRIMARY KEY,
    month           INTEGER NOT NULL,
    year            INTEGER NOT NULL,
    period_start    TEXT NOT NULL,
    period_end      TEXT NOT NULL,
    headcount       INTEGER NOT NULL DEFAULT 0,
    mess_days       INTEGER NOT NULL DEFAULT 0,
    mess_amount     INTEGER NOT NULL DEFAULT 0,
    room_rent       INTEGER NOT NULL DEFAULT 0,
    staff_salary    INTEGER NOT NULL DEFAULT 0,
    electricity     INTEGER NOT NULL DEFAULT 0,
    total           INTEGER NOT NULL DEFAULT 0,
    reduction_days  INTEGER NOT NULL DEFAULT 0,
    chargeable_days INTEGER NOT NULL DEFAULT 0,
    rate_per_day    INTEGER NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL DEFAULT 'inr',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_hostel_mess_bills_period ON hostel_mess_bills (year, month);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hostel_mess_bills`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hostel_student_bills",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hostel_student_bills (
    id             TEXT PRIMARY KEY,
    bill_id        TEXT NOT NULL,
    student_id     TEXT NOT NULL,
    month          INTEGER NOT NULL,
    year           INTEGER NOT NULL,
    e_grantz       INTEGER NOT NULL DEFAULT 0,
    days_present   INTEGER NOT NULL DEFAULT 0,
    reduction_days INTEGER NOT NULL DEFAULT 0,
    share          INTEGER NOT NULL DEFAULT 0,
    amount         INTEGER NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL DEFAULT 'inr',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_hostel_student_bills_period ON hostel_student_bills (student_id, year, month);
CREATE INDEX IF NOT EXISTS idx_hostel_student_bills_bill ON hostel_student_bills (bill_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hostel_student_bills`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hostel_continuous_absences",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hostel_continuous_absences (
    id         TEXT PRIMARY KEY,
    bill_id    TEXT NOT NULL,
    student_id TEXT NOT NULL,
    month      INTEGER NOT NULL,
    year       INTEGER NOT NULL,
    days       INTEGER NOT NULL DEFAULT 0,
    runs       TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_hostel_continuous_absences_period ON hostel_continuous_absences (student_id, year, month);
CREATE INDEX IF NOT EXISTS idx_hostel_continuous_absences_bill ON hostel_continuous_absences (bill_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hostel_continuous_absences`)
				return err
			},
		},
	)
}
