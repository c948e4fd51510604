package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the hostel store.
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
    e_grantz     BOOLEAN NOT NULL DEFAULT FALSE,
    status       TEXT NOT NULL DEFAULT 'active',
    joined_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    exited_at    TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    date       DATE NOT NULL,
    month      INT NOT NULL,
    year       INT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_hostel_attendance_dates_date ON hostel_attendance_dates (date);
CREATE INDEX IF NOT EXISTS idx_hostel_attendance_dates_period ON hostel_attendance_dates (year, month);

CREATE TABLE IF NOT EXISTS hostel_attendances (
    id         TEXT PRIMARY KEY,
    date_id    TEXT NOT NULL REFERENCES hostel_attendance_dates (id) ON DELETE CASCADE,
    student_id TEXT NOT NULL REFERENCES hostel_students (id),
    date       DATE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    month           INT NOT NULL,
    year            INT NOT NULL,
    period_start    DATE NOT NULL,
    period_end      DATE NOT NULL,
    headcount       INT NOT NULL DEFAULT 0,
    mess_days       INT NOT NULL DEFAULT 0,
    mess_amount     BIGINT NOT NULL DEFAULT 0,
    room_rent       BIGINT NOT NULL DEFAULT 0,
    staff_salary    BIGINT NOT NULL DEFAULT 0,
    electricity     BIGINT NOT NULL DEFAULT 0,
    total           BIGINT NOT NULL DEFAULT 0,
    reduction_days  INT NOT NULL DEFAULT 0,
    chargeable_days INT NOT NULL DEFAULT 0,
    rate_per_day    BIGINT NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL DEFAULT 'inr',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    bill_id        TEXT NOT NULL REFERENCES hostel_mess_bills (id) ON DELETE CASCADE,
    student_id     TEXT NOT NULL REFERENCES hostel_students (id),
    month          INT NOT NULL,
    year           INT NOT NULL,
    e_grantz       BOOLEAN NOT NULL DEFAULT FALSE,
    days_present   INT NOT NULL DEFAULT 0,
    reduction_days INT NOT NULL DEFAULT 0,
    share          BIGINT NOT NULL DEFAULT 0,
    amount         BIGINT NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL DEFAULT 'inr',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    bill_id    TEXT NOT NULL REFERENCES hostel_mess_bills (id) ON DELETE CASCADE,
    student_id TEXT NOT NULL REFERENCES hostel_students (id),
    month      INT NOT NULL,
    year       INT NOT NULL,
    days       INT NOT NULL DEFAULT 0,
    runs       JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
