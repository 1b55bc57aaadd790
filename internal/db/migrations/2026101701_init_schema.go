package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed schema.up.sql
var initSchemaSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, initSchemaSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
				DROP TABLE IF EXISTS answers;
				DROP TABLE IF EXISTS exam_attempts;
				DROP TABLE IF EXISTS exam_participants;
				DROP TABLE IF EXISTS participants;
				DROP TABLE IF EXISTS exam_questions;
				DROP TABLE IF EXISTS questions;
				DROP TABLE IF EXISTS exams;
			`)
			return err
		},
	)
}
