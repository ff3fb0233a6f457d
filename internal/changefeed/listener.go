package changefeed

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Listener is a dedicated connection subscribed to NOTIFY traffic.
type Listener interface {
	Listen(ctx context.Context, channel string) error
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Dialer opens a Listener.
type Dialer func(ctx context.Context) (Listener, error)

// PgxDialer dials databaseURL with pgx. LISTEN needs a connection of its own,
// so this does not use a pool.
func PgxDialer(databaseURL string) Dialer {
	return func(ctx context.Context) (Listener, error) {
		conn, err := pgx.Connect(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		return &pgxListener{conn: conn}, nil
	}
}

type pgxListener struct {
	conn *pgx.Conn
}

func (l *pgxListener) Listen(ctx context.Context, channel string) error {
	if _, err := l.conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	return nil
}

func (l *pgxListener) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return l.conn.WaitForNotification(ctx)
}

func (l *pgxListener) Close(ctx context.Context) error {
	return l.conn.Close(ctx)
}

// TriggerSQL returns the statements that make inserts into schema.table
// publish {schema, table, type, record} on channel. pg_notify rejects
// payloads over 8000 bytes; a row that large is published without its
// items, and if even that fails the trigger only raises a warning. The
// insert itself never fails because of the notification.
func TriggerSQL(channel, schema, table string) []string {
	target := pgx.Identifier{schema, table}.Sanitize()
	fn := pgx.Identifier{schema, "notify_" + table + "_insert"}.Sanitize()
	trigger := pgx.Identifier{table + "_insert_notify"}.Sanitize()
	literal := "'" + strings.ReplaceAll(channel, "'", "''") + "'"

	return []string{
		`CREATE OR REPLACE FUNCTION ` + fn + `() RETURNS trigger AS $$
BEGIN
	BEGIN
		PERFORM pg_notify(` + literal + `, json_build_object(
			'schema', TG_TABLE_SCHEMA,
			'table', TG_TABLE_NAME,
			'type', TG_OP,
			'record', row_to_json(NEW)
		)::text);
	EXCEPTION WHEN OTHERS THEN
		BEGIN
			PERFORM pg_notify(` + literal + `, json_build_object(
				'schema', TG_TABLE_SCHEMA,
				'table', TG_TABLE_NAME,
				'type', TG_OP,
				'record', json_build_object(
					'id', NEW.id,
					'customer_name', left(NEW.customer_name, 200),
					'total', NEW.total,
					'status', NEW.status,
					'created_at', NEW.created_at
				)
			)::text);
		EXCEPTION WHEN OTHERS THEN
			RAISE WARNING 'order insert notification skipped: %', SQLERRM;
		END;
	END;
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS ` + trigger + ` ON ` + target,
		`CREATE TRIGGER ` + trigger + ` AFTER INSERT ON ` + target + ` FOR EACH ROW EXECUTE FUNCTION ` + fn + `()`,
	}
}
