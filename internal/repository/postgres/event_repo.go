package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/brainsait/pulse/internal/audit"
)

type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(connString string, maxConns int) (*EventRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 15
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &EventRepo{db: db}, nil
}

// Ping проверяет доступность базы на старте сервиса.
func (r *EventRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *EventRepo) Close() error {
	return r.db.Close()
}

// WriteBatch пишет пачку записей журнала одним INSERT.
func (r *EventRepo) WriteBatch(ctx context.Context, records []audit.EventRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Количество колонок в таблице event_log
	numFields := 6
	placeholderStr := ""
	vals := make([]interface{}, 0, len(records)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, rec := range records {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6)

		payload, _ := json.Marshal(rec.Payload)

		vals = append(vals,
			rec.ID, rec.Kind, rec.AgentID, payload, rec.Error, rec.ReceivedAt,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO event_log (id, kind, agent_id, payload, error, received_at) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}
