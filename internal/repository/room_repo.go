package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoomRepository - PostgreSQL реализация RoomStore
type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = `
	id, game_type, status, owner_user_id, bet_amount, max_players, private, invited,
	options, players, metadata, server_seed, winner_user_id, draw, deadline_at,
	needs_review, review_reason, version, created_at, started_at, finished_at, deleted_at`

// JSON-колонки комнаты
type roomJSON struct {
	options  []byte
	players  []byte
	metadata []byte
}

func encodeRoom(r *domain.Room) (roomJSON, error) {
	var out roomJSON
	var err error
	if out.options, err = json.Marshal(r.Options); err != nil {
		return out, fmt.Errorf("encode options: %w", err)
	}
	players := r.Players
	if players == nil {
		players = []domain.Player{}
	}
	if out.players, err = json.Marshal(players); err != nil {
		return out, fmt.Errorf("encode players: %w", err)
	}
	if out.metadata, err = json.Marshal(r.Metadata); err != nil {
		return out, fmt.Errorf("encode metadata: %w", err)
	}
	return out, nil
}

func invitedOf(r *domain.Room) []int64 {
	if r.Invited == nil {
		return []int64{}
	}
	return r.Invited
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	enc, err := encodeRoom(room)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO pvp_rooms (`+roomColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22)
	`,
		room.ID, room.GameType, room.Status, room.OwnerUserID, room.BetAmount, room.MaxPlayers,
		room.Private, invitedOf(room), enc.options, enc.players, enc.metadata, room.ServerSeed,
		room.WinnerUserID, room.Draw, room.DeadlineAt, room.NeedsReview, room.ReviewReason,
		room.Version, room.CreatedAt, room.StartedAt, room.FinishedAt, room.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert room %s: %w", room.ID, err)
	}
	return nil
}

func (r *RoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+roomColumns+`
		FROM pvp_rooms
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	room, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		var de *decodeError
		if errors.As(err, &de) {
			r.flagUndecodable(ctx, []*decodeError{de})
		}
		return nil, fmt.Errorf("get room %s: %w", id, err)
	}
	return room, nil
}

// CompareAndSwap - атомарный захват: строка обновляется, только если версия не менялась
func (r *RoomRepository) CompareAndSwap(ctx context.Context, room *domain.Room, expectedVersion int64) error {
	enc, err := encodeRoom(room)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE pvp_rooms SET
			status = $3, owner_user_id = $4, max_players = $5, private = $6, invited = $7,
			options = $8, players = $9, metadata = $10, server_seed = $11,
			winner_user_id = $12, draw = $13, deadline_at = $14, needs_review = $15,
			review_reason = $16, version = $17, started_at = $18, finished_at = $19,
			deleted_at = $20
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL
	`,
		room.ID, expectedVersion, room.Status, room.OwnerUserID, room.MaxPlayers, room.Private,
		invitedOf(room), enc.options, enc.players, enc.metadata, room.ServerSeed,
		room.WinnerUserID, room.Draw, room.DeadlineAt, room.NeedsReview, room.ReviewReason,
		room.Version, room.StartedAt, room.FinishedAt, room.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update room %s: %w", room.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func (r *RoomRepository) ListWaiting(ctx context.Context, limit int) ([]*domain.Room, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+roomColumns+`
		FROM pvp_rooms
		WHERE status = 'waiting' AND NOT private AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list waiting rooms: %w", err)
	}
	return r.scanRooms(ctx, rows, false)
}

func (r *RoomRepository) DueRooms(ctx context.Context, now time.Time, limit int) ([]*domain.Room, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+roomColumns+`
		FROM pvp_rooms
		WHERE status = 'active' AND deleted_at IS NULL AND NOT needs_review
		  AND (deadline_at IS NULL OR deadline_at <= $1)
		ORDER BY deadline_at ASC NULLS FIRST
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due rooms: %w", err)
	}
	return r.scanRooms(ctx, rows, false)
}

func (r *RoomRepository) ListReview(ctx context.Context, limit int) ([]*domain.Room, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+roomColumns+`
		FROM pvp_rooms
		WHERE needs_review AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("review rooms: %w", err)
	}
	// сломанные строки тоже показываем оператору, хотя бы id и причину
	return r.scanRooms(ctx, rows, true)
}

func (r *RoomRepository) Stats(ctx context.Context, now time.Time) (domain.RoomStats, error) {
	stats := domain.NewRoomStats()

	rows, err := r.db.Query(ctx, `
		SELECT status, count(*) FROM pvp_rooms
		WHERE deleted_at IS NULL
		GROUP BY status
	`)
	if err != nil {
		return stats, fmt.Errorf("count rooms: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return stats, err
		}
		stats.Counts[domain.RoomStatus(status)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT game_type, count(*) FROM pvp_rooms
		WHERE status = 'active' AND deleted_at IS NULL AND NOT needs_review
		  AND (deadline_at IS NULL OR deadline_at <= $1)
		GROUP BY game_type
	`, now)
	if err != nil {
		return stats, fmt.Errorf("count stale rooms: %w", err)
	}
	for rows.Next() {
		var gt string
		var n int
		if err := rows.Scan(&gt, &n); err != nil {
			rows.Close()
			return stats, err
		}
		stats.Stale[domain.GameType(gt)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	err = r.db.QueryRow(ctx, `
		SELECT count(*) FROM pvp_rooms WHERE needs_review AND deleted_at IS NULL
	`).Scan(&stats.Review)
	if err != nil {
		return stats, fmt.Errorf("count review rooms: %w", err)
	}
	return stats, nil
}

// decodeError - строка прочиталась, но JSON-колонки не разбираются
type decodeError struct {
	roomID string
	err    error
}

func (e *decodeError) Error() string { return fmt.Sprintf("decode room %s: %v", e.roomID, e.err) }
func (e *decodeError) Unwrap() error { return e.err }

// scanRoom при decodeError возвращает и частично заполненную комнату
func scanRoom(row pgx.Row) (*domain.Room, error) {
	var (
		room                       domain.Room
		gameType, status           string
		options, players, metadata []byte
	)
	if err := row.Scan(
		&room.ID, &gameType, &status, &room.OwnerUserID, &room.BetAmount, &room.MaxPlayers,
		&room.Private, &room.Invited, &options, &players, &metadata, &room.ServerSeed,
		&room.WinnerUserID, &room.Draw, &room.DeadlineAt, &room.NeedsReview, &room.ReviewReason,
		&room.Version, &room.CreatedAt, &room.StartedAt, &room.FinishedAt, &room.DeletedAt,
	); err != nil {
		return nil, err
	}
	room.GameType = domain.GameType(gameType)
	room.Status = domain.RoomStatus(status)

	if err := json.Unmarshal(options, &room.Options); err != nil {
		return &room, &decodeError{room.ID, fmt.Errorf("options: %w", err)}
	}
	if err := json.Unmarshal(players, &room.Players); err != nil {
		return &room, &decodeError{room.ID, fmt.Errorf("players: %w", err)}
	}
	md, err := domain.DecodeMetadata(room.GameType, metadata)
	if err != nil {
		return &room, &decodeError{room.ID, err}
	}
	room.Metadata = md
	return &room, nil
}

// scanRooms пропускает строки, которые не разбираются, и помечает их на ручную
// проверку: одна битая комната не должна останавливать выборку для остальных.
func (r *RoomRepository) scanRooms(ctx context.Context, rows pgx.Rows, keepBroken bool) ([]*domain.Room, error) {
	var (
		rooms  []*domain.Room
		broken []*decodeError
	)
	for rows.Next() {
		room, err := scanRoom(rows)
		var de *decodeError
		switch {
		case errors.As(err, &de):
			broken = append(broken, de)
			if keepBroken {
				room.NeedsReview = true
				room.ReviewReason = de.Error()
				rooms = append(rooms, room)
			}
			continue
		case err != nil:
			rows.Close()
			return nil, err
		}
		rooms = append(rooms, room)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.flagUndecodable(ctx, broken)
	return rooms, nil
}

// flagUndecodable убирает битые комнаты из автоматической обработки.
// Версия растет, чтобы незавершенный захват по старой версии не прошел.
func (r *RoomRepository) flagUndecodable(ctx context.Context, broken []*decodeError) {
	for _, de := range broken {
		log := logger.WithContext(logger.WithRoom(ctx, de.roomID), nil)
		_, err := r.db.Exec(ctx, `
			UPDATE pvp_rooms
			SET needs_review = TRUE, review_reason = $2, version = version + 1
			WHERE id = $1 AND NOT needs_review
		`, de.roomID, de.Error())
		if err != nil {
			log.Error("failed to flag undecodable room", "error", err)
			continue
		}
		log.Warn("undecodable room flagged for review", "error", de.err)
	}
}
