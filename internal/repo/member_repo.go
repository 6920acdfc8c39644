package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relay/internal/domain"
)

// MemberRepo — репозиторий для выборки получателей уведомлений.
//
// Все выборки сразу отфильтрованы до активных участников
// с зарегистрированным push-адресом: к шлюзу уведомлений
// недоставляемые получатели не доходят.
type MemberRepo struct {
	pool *pgxpool.Pool
}

// NewMemberRepo создаёт новый MemberRepo.
func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

const memberColumns = `m.id, m.club_id, m.name, m.role, m.active, m.independent, m.push_token`

const addressable = `m.active = true AND m.push_token IS NOT NULL AND m.push_token <> ''`

// TeamMembers возвращает участников команды.
func (r *MemberRepo) TeamMembers(ctx context.Context, teamID uuid.UUID) ([]domain.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		JOIN team_members tm ON tm.member_id = m.id
		WHERE tm.team_id = $1 AND ` + addressable + `
		ORDER BY m.id
	`
	return r.queryMembers(ctx, query, teamID)
}

// TeamCoaches возвращает тренеров команды.
func (r *MemberRepo) TeamCoaches(ctx context.Context, teamID uuid.UUID) ([]domain.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		JOIN team_members tm ON tm.member_id = m.id
		WHERE tm.team_id = $1 AND m.role = 'COACH' AND ` + addressable + `
		ORDER BY m.id
	`
	return r.queryMembers(ctx, query, teamID)
}

// ClubAccount возвращает аккаунт клуба.
// Возвращает (nil, nil), если у клуба нет доставляемого аккаунта.
func (r *MemberRepo) ClubAccount(ctx context.Context, clubID uuid.UUID) (*domain.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		WHERE m.club_id = $1 AND m.role = 'CLUB' AND ` + addressable + `
		LIMIT 1
	`
	var m domain.Member
	err := r.pool.QueryRow(ctx, query, clubID).Scan(
		&m.ID, &m.ClubID, &m.Name, &m.Role, &m.Active, &m.Independent, &m.PushToken,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("club account: %w", err)
	}
	return &m, nil
}

// ActiveDependentAthletes возвращает активных спортсменов без
// собственного биллинга — адресатов ежемесячного напоминания.
func (r *MemberRepo) ActiveDependentAthletes(ctx context.Context) ([]domain.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		WHERE m.role = 'MEMBER' AND m.independent = false AND ` + addressable + `
		ORDER BY m.id
	`
	return r.queryMembers(ctx, query)
}

// EventParticipants возвращает явно приглашённых участников события.
func (r *MemberRepo) EventParticipants(ctx context.Context, eventID uuid.UUID) ([]domain.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		JOIN event_participants ep ON ep.member_id = m.id
		WHERE ep.event_id = $1 AND ` + addressable + `
		ORDER BY m.id
	`
	return r.queryMembers(ctx, query, eventID)
}

// EventCoaches возвращает явно назначенных на событие тренеров.
func (r *MemberRepo) EventCoaches(ctx context.Context, eventID uuid.UUID) ([]domain.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		JOIN event_coaches ec ON ec.member_id = m.id
		WHERE ec.event_id = $1 AND ` + addressable + `
		ORDER BY m.id
	`
	return r.queryMembers(ctx, query, eventID)
}

// --- Helpers ---

func (r *MemberRepo) queryMembers(ctx context.Context, query string, args ...any) ([]domain.Member, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.ClubID, &m.Name, &m.Role, &m.Active, &m.Independent, &m.PushToken); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
